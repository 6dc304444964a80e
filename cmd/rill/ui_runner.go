package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"rill/internal/ui"
)

// runStepperUI executes a single unit under the interactive stepper.
func runStepperUI(path string, opts runOptions) error {
	u, err := loadUnit(path)
	if err != nil {
		return err
	}
	exec, err := startExecution(path, u, opts, os.Stdout)
	if err != nil {
		return err
	}

	p := tea.NewProgram(ui.NewStepperModel(exec))
	model, err := p.Run()
	if err != nil {
		return fmt.Errorf("stepper: %w", err)
	}

	res := ui.Result(model)
	switch {
	case res.Err != nil:
		return fmt.Errorf("%s: %s", path, res.Err.Format())
	case res.Quit:
		fmt.Fprintln(os.Stdout, "aborted") //nolint:errcheck
		return nil
	default:
		fmt.Fprintf(os.Stdout, "%s\n", res.Value.DebugString()) //nolint:errcheck
		res.Value.Release()
		return nil
	}
}
