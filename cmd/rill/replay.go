package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rill/internal/stdlib"
	"rill/internal/vm"
)

var replayCmd = &cobra.Command{
	Use:   "replay [flags] <file> <log>",
	Short: "Re-run a unit and check it against a recorded log",
	Long:  "Replay executes the unit step by step and fails on the first divergence from the execution log written by run --record.",
	Args:  cobra.ExactArgs(2),
	RunE:  replayExecution,
}

func init() {
	replayCmd.Flags().String("entry", "", "entry function (default from rill.toml, else main)")
}

func replayExecution(cmd *cobra.Command, args []string) error {
	defaults, err := manifestDefaults()
	if err != nil {
		return err
	}
	entry := defaults.Entry
	if cmd.Flags().Changed("entry") {
		if entry, err = cmd.Flags().GetString("entry"); err != nil {
			return err
		}
	}

	f, err := os.Open(args[1])
	if err != nil {
		return fmt.Errorf("open record log: %w", err)
	}
	defer f.Close() //nolint:errcheck
	rp := vm.NewReplayer(f)

	u, err := loadUnit(args[0])
	if err != nil {
		return err
	}
	ctx, err := stdlib.Default(os.Stdout)
	if err != nil {
		return err
	}
	exec, verr := vm.Execute(u, ctx, entry, nil)
	if verr != nil {
		return fmt.Errorf("%s: %s", args[0], verr.Format())
	}
	if err := rp.Validate(exec); err != nil {
		return err
	}

	steps := 0
	for {
		sp, ok := exec.Vm().StopPoint()
		if ok {
			if err := rp.CheckStep(sp); err != nil {
				return fmt.Errorf("diverged after %d steps: %w", steps, err)
			}
		}
		value, done, verr := exec.Step()
		steps++
		if verr != nil {
			return fmt.Errorf("%s: %s", args[0], verr.Format())
		}
		if done {
			if err := rp.CheckResult(value); err != nil {
				value.Release()
				return err
			}
			value.Release()
			if n := rp.Remaining(); n > 0 {
				return fmt.Errorf("log has %d unconsumed events", n)
			}
			fmt.Fprintf(os.Stdout, "replay ok: %d steps\n", steps) //nolint:errcheck
			return nil
		}
	}
}
