package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"rill/internal/stdlib"
	"rill/internal/vm"
)

var debugCmd = &cobra.Command{
	Use:   "debug [flags] <file>",
	Short: "Step through a unit with the interactive debugger",
	Long:  "Debug a unit. With a terminal an interactive prompt is shown; otherwise commands are read from stdin and the run completes when input ends.",
	Args:  cobra.ExactArgs(1),
	RunE:  debugExecution,
}

func init() {
	debugCmd.Flags().String("entry", "", "entry function (default from rill.toml, else main)")
	debugCmd.Flags().StringSlice("break", nil, "breakpoint at file:line (repeatable)")
	debugCmd.Flags().StringSlice("break-fn", nil, "breakpoint at function entry (repeatable)")
}

func debugExecution(cmd *cobra.Command, args []string) error {
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
	lineBreaks, err := cmd.Flags().GetStringSlice("break")
	if err != nil {
		return err
	}
	fnBreaks, err := cmd.Flags().GetStringSlice("break-fn")
	if err != nil {
		return err
	}

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

	interactive := isTerminal(os.Stdin) && isTerminal(os.Stdout)
	d := vm.NewDebugger(exec, os.Stdin, os.Stdout, interactive)
	if err := seedBreakpoints(d.Breakpoints(), lineBreaks, fnBreaks); err != nil {
		return err
	}

	res, verr := d.Run()
	if verr != nil {
		return fmt.Errorf("%s: %s", args[0], verr.Format())
	}
	if res.Quit {
		return nil
	}
	fmt.Fprintf(os.Stdout, "%s\n", res.Value.DebugString()) //nolint:errcheck
	res.Value.Release()
	return nil
}

func seedBreakpoints(bps *vm.Breakpoints, lineBreaks, fnBreaks []string) error {
	for _, spec := range lineBreaks {
		idx := strings.LastIndex(spec, ":")
		if idx <= 0 || idx == len(spec)-1 {
			return fmt.Errorf("invalid --break %q (want file:line)", spec)
		}
		line, err := strconv.Atoi(spec[idx+1:])
		if err != nil {
			return fmt.Errorf("invalid --break %q: %w", spec, err)
		}
		if _, err := bps.AddFileLine(spec[:idx], line); err != nil {
			return err
		}
	}
	for _, name := range fnBreaks {
		if _, err := bps.AddFuncEntry(name); err != nil {
			return err
		}
	}
	return nil
}
