package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rill/internal/stdlib"
	"rill/internal/vm"
)

var traceCmd = &cobra.Command{
	Use:   "trace [flags] <file>",
	Short: "Execute a unit and print every instruction",
	Args:  cobra.ExactArgs(1),
	RunE:  traceExecution,
}

func init() {
	traceCmd.Flags().String("entry", "", "entry function (default from rill.toml, else main)")
	traceCmd.Flags().Int("fuel", 0, "instruction budget, 0 means unlimited")
	traceCmd.Flags().Bool("stack", false, "include a stack snapshot on each line")
}

func traceExecution(cmd *cobra.Command, args []string) error {
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
	fuel := defaults.Fuel
	if cmd.Flags().Changed("fuel") {
		if fuel, err = cmd.Flags().GetInt("fuel"); err != nil {
			return err
		}
	}
	withStack, err := cmd.Flags().GetBool("stack")
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
	tracer := vm.NewTracer(os.Stdout)
	if withStack {
		tracer = tracer.WithStack()
	}
	exec.Vm().SetTracer(tracer)

	var value vm.Value
	if fuel > 0 {
		value, verr = exec.CompleteWithin(fuel)
	} else {
		value, verr = exec.Complete()
	}
	if verr != nil {
		return fmt.Errorf("%s: %s", args[0], verr.Format())
	}
	fmt.Fprintf(os.Stdout, "result: %s\n", value.DebugString()) //nolint:errcheck
	value.Release()
	return nil
}
