package main

import (
	"os"

	"github.com/spf13/cobra"

	"rill/internal/rilla"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm <file>",
	Short: "Print a bytecode listing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := loadUnit(args[0])
		if err != nil {
			return err
		}
		return rilla.Disassemble(u, os.Stdout)
	},
}
