package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"rill/internal/rilla"
	"rill/internal/unit"
)

var buildCmd = &cobra.Command{
	Use:   "build [flags] <file.rilla>",
	Short: "Assemble a source file into a bytecode unit",
	Args:  cobra.ExactArgs(1),
	RunE:  buildExecution,
}

func init() {
	buildCmd.Flags().StringP("output", "o", "", "output path (default: source name with "+unit.Ext+")")
}

func buildExecution(cmd *cobra.Command, args []string) error {
	out, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	path := args[0]
	ext := filepath.Ext(path)
	if ext != ".rilla" && ext != ".rill" {
		return fmt.Errorf("%s: not an assembly source (want .rilla or .rill)", path)
	}
	if out == "" {
		out = strings.TrimSuffix(path, ext) + unit.Ext
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	u, err := rilla.Assemble(path, src)
	if err != nil {
		return err
	}
	if err := u.Save(out); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "wrote %s\n", out) //nolint:errcheck
	return nil
}
