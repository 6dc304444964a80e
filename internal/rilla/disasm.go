package rilla

import (
	"fmt"
	"io"

	"rill/internal/unit"
)

// Disassemble writes a textual listing of the unit: functions in entry
// order with their instructions, then the static string pool.
func Disassemble(u *unit.Unit, w io.Writer) error {
	fns := u.Functions()
	bounds := make([]int, len(fns)+1)
	for i, fn := range fns {
		bounds[i] = fn.Offset
	}
	bounds[len(fns)] = u.Len()

	for i, fn := range fns {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "fn %s/%d:\n", fn.Name, fn.Args)
		for ip := bounds[i]; ip < bounds[i+1]; ip++ {
			inst, ok := u.Inst(ip)
			if !ok {
				return fmt.Errorf("missing instruction at ip=%d", ip)
			}
			fmt.Fprintf(w, "  %4d  %s", ip, inst)
			if entry, ok := u.DebugAt(ip); ok && entry.Label != "" {
				fmt.Fprintf(w, "  ; %s", entry.Label)
			}
			fmt.Fprintln(w)
		}
	}

	if pool := u.StaticStrings(); len(pool) > 0 {
		fmt.Fprintln(w, "\nstrings:")
		for slot, s := range pool {
			fmt.Fprintf(w, "  %4d  %q\n", slot, s)
		}
	}
	return nil
}
