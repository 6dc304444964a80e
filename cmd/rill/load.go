package main

import (
	"fmt"
	"os"
	"path/filepath"

	"rill/internal/rilla"
	"rill/internal/unit"
)

// loadUnit reads a bytecode unit from path. Assembly sources (.rilla or
// .rill) are assembled on the fly, .rlu files are decoded directly.
func loadUnit(path string) (*unit.Unit, error) {
	switch filepath.Ext(path) {
	case unit.Ext:
		return unit.LoadFile(path)
	case ".rilla", ".rill":
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return rilla.Assemble(path, src)
	default:
		return nil, fmt.Errorf("%s: unsupported file extension (want .rilla, .rill or %s)", path, unit.Ext)
	}
}
