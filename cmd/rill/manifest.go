package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type toolManifest struct {
	Path   string
	Root   string
	Config toolConfig
}

type toolConfig struct {
	Run runSettings `toml:"run"`
}

type runSettings struct {
	Entry string `toml:"entry"`
	Fuel  int    `toml:"fuel"`
	Trace bool   `toml:"trace"`
}

// findRillToml walks up from startDir looking for a rill.toml.
func findRillToml(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, "rill.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// loadToolManifest returns the nearest manifest, or ok=false when the tree
// has none. All settings are optional.
func loadToolManifest(startDir string) (*toolManifest, bool, error) {
	path, ok, err := findRillToml(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	var cfg toolConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, true, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if meta.IsDefined("run", "fuel") && cfg.Run.Fuel < 0 {
		return nil, true, fmt.Errorf("%s: [run].fuel must not be negative", path)
	}
	if meta.IsDefined("run", "entry") && strings.TrimSpace(cfg.Run.Entry) == "" {
		return nil, true, fmt.Errorf("%s: [run].entry must not be empty", path)
	}
	return &toolManifest{
		Path:   path,
		Root:   filepath.Dir(path),
		Config: cfg,
	}, true, nil
}

// runDefaults merges manifest settings under explicitly passed flags.
type runDefaults struct {
	Entry string
	Fuel  int
	Trace bool
}

func manifestDefaults() (runDefaults, error) {
	defaults := runDefaults{Entry: "main"}
	manifest, ok, err := loadToolManifest(".")
	if err != nil {
		return defaults, err
	}
	if !ok {
		return defaults, nil
	}
	if entry := strings.TrimSpace(manifest.Config.Run.Entry); entry != "" {
		defaults.Entry = entry
	}
	defaults.Fuel = manifest.Config.Run.Fuel
	defaults.Trace = manifest.Config.Run.Trace
	return defaults, nil
}
