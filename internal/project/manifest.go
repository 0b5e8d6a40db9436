// Package project locates and reads the flint.toml manifest that marks a
// project root: the package metadata, the entry tree file, and build options.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const ManifestName = "flint.toml"

// Manifest is a loaded flint.toml plus where it was found.
type Manifest struct {
	Path   string // absolute path of the manifest file
	Root   string // directory containing it
	Config Config
}

type Config struct {
	Package Package `toml:"package"`
	Build   Build   `toml:"build"`
}

type Package struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Entry   string `toml:"entry"`
}

type Build struct {
	BoundsChecks bool `toml:"bounds_checks"`
}

// Find walks from startDir toward the filesystem root looking for flint.toml.
// The second return is false when no manifest exists on the path.
func Find(startDir string) (*Manifest, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, false, fmt.Errorf("resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ManifestName)
		if _, err := os.Stat(candidate); err == nil {
			m, err := Load(candidate)
			return m, true, err
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, false, fmt.Errorf("stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, false, nil
		}
		dir = parent
	}
}

// Load reads and validates one manifest file.
func Load(path string) (*Manifest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	meta, err := toml.DecodeFile(abs, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: parse: %w", path, err)
	}
	if !meta.IsDefined("package", "name") || strings.TrimSpace(cfg.Package.Name) == "" {
		return nil, fmt.Errorf("%s: missing [package].name", path)
	}
	if !meta.IsDefined("package", "entry") || strings.TrimSpace(cfg.Package.Entry) == "" {
		return nil, fmt.Errorf("%s: missing [package].entry", path)
	}
	if filepath.Ext(cfg.Package.Entry) != ".flt" {
		return nil, fmt.Errorf("%s: [package].entry must name a .flt tree file", path)
	}
	return &Manifest{
		Path:   abs,
		Root:   filepath.Dir(abs),
		Config: cfg,
	}, nil
}

// EntryPath resolves the entry tree file relative to the project root.
func (m *Manifest) EntryPath() string {
	return filepath.Join(m.Root, filepath.FromSlash(m.Config.Package.Entry))
}
