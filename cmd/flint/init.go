package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"flint/internal/ast"
	"flint/internal/project"
)

var initCmd = &cobra.Command{
	Use:   "init [path|name]",
	Short: "Initialize a new flint project",
	Long: `Initialize a flint project by creating a manifest (flint.toml) and a
hello-world entry tree (main.flt). If [path|name] is omitted, the current
directory is initialized; a non-existing name creates a directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	target, err := resolveInitDir(args)
	if err != nil {
		return err
	}

	if st, err := os.Stat(target); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", target, err)
		}
	} else if !st.IsDir() {
		return fmt.Errorf("%q is not a directory", target)
	}

	name := strings.TrimSpace(filepath.Base(target))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "flint-project"
	}

	manifestPath := filepath.Join(target, project.ManifestName)
	if _, err := os.Stat(manifestPath); err == nil {
		return fmt.Errorf("project already initialized: %s exists", manifestPath)
	}
	if err := os.WriteFile(manifestPath, []byte(defaultManifest(name)), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	entryPath := filepath.Join(target, "main.flt")
	createdEntry := false
	if _, err := os.Stat(entryPath); errors.Is(err, os.ErrNotExist) {
		if err := ast.SaveTree(entryPath, &ast.Tree{Root: helloTree()}); err != nil {
			return fmt.Errorf("write entry tree: %w", err)
		}
		createdEntry = true
	}

	rel := target
	if wd, err := os.Getwd(); err == nil {
		if r, err2 := filepath.Rel(wd, target); err2 == nil {
			rel = r
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Initialized flint project in %s\n", rel)
	fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", project.ManifestName)
	if createdEntry {
		fmt.Fprintln(cmd.OutOrStdout(), "  - main.flt")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "  - main.flt (existing)")
	}
	return nil
}

func resolveInitDir(args []string) (string, error) {
	if len(args) == 0 || args[0] == "." {
		return os.Getwd()
	}
	if filepath.IsAbs(args[0]) {
		return args[0], nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, args[0]), nil
}

func defaultManifest(name string) string {
	return fmt.Sprintf(`# Flint project manifest
[package]
name = "%s"
version = "0.1.0"
entry = "main.flt"

[build]
bounds_checks = true
`, name)
}

// helloTree builds the entry tree a fresh project starts from: a single
// print statement, the smallest program that proves the pipeline works.
func helloTree() ast.Stmt {
	return &ast.Block{Stmts: []ast.Stmt{
		&ast.Print{
			Format: `Hello, {}!\n`,
			Args:   []ast.Expr{&ast.LiteralString{Value: "flint"}},
		},
	}}
}
