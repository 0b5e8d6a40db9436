package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"flint/internal/ast"
	"flint/internal/bytecode"
	"flint/internal/compiler"
	"flint/internal/diag"
	"flint/internal/project"
	"flint/internal/source"
)

var errLabel = color.New(color.FgRed, color.Bold)

// loadProgram produces a runnable program from either a tree file (compiled
// on the spot) or an already compiled program file. The returned file set is
// nil unless the tree carried its source text.
func loadProgram(path string, opts compiler.Options) (*bytecode.Program, *source.FileSet, error) {
	switch filepath.Ext(path) {
	case ".flc":
		prog, err := bytecode.Load(path)
		return prog, nil, err
	case ".flt":
		return compileTree(path, opts)
	default:
		return nil, nil, fmt.Errorf("%s: expected a .flt tree file or a compiled .flc program", path)
	}
}

// compileTree front-ends one tree file. A tree that embeds its source gets a
// file set, so diagnostics and assert messages carry real line numbers; the
// embedded text is registered first and therefore owns file id 0, which is
// what the tree's spans address.
func compileTree(path string, opts compiler.Options) (*bytecode.Program, *source.FileSet, error) {
	tree, err := ast.LoadTree(path)
	if err != nil {
		return nil, nil, err
	}

	var fs *source.FileSet
	if len(tree.Source) > 0 {
		srcPath := tree.SourcePath
		if srcPath == "" {
			srcPath = path
		}
		fs = source.NewFileSet()
		fs.Add(srcPath, tree.Source)
		opts.Files = fs
	}

	prog, err := compiler.Compile(tree.Root, opts)
	return prog, fs, err
}

// renderError formats a failure for the terminal. With a file set, compile
// diagnostics render with their source line and a caret; without one they
// fall back to the code and raw source offset. Everything else prints as-is.
func renderError(path string, err error, fs *source.FileSet) string {
	var ce *diag.CompileError
	if errors.As(err, &ce) {
		if fs != nil {
			var b strings.Builder
			diag.Render(&b, ce.Diag, fs, diag.RenderOpts{Color: !color.NoColor})
			return strings.TrimRight(b.String(), "\n")
		}
		return fmt.Sprintf("%s: %s %s: %s (offset %d)",
			path, errLabel.Sprint("error"), ce.Diag.Code, ce.Diag.Message, ce.Diag.Primary.Start)
	}
	return fmt.Sprintf("%s: %s %v", path, errLabel.Sprint("error"), err)
}

// resolveTarget picks the file to operate on: an explicit argument wins,
// otherwise the manifest's entry point. The manifest is only consulted (and
// only required) when no argument was given.
func resolveTarget(args []string) (string, *project.Manifest, error) {
	if len(args) == 1 {
		return args[0], nil, nil
	}
	m, ok, err := project.Find(".")
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return "", nil, errors.New("no flint.toml found; pass a .flt or .flc file explicitly")
	}
	return m.EntryPath(), m, nil
}

// boundsChecks layers the flag over the manifest default.
func boundsChecks(cmd *cobra.Command, m *project.Manifest) bool {
	if cmd.Flags().Changed("bounds-checks") {
		on, _ := cmd.Flags().GetBool("bounds-checks")
		return on
	}
	return m != nil && m.Config.Build.BoundsChecks
}
