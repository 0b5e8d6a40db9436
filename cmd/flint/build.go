package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"flint/internal/compiler"
)

var buildCmd = &cobra.Command{
	Use:   "build [file.flt]",
	Short: "Compile a tree file into a program file",
	Long: `Compile a tree file and write the result as a .flc program file that
flint run and flint disasm accept directly.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringP("output", "o", "", "output path (default: input with a .flc extension)")
	buildCmd.Flags().Bool("bounds-checks", false, "emit a bounds check on every subscript")
}

func runBuild(cmd *cobra.Command, args []string) error {
	colorEnabled(cmd)

	target, manifest, err := resolveTarget(args)
	if err != nil {
		return err
	}
	if filepath.Ext(target) != ".flt" {
		return fmt.Errorf("%s: build takes a .flt tree file", target)
	}

	prog, fs, err := compileTree(target, compiler.Options{
		BoundsChecks: boundsChecks(cmd, manifest),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, renderError(target, err, fs))
		os.Exit(1)
	}

	out, _ := cmd.Flags().GetString("output")
	if out == "" {
		out = strings.TrimSuffix(target, ".flt") + ".flc"
	}
	if err := prog.Save(out); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
	return nil
}
