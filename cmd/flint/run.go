package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"flint/internal/compiler"
	"flint/internal/vm"
)

var runCmd = &cobra.Command{
	Use:   "run [file.flt|file.flc]",
	Short: "Compile and execute a program",
	Long: `Compile a tree file (or load an already compiled program) and execute it
on the VM. Without an argument the project manifest's entry point runs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExecution,
}

func init() {
	runCmd.Flags().Bool("trace", false, "list every executed instruction on stderr")
	runCmd.Flags().Bool("bounds-checks", false, "emit a bounds check on every subscript")
}

func runExecution(cmd *cobra.Command, args []string) error {
	colorEnabled(cmd)

	target, manifest, err := resolveTarget(args)
	if err != nil {
		return err
	}

	prog, fs, err := loadProgram(target, compiler.Options{
		BoundsChecks: boundsChecks(cmd, manifest),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, renderError(target, err, fs))
		os.Exit(1)
	}

	opts := vm.Options{Stdout: os.Stdout}
	if trace, _ := cmd.Flags().GetBool("trace"); trace {
		opts.Trace = os.Stderr
	}
	if err := vm.Run(prog, opts); err != nil {
		fmt.Fprintln(os.Stderr, renderError(target, err, fs))
		os.Exit(1)
	}
	return nil
}
