package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"flint/internal/bytecode"
	"flint/internal/compiler"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm <file.flt|file.flc>",
	Short: "Print a program's instruction listing",
	Args:  cobra.ExactArgs(1),
	RunE:  runDisasm,
}

func init() {
	disasmCmd.Flags().Bool("rom", false, "include a hex dump of the read-only segment")
}

func runDisasm(cmd *cobra.Command, args []string) error {
	useColor := colorEnabled(cmd)

	prog, fs, err := loadProgram(args[0], compiler.Options{})
	if err != nil {
		fmt.Fprintln(os.Stderr, renderError(args[0], err, fs))
		os.Exit(1)
	}

	showRom, _ := cmd.Flags().GetBool("rom")
	return bytecode.Disassemble(cmd.OutOrStdout(), prog, bytecode.DisasmOptions{
		Color:   useColor,
		ShowRom: showRom,
	})
}
