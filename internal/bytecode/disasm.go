package bytecode

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// DisasmOptions controls the listing output.
type DisasmOptions struct {
	Color   bool // style section headers and function labels
	ShowRom bool // include a hex dump of the read-only segment
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	labelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	offsetStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Disassemble writes a human-readable listing of the program, one instruction
// per line with its absolute code offset. Function bodies are labelled at
// their entry offsets.
func Disassemble(w io.Writer, p *Program, opts DisasmOptions) error {
	style := func(s lipgloss.Style, text string) string {
		if !opts.Color {
			return text
		}
		return s.Render(text)
	}

	entries := make(map[uint64]Function, len(p.Funcs))
	for _, f := range p.Funcs {
		entries[f.Entry] = f
	}

	if opts.ShowRom && len(p.Rom) > 0 {
		if _, err := fmt.Fprintln(w, style(headerStyle, "rom:")); err != nil {
			return err
		}
		if err := dumpRom(w, p.Rom, opts, style); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintln(w, style(headerStyle, "code:")); err != nil {
		return err
	}
	pc := 0
	for pc < len(p.Code) {
		if f, ok := entries[uint64(pc)]; ok {
			label := fmt.Sprintf("%s [id=%d]:", f.Name, f.ID)
			if _, err := fmt.Fprintln(w, style(labelStyle, label)); err != nil {
				return err
			}
		}
		op := Op(p.Code[pc])
		width := op.OperandWidth()
		if pc+1+width > len(p.Code) {
			return fmt.Errorf("truncated instruction %s at offset %d", op, pc)
		}
		line := fmt.Sprintf("  %s  %-18s%s",
			style(offsetStyle, fmt.Sprintf("%06d", pc)),
			op.String(),
			formatOperand(p, op, pc+1))
		if _, err := fmt.Fprintln(w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
		pc += 1 + width
	}
	return nil
}

func formatOperand(p *Program, op Op, at int) string {
	switch op {
	case OpPushChar:
		return fmt.Sprintf("%q", p.Code[at])
	case OpPushBool:
		return fmt.Sprintf("%t", p.Code[at] != 0)
	case OpPushI32:
		return fmt.Sprintf("%d", int32(ReadU32(p.Code, at)))
	case OpPushI64:
		return fmt.Sprintf("%d", int64(ReadU64(p.Code, at)))
	case OpPushF64:
		return fmt.Sprintf("%g", ReadF64(p.Code, at))
	case OpPushString, OpAssert, OpAssertBounds:
		off := ReadU64(p.Code, at)
		length := ReadU64(p.Code, at+8)
		return fmt.Sprintf("%q", romString(p.Rom, off, length))
	case OpPushFuncPtr, OpCall:
		return fmt.Sprintf("%d", ReadU64(p.Code, at))
	default:
		if op.OperandWidth() == 8 {
			return fmt.Sprintf("%d", ReadU64(p.Code, at))
		}
		return ""
	}
}

func romString(rom []byte, off, length uint64) string {
	start := Untag(off)
	if start+length > uint64(len(rom)) {
		return "<out of range>"
	}
	return string(rom[start : start+length])
}

const romBytesPerLine = 16

func dumpRom(w io.Writer, rom []byte, opts DisasmOptions, style func(lipgloss.Style, string) string) error {
	for base := 0; base < len(rom); base += romBytesPerLine {
		end := min(base+romBytesPerLine, len(rom))
		var hex, ascii strings.Builder
		for i := base; i < end; i++ {
			fmt.Fprintf(&hex, "%02x ", rom[i])
			if rom[i] >= 0x20 && rom[i] < 0x7f {
				ascii.WriteByte(rom[i])
			} else {
				ascii.WriteByte('.')
			}
		}
		_, err := fmt.Fprintf(w, "  %s  %-*s %s\n",
			style(offsetStyle, fmt.Sprintf("%06d", base)),
			romBytesPerLine*3, hex.String(), ascii.String())
		if err != nil {
			return err
		}
	}
	return nil
}
