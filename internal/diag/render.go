package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"flint/internal/source"
)

// RenderOpts controls terminal rendering of diagnostics.
type RenderOpts struct {
	Color bool
}

var (
	errColor  = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	infoColor = color.New(color.FgCyan)
	posColor  = color.New(color.Bold)
)

// Render prints one diagnostic as
//
//	<path>:<line>:<col>: <SEV> <CODE>: <message>
//
// followed by the offending source line and a caret underline covering the
// span, then any notes in the same format.
func Render(w io.Writer, d Diagnostic, fs *source.FileSet, opts RenderOpts) {
	renderOne(w, d.Severity, d.Code, d.Primary, d.Message, fs, opts)
	for _, n := range d.Notes {
		renderOne(w, SevInfo, d.Code, n.Span, n.Msg, fs, opts)
	}
}

// RenderBag renders every diagnostic in the bag in its current order.
func RenderBag(w io.Writer, bag *Bag, fs *source.FileSet, opts RenderOpts) {
	for _, d := range bag.Items() {
		Render(w, d, fs, opts)
	}
}

func renderOne(w io.Writer, sev Severity, code Code, span source.Span, msg string, fs *source.FileSet, opts RenderOpts) {
	file := fs.Get(span.File)
	start, _ := fs.Resolve(span)

	pos := fmt.Sprintf("%s:%d:%d:", file.Path, start.Line, start.Col)
	sevStr := sev.String()
	if opts.Color {
		pos = posColor.Sprint(pos)
		sevStr = severityColor(sev).Sprint(sevStr)
	}
	fmt.Fprintf(w, "%s %s %s: %s\n", pos, sevStr, code, msg)

	line := file.GetLine(start.Line)
	if line == "" {
		return
	}
	fmt.Fprintf(w, "  %s\n", line)

	// The caret line mirrors the display width of everything before the
	// span, then underlines the span itself.
	col := int(start.Col) - 1
	if col > len(line) {
		col = len(line)
	}
	pad := runewidth.StringWidth(line[:col])
	n := int(span.Len())
	if n < 1 {
		n = 1
	}
	if col+n > len(line) {
		n = len(line) - col
		if n < 1 {
			n = 1
		}
	}
	underline := "^" + strings.Repeat("~", runewidth.StringWidth(line[col:col+n])-1)
	if opts.Color {
		underline = severityColor(sev).Sprint(underline)
	}
	fmt.Fprintf(w, "  %s%s\n", strings.Repeat(" ", pad), underline)
}

func severityColor(sev Severity) *color.Color {
	switch sev {
	case SevError:
		return errColor
	case SevWarning:
		return warnColor
	default:
		return infoColor
	}
}
