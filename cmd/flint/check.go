package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"flint/internal/compiler"
	"flint/internal/diag"
	"flint/internal/project"
	"flint/internal/source"
)

// maxCheckDiags caps the diagnostics one check run accumulates.
const maxCheckDiags = 256

var checkCmd = &cobra.Command{
	Use:   "check [dir]",
	Short: "Compile every tree file under a directory, reporting errors",
	Long: `Front-end every .flt tree file under the directory (default: the project
root) in parallel. Nothing is written; the exit status reflects whether all
files compile.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	useColor := colorEnabled(cmd)

	root := "."
	switch {
	case len(args) == 1:
		root = args[0]
	default:
		if m, ok, err := project.Find("."); err != nil {
			return err
		} else if ok {
			root = m.Root
		}
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".flt" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .flt tree files under %s", root)
	}

	// Each file compiles against its own file set; diagnostics are remapped
	// into one shared set so the bag can sort and render them together.
	// Failures without a diagnostic (unreadable or sourceless trees) fall
	// back to plain strings.
	var (
		mu     sync.Mutex
		shared = source.NewFileSet()
		bag    = diag.NewBag(maxCheckDiags)
		plain  []string
		failed int
	)
	reporter := diag.BagReporter{Bag: bag}
	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, path := range files {
		path := path
		g.Go(func() error {
			_, localFS, err := compileTree(path, compiler.Options{})
			if err == nil {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			failed++

			var ce *diag.CompileError
			if errors.As(err, &ce) && localFS != nil {
				local := localFS.Get(ce.Diag.Primary.File)
				id := shared.Add(local.Path, local.Content)
				d := ce.Diag
				d.Primary.File = id
				for i := range d.Notes {
					d.Notes[i].Span.File = id
				}
				reporter.Report(d.Code, d.Severity, d.Primary, d.Message, d.Notes)
				return nil
			}
			plain = append(plain, renderError(path, err, nil))
			return nil
		})
	}
	g.Wait()

	bag.Sort()
	diag.RenderBag(os.Stderr, bag, shared, diag.RenderOpts{Color: useColor})
	sort.Strings(plain)
	for _, f := range plain {
		fmt.Fprintln(os.Stderr, f)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to compile", failed, len(files))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "checked %d tree files\n", len(files))
	return nil
}
