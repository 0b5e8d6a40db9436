package project

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[package]
name = "demo"
version = "0.1.0"
entry = "main.flt"

[build]
bounds_checks = true
`)
	m, err := Load(filepath.Join(dir, ManifestName))
	if err != nil {
		t.Fatal(err)
	}
	if m.Config.Package.Name != "demo" {
		t.Errorf("name = %q", m.Config.Package.Name)
	}
	if !m.Config.Build.BoundsChecks {
		t.Error("bounds_checks not read")
	}
	if got := m.EntryPath(); got != filepath.Join(dir, "main.flt") {
		t.Errorf("entry path = %q", got)
	}
}

func TestLoadRejectsIncomplete(t *testing.T) {
	tests := []struct {
		name, content, wantErr string
	}{
		{"no name", "[package]\nentry = \"main.flt\"\n", "[package].name"},
		{"no entry", "[package]\nname = \"x\"\n", "[package].entry"},
		{"bad entry ext", "[package]\nname = \"x\"\nentry = \"main.txt\"\n", ".flt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tt.content)
			_, err := Load(filepath.Join(dir, ManifestName))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}

func TestFindWalksUpward(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[package]\nname = \"x\"\nentry = \"main.flt\"\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	m, ok, err := Find(nested)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if m.Root != root {
		t.Errorf("root = %q, want %q", m.Root, root)
	}
}

func TestFindMisses(t *testing.T) {
	// A temp dir has no flint.toml anywhere above it in practice only if we
	// never planted one; the walk still terminates at the filesystem root.
	_, ok, err := Find(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Skip("a manifest exists above the temp dir on this machine")
	}
}
