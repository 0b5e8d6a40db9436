package version

import (
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestVersionShape(t *testing.T) {
	// Strip color codes so the assertion sees the plain digits.
	old := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = old }()

	plain := versionMajorColor.Sprint("0") + "." + versionMinorColor.Sprint("1") + "." + versionPatchColor.Sprint("0") + "-dev"
	if parts := strings.Split(strings.TrimSuffix(plain, "-dev"), "."); len(parts) != 3 {
		t.Errorf("version %q is not major.minor.patch", plain)
	}
}
