package testsupport

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

// WritePageImages fills dir with count numbered page images named
// page_001.png onward. Each page carries a distinct shade so reordered
// output can be told apart in assertions.
func WritePageImages(t testing.TB, dir string, count int) []string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}

	paths := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		name := fmt.Sprintf("page_%03d.png", i)
		path := filepath.Join(dir, name)
		img := imaging.New(120, 160, color.NRGBA{R: uint8(i * 20 % 256), G: 0xEE, B: 0xDD, A: 0xFF})
		if err := imaging.Save(img, path); err != nil {
			t.Fatalf("save page image %s: %v", path, err)
		}
		paths = append(paths, path)
	}
	return paths
}

// WriteCorruptImage writes a file with an image extension but garbage content.
func WriteCorruptImage(t testing.TB, path string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write corrupt image %s: %v", path, err)
	}
}

// NewSourceDir creates a temp source directory populated with count page
// images and returns its path.
func NewSourceDir(t testing.TB, count int) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "scans")
	WritePageImages(t, dir, count)
	return dir
}
