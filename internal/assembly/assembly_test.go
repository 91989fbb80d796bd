package assembly_test

import (
	"os"
	"path/filepath"
	"testing"

	"bindery/internal/assembly"
	"bindery/internal/testsupport"
)

func TestAssembleProducesRawPDF(t *testing.T) {
	sourceDir := testsupport.NewSourceDir(t, 3)
	stageDir := filepath.Join(t.TempDir(), "stage")

	result, err := assembly.Assemble(sourceDir, stageDir, nil, nil)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if result.PageCount != 3 {
		t.Fatalf("expected 3 pages, got %d", result.PageCount)
	}
	info, err := os.Stat(result.RawPDF)
	if err != nil {
		t.Fatalf("stat raw pdf: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("raw pdf is empty")
	}
	if filepath.Base(result.RawPDF) != assembly.RawPDFName {
		t.Fatalf("unexpected raw pdf name %s", result.RawPDF)
	}
}

func TestAssembleWithCovers(t *testing.T) {
	sourceDir := testsupport.NewSourceDir(t, 4)
	stageDir := filepath.Join(t.TempDir(), "stage")

	front, back := 3, 1
	result, err := assembly.Assemble(sourceDir, stageDir, &front, &back)
	if err != nil {
		t.Fatalf("assemble with covers: %v", err)
	}
	if result.PageCount != 4 {
		t.Fatalf("expected 4 pages, got %d", result.PageCount)
	}
}

func TestAssembleEmptyDirectory(t *testing.T) {
	stageDir := filepath.Join(t.TempDir(), "stage")
	if _, err := assembly.Assemble(t.TempDir(), stageDir, nil, nil); err == nil {
		t.Fatal("expected error for empty source directory")
	}
}
