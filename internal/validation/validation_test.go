package validation_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"bindery/internal/testsupport"
	"bindery/internal/validation"
)

func TestValidateAcceptsSequentialPages(t *testing.T) {
	dir := testsupport.NewSourceDir(t, 4)

	result, err := validation.Validate(dir)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.TotalPages != 4 {
		t.Fatalf("expected 4 pages, got %d", result.TotalPages)
	}
	if result.TotalSizeBytes <= 0 {
		t.Fatal("expected non-zero total size")
	}
	for i, file := range result.Files {
		if file.Number != i+1 {
			t.Fatalf("file %d has page number %d", i, file.Number)
		}
	}
}

func TestValidateEmptyDirectory(t *testing.T) {
	dir := t.TempDir()

	_, err := validation.Validate(dir)
	if !errors.Is(err, validation.ErrNoImages) {
		t.Fatalf("expected ErrNoImages, got %v", err)
	}
	if !validation.IsValidationError(err) {
		t.Fatal("no-images should classify as a validation error")
	}
}

func TestValidateDetectsMissingPage(t *testing.T) {
	dir := testsupport.NewSourceDir(t, 4)
	if err := os.Remove(filepath.Join(dir, "page_003.png")); err != nil {
		t.Fatalf("remove page: %v", err)
	}

	_, err := validation.Validate(dir)
	var missing *validation.MissingPagesError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingPagesError, got %v", err)
	}
	if len(missing.Pages) != 1 || missing.Pages[0] != 3 {
		t.Fatalf("unexpected missing pages %v", missing.Pages)
	}
}

func TestValidateDetectsDuplicatePage(t *testing.T) {
	dir := testsupport.NewSourceDir(t, 3)
	src, err := os.ReadFile(filepath.Join(dir, "page_002.png"))
	if err != nil {
		t.Fatalf("read page: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "002_copy.png"), src, 0o644); err != nil {
		t.Fatalf("write duplicate: %v", err)
	}

	_, err = validation.Validate(dir)
	var duplicate *validation.DuplicatePagesError
	if !errors.As(err, &duplicate) {
		t.Fatalf("expected DuplicatePagesError, got %v", err)
	}
	if len(duplicate.Pages) != 1 || duplicate.Pages[0] != 2 {
		t.Fatalf("unexpected duplicate pages %v", duplicate.Pages)
	}
}

func TestValidateDetectsCorruptImage(t *testing.T) {
	dir := testsupport.NewSourceDir(t, 2)
	testsupport.WriteCorruptImage(t, filepath.Join(dir, "page_003.png"))

	_, err := validation.Validate(dir)
	var corrupt *validation.CorruptImageError
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected CorruptImageError, got %v", err)
	}
	if filepath.Base(corrupt.Path) != "page_003.png" {
		t.Fatalf("unexpected corrupt path %s", corrupt.Path)
	}
}

func TestValidateRejectsNonNumericName(t *testing.T) {
	dir := testsupport.NewSourceDir(t, 2)
	testsupport.WriteCorruptImage(t, filepath.Join(dir, "cover.png"))

	if _, err := validation.Validate(dir); err == nil {
		t.Fatal("expected error for file without numeric prefix")
	}
}

func TestExtractPageNumber(t *testing.T) {
	cases := []struct {
		name   string
		number int
		ok     bool
	}{
		{"001.png", 1, true},
		{"12_scan.jpeg", 12, true},
		{"0042-left.tif", 42, true},
		{"cover.png", 0, false},
	}
	for _, tc := range cases {
		got, err := validation.ExtractPageNumber(tc.name)
		if tc.ok {
			if err != nil {
				t.Fatalf("%s: %v", tc.name, err)
			}
			if got != tc.number {
				t.Fatalf("%s: expected %d, got %d", tc.name, tc.number, got)
			}
			continue
		}
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestListPageFilesSortsNumerically(t *testing.T) {
	dir := t.TempDir()
	fixture := testsupport.WritePageImages(t, t.TempDir(), 1)[0]
	src, err := os.ReadFile(fixture)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	for _, name := range []string{"10.png", "2.png", "1.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), src, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	files, err := validation.ListPageFiles(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var numbers []int
	for _, file := range files {
		numbers = append(numbers, file.Number)
	}
	want := []int{1, 2, 10}
	for i, number := range want {
		if numbers[i] != number {
			t.Fatalf("expected order %v, got %v", want, numbers)
		}
	}
}
