package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"bindery/internal/testsupport"
	"bindery/internal/watcher"
)

func TestScanOnceImportsFolder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	dropDir := filepath.Join(cfg.Paths.InboxDir, "my-scans")
	testsupport.WritePageImages(t, dropDir, 3)

	w := watcher.New(store, cfg, nil)
	imported, err := w.ScanOnce(ctx)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(imported) != 1 {
		t.Fatalf("expected one import, got %d", len(imported))
	}

	book, err := store.GetBook(ctx, imported[0])
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	if book == nil {
		t.Fatal("imported book not registered")
	}
	if book.Title != "My Scans" {
		t.Fatalf("title should come from the folder name, got %q", book.Title)
	}

	// The folder moved out of the inbox and into the book workspace.
	if _, err := os.Stat(dropDir); !os.IsNotExist(err) {
		t.Fatal("inbox folder should have moved")
	}
	entries, err := os.ReadDir(book.SourcePath)
	if err != nil {
		t.Fatalf("read imported input: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 pages in input, got %d", len(entries))
	}
	if filepath.Dir(filepath.Dir(book.SourcePath)) != cfg.BooksDir() {
		t.Fatalf("input dir should live under the books root: %s", book.SourcePath)
	}
}

func TestScanOnceSkipsNonImageFolders(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	junkDir := filepath.Join(cfg.Paths.InboxDir, "notes")
	if err := os.MkdirAll(junkDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(junkDir, "readme.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	hiddenDir := filepath.Join(cfg.Paths.InboxDir, ".partial")
	testsupport.WritePageImages(t, hiddenDir, 1)

	w := watcher.New(store, cfg, nil)
	imported, err := w.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(imported) != 0 {
		t.Fatalf("expected no imports, got %v", imported)
	}
	if _, err := os.Stat(junkDir); err != nil {
		t.Fatal("non-image folder must stay in the inbox")
	}
}

func TestStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	w := watcher.New(store, cfg, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Second start is a no-op.
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	w.Stop()
	w.Stop()
}
