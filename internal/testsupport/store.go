package testsupport

import (
	"context"
	"testing"

	"bindery/internal/config"
	"bindery/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewBook registers a book for tests using the provided store and config
// defaults.
func NewBook(t testing.TB, store *queue.Store, cfg *config.Config, title, sourcePath string) *queue.Book {
	t.Helper()

	book, err := store.NewBook(context.Background(), queue.NewBookParams{
		Title:        title,
		SourcePath:   sourcePath,
		BooksRoot:    cfg.BooksDir(),
		Language:     cfg.OCR.Language,
		OptimizeMode: cfg.Pipeline.OptimizeMode,
		ErrorPolicy:  cfg.Pipeline.ErrorPolicy,
	})
	if err != nil {
		t.Fatalf("store.NewBook: %v", err)
	}
	return book
}

// NewJob creates an immediately eligible job for tests.
func NewJob(t testing.TB, store *queue.Store, bookID string) *queue.Job {
	t.Helper()

	job, err := store.NewJob(context.Background(), bookID, nil, false)
	if err != nil {
		t.Fatalf("store.NewJob: %v", err)
	}
	return job
}
