package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"bindery/internal/config"
	"bindery/internal/logging"
	"bindery/internal/queue"
	"bindery/internal/textutil"
)

var supportedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".tif":  {},
	".tiff": {},
}

// settleDelay gives a dropped folder time to finish copying before import.
const settleDelay = 2 * time.Second

// Watcher imports folders dropped into the inbox directory as new books.
// Each import moves the folder into the book workspace's input directory
// and registers a pending book pointing at it.
type Watcher struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds an inbox watcher over the given store.
func New(store *queue.Store, cfg *config.Config, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{
		store:  store,
		cfg:    cfg,
		logger: logger.With(slog.String(logging.FieldComponent, "watcher")),
	}
}

// ScanOnce imports every candidate folder currently in the inbox and
// returns the ids of the registered books.
func (w *Watcher) ScanOnce(ctx context.Context) ([]string, error) {
	if err := w.cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	candidates, err := w.candidateDirs()
	if err != nil {
		return nil, err
	}

	var imported []string
	for _, dir := range candidates {
		ok, err := hasSupportedImages(dir)
		if err != nil || !ok {
			continue
		}
		id, err := w.importDir(ctx, dir)
		if err != nil {
			w.logger.Error("import failed",
				slog.String("source", dir),
				logging.Error(err))
			continue
		}
		imported = append(imported, id)
	}
	return imported, nil
}

func (w *Watcher) importDir(ctx context.Context, sourceDir string) (string, error) {
	id := queue.NewID()
	inputDir := filepath.Join(w.cfg.BooksDir(), id, "input")
	if err := os.MkdirAll(filepath.Dir(inputDir), 0o755); err != nil {
		return "", fmt.Errorf("create book directory: %w", err)
	}
	if err := os.Rename(sourceDir, inputDir); err != nil {
		return "", fmt.Errorf("move %s into workspace: %w", sourceDir, err)
	}

	book, err := w.store.NewBook(ctx, queue.NewBookParams{
		ID:           id,
		Title:        textutil.TitleFromPath(sourceDir),
		SourcePath:   inputDir,
		BooksRoot:    w.cfg.BooksDir(),
		Language:     w.cfg.OCR.Language,
		OptimizeMode: w.cfg.Pipeline.OptimizeMode,
		ErrorPolicy:  w.cfg.Pipeline.ErrorPolicy,
	})
	if err != nil {
		return "", err
	}
	w.logger.Info("imported book from inbox",
		slog.String(logging.FieldBookID, book.ID),
		slog.String("title", book.Title))
	return book.ID, nil
}

// Start launches the watch loop: an initial scan picks up folders dropped
// while nothing was watching, then fsnotify events trigger rescans.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return nil
	}

	if err := w.cfg.EnsureDirectories(); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fs watcher: %w", err)
	}
	if err := fsw.Add(w.cfg.Paths.InboxDir); err != nil {
		fsw.Close()
		return fmt.Errorf("watch inbox %s: %w", w.cfg.Paths.InboxDir, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})

	go w.loop(ctx, fsw)
	return nil
}

// Stop terminates the watch loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer close(w.done)
	defer fsw.Close()

	if _, err := w.ScanOnce(ctx); err != nil {
		w.logger.Error("initial inbox scan failed", logging.Error(err))
	}

	var settle *time.Timer
	settleC := make(<-chan time.Time)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if settle == nil {
				settle = time.NewTimer(settleDelay)
				settleC = settle.C
			} else {
				settle.Reset(settleDelay)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("inbox watch error", logging.Error(err))
		case <-settleC:
			settle = nil
			settleC = make(<-chan time.Time)
			if _, err := w.ScanOnce(ctx); err != nil {
				w.logger.Error("inbox scan failed", logging.Error(err))
			}
		}
	}
}

func (w *Watcher) candidateDirs() ([]string, error) {
	entries, err := os.ReadDir(w.cfg.Paths.InboxDir)
	if err != nil {
		return nil, fmt.Errorf("read inbox: %w", err)
	}
	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dirs = append(dirs, filepath.Join(w.cfg.Paths.InboxDir, entry.Name()))
	}
	sort.Strings(dirs)
	return dirs, nil
}

func hasSupportedImages(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := supportedExtensions[ext]; ok {
			return true, nil
		}
	}
	return false, nil
}
