package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"

	"bindery/internal/config"
	"bindery/internal/logging"
	"bindery/internal/manifest"
	"bindery/internal/pipeline"
	"bindery/internal/queue"
)

// PipelineRunner is the execution contract the worker drives. The
// production implementation is pipeline.Runner.
type PipelineRunner interface {
	Run(ctx context.Context, params pipeline.Params) (*pipeline.Outcome, error)
}

// Worker claims jobs one at a time and executes the pipeline for each.
// Correctness against other pollers rests on the store's atomic claim, not
// on anything in this package; the run lock only prevents two full worker
// processes on one workspace.
type Worker struct {
	store        *queue.Store
	runner       PipelineRunner
	cfg          *config.Config
	logger       *slog.Logger
	pollInterval time.Duration
}

// New assembles a worker over the given store and pipeline runner.
func New(store *queue.Store, runner PipelineRunner, cfg *config.Config, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = logging.NewNop()
	}
	poll := cfg.PollInterval()
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &Worker{
		store:        store,
		runner:       runner,
		cfg:          cfg,
		logger:       logger.With(slog.String(logging.FieldComponent, "worker")),
		pollInterval: poll,
	}
}

// RecoverInterrupted fails every job a dead worker left running, together
// with its book. Runs once before polling begins.
func (w *Worker) RecoverInterrupted(ctx context.Context) (int64, error) {
	count, err := w.store.RecoverInterrupted(ctx, queue.InterruptedMessage)
	if err != nil {
		return 0, fmt.Errorf("recover interrupted jobs: %w", err)
	}
	if count > 0 {
		w.logger.Warn("recovered interrupted jobs", slog.Int64("count", count))
	}
	return count, nil
}

// ProcessOnce claims the next eligible job and executes it synchronously.
// It reports false when nothing was eligible, signalling the caller to
// back off.
func (w *Worker) ProcessOnce(ctx context.Context, now time.Time) (bool, error) {
	job, err := w.store.ClaimNextEligible(ctx, now)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	w.executeJob(ctx, job)
	return true, nil
}

// ProcessJob claims one specific pending job and executes it. Used for
// explicit run-now requests; reports false when the job is missing or no
// longer pending.
func (w *Worker) ProcessJob(ctx context.Context, jobID string) (bool, error) {
	existing, err := w.store.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	job, err := w.store.ClaimByID(ctx, jobID)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	w.executeJob(ctx, job)
	return true, nil
}

func (w *Worker) executeJob(ctx context.Context, job *queue.Job) {
	logger := w.logger.With(slog.String(logging.FieldJobID, job.ID))

	book, err := w.store.GetBook(ctx, job.BookID)
	if err != nil {
		w.failJob(ctx, logger, job, fmt.Sprintf("load book %s: %v", job.BookID, err))
		return
	}
	if book == nil {
		w.failJob(ctx, logger, job, fmt.Sprintf("Book not found: %s", job.BookID))
		return
	}

	logger = logger.With(slog.String(logging.FieldBookID, book.ID))
	if err := w.store.UpdateBookStatus(ctx, book.ID, queue.BookRunning, ""); err != nil {
		logger.Error("mark book running", logging.Error(err))
	}

	logger.Info("job started", slog.Bool("resume", job.Resume))
	_, runErr := w.runner.Run(ctx, pipeline.Params{
		BookID:     book.ID,
		Title:      book.Title,
		SourcePath: book.SourcePath,
		BookDir:    book.BookDir,
		Settings:   book.Settings(),
		Resume:     job.Resume,
	})
	if runErr == nil {
		if err := w.store.MarkJobDone(ctx, job.ID); err != nil {
			logger.Error("mark job done", logging.Error(err))
		}
		if err := w.store.UpdateBookStatus(ctx, book.ID, queue.BookDone, manifest.StageFinalize); err != nil {
			logger.Error("mark book done", logging.Error(err))
		}
		logger.Info("job finished")
		return
	}

	if err := w.store.MarkJobFailed(ctx, job.ID, runErr.Error()); err != nil {
		logger.Error("mark job failed", logging.Error(err))
	}

	// The manifest records exactly where the run stopped; surface that on
	// the book so clients see failure locality without a stack trace.
	stage, ok, readErr := manifest.ReadCurrentStage(book.BookDir)
	if readErr != nil {
		logger.Error("read manifest after failure", logging.Error(readErr))
	}
	if !ok {
		stage = ""
	}
	if err := w.store.UpdateBookStatus(ctx, book.ID, queue.BookFailed, stage); err != nil {
		logger.Error("mark book failed", logging.Error(err))
	}
	logger.Error("job failed", logging.Error(runErr))
}

func (w *Worker) failJob(ctx context.Context, logger *slog.Logger, job *queue.Job, message string) {
	if err := w.store.MarkJobFailed(ctx, job.ID, message); err != nil {
		logger.Error("mark job failed", logging.Error(err))
	}
	logger.Error("job failed before execution", slog.String("reason", message))
}

// Run recovers interrupted jobs once, then polls until ctx is cancelled or
// maxIterations claim attempts have happened. maxIterations <= 0 polls
// forever. The workspace run lock guarantees a single worker process.
func (w *Worker) Run(ctx context.Context, maxIterations int) error {
	lock := flock.New(w.cfg.LockFilePath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire worker lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another worker already holds %s", w.cfg.LockFilePath())
	}
	defer func() { _ = lock.Unlock() }()

	if _, err := w.RecoverInterrupted(ctx); err != nil {
		return err
	}

	iterations := 0
	for {
		if maxIterations > 0 && iterations >= maxIterations {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return nil
		}

		processed, err := w.ProcessOnce(ctx, time.Now().UTC())
		if err != nil {
			w.logger.Error("poll failed", logging.Error(err))
		}
		iterations++

		if !processed {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.pollInterval):
			}
		}
	}
}
