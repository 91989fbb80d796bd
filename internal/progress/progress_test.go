package progress_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bindery/internal/config"
	"bindery/internal/manifest"
	"bindery/internal/progress"
	"bindery/internal/queue"
	"bindery/internal/testsupport"
)

func newHub(t *testing.T, opts ...testsupport.ConfigOption) (*progress.Hub, *queue.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	return progress.NewHub(store, cfg, nil), store, cfg
}

func collect(t *testing.T, events <-chan progress.Event, timeout time.Duration) []progress.Event {
	t.Helper()
	var out []progress.Event
	deadline := time.After(timeout)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, event)
		case <-deadline:
			t.Fatalf("timed out waiting for stream close; got %+v", out)
		}
	}
}

func TestWatchUnknownJob(t *testing.T) {
	hub, _, _ := newHub(t)

	events, err := hub.Watch(context.Background(), "missing")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	got := collect(t, events, 2*time.Second)
	if len(got) != 1 || got[0].Type != progress.TypeError {
		t.Fatalf("expected a single error event, got %+v", got)
	}
}

func TestWatchEmitsChangeOnlyProgressAndCompletion(t *testing.T) {
	hub, store, cfg := newHub(t)
	ctx := context.Background()

	book := testsupport.NewBook(t, store, cfg, "watched", "/data/scans/watched")
	job := testsupport.NewJob(t, store, book.ID)
	if _, err := store.ClaimByID(ctx, job.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := store.UpdateBookStatus(ctx, book.ID, queue.BookRunning, manifest.StageOCR); err != nil {
		t.Fatalf("set stage: %v", err)
	}

	events, err := hub.Watch(ctx, job.ID)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	first := <-events
	if first.Type != progress.TypeProgress || first.Percent != 60 || first.StepName != "ocr" {
		t.Fatalf("unexpected first event %+v", first)
	}

	// Identical state must not produce another event; finish the job and
	// expect exactly one more progress (done, 100) plus the completion.
	time.Sleep(5 * cfg.SampleInterval())
	if err := store.MarkJobDone(ctx, job.ID); err != nil {
		t.Fatalf("mark done: %v", err)
	}

	rest := collect(t, events, 2*time.Second)
	if len(rest) != 2 {
		t.Fatalf("expected progress+completion, got %+v", rest)
	}
	if rest[0].Type != progress.TypeProgress || rest[0].Percent != 100 {
		t.Fatalf("done status must force percent 100, got %+v", rest[0])
	}
	if rest[1].Type != progress.TypeCompletion || rest[1].Status != string(queue.JobDone) {
		t.Fatalf("unexpected completion %+v", rest[1])
	}
}

func TestWatchSessionLimit(t *testing.T) {
	hub, store, cfg := newHub(t, func(cfg *config.Config) {
		cfg.Progress.SessionLimit = 1
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	book := testsupport.NewBook(t, store, cfg, "limited", "/data/scans/limited")
	job := testsupport.NewJob(t, store, book.ID)

	events, err := hub.Watch(ctx, job.ID)
	if err != nil {
		t.Fatalf("first watch: %v", err)
	}
	_ = events

	if _, err := hub.Watch(ctx, job.ID); !errors.Is(err, progress.ErrSessionLimit) {
		t.Fatalf("expected ErrSessionLimit, got %v", err)
	}

	// Releasing the first session frees a slot.
	cancel()
	waitFor(t, func() bool { return hub.Sessions() == 0 })

	ctx2 := context.Background()
	if err := store.MarkJobDone(ctx2, job.ID); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	retry, err := hub.Watch(ctx2, job.ID)
	if err != nil {
		t.Fatalf("watch after release: %v", err)
	}
	collect(t, retry, 2*time.Second)
}

func TestWatchSessionLifetime(t *testing.T) {
	hub, store, cfg := newHub(t, func(cfg *config.Config) {
		cfg.Progress.SessionMaxSeconds = 1
	})
	ctx := context.Background()

	book := testsupport.NewBook(t, store, cfg, "expiring", "/data/scans/expiring")
	job := testsupport.NewJob(t, store, book.ID)

	events, err := hub.Watch(ctx, job.ID)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	// The job never reaches a terminal state, so only the lifetime bound
	// can close the stream.
	got := collect(t, events, 5*time.Second)
	for _, event := range got {
		if event.Type == progress.TypeCompletion {
			t.Fatalf("no completion expected, got %+v", got)
		}
	}
	waitFor(t, func() bool { return hub.Sessions() == 0 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached")
}
