package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"bindery/internal/manifest"
	"bindery/internal/queue"
	"bindery/internal/testsupport"
)

func TestNewBookDefaults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	book := testsupport.NewBook(t, store, cfg, "", "/data/scans/alice")
	if book.Title != "alice" {
		t.Fatalf("expected title derived from source path, got %q", book.Title)
	}
	if book.Status != queue.BookPending {
		t.Fatalf("expected pending book, got %s", book.Status)
	}
	if book.CurrentStage != manifest.StageValidate {
		t.Fatalf("expected current stage validate, got %s", book.CurrentStage)
	}
	if book.BookDir == "" {
		t.Fatal("expected book dir to be assigned")
	}
}

func TestClaimNextEligibleExactlyOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	book := testsupport.NewBook(t, store, cfg, "race", "/data/scans/race")
	job := testsupport.NewJob(t, store, book.ID)

	const claimers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed []string
	)
	now := time.Now()
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := store.ClaimNextEligible(context.Background(), now)
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			if got != nil {
				mu.Lock()
				claimed = append(claimed, got.ID)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(claimed) != 1 {
		t.Fatalf("expected exactly one successful claim, got %d", len(claimed))
	}
	if claimed[0] != job.ID {
		t.Fatalf("claimed unexpected job %s", claimed[0])
	}

	refetched, err := store.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if refetched.Status != queue.JobRunning {
		t.Fatalf("expected running after claim, got %s", refetched.Status)
	}
	if refetched.StartedAt == nil {
		t.Fatal("expected started_at set on claim")
	}
}

func TestClaimRespectsScheduledAt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	book := testsupport.NewBook(t, store, cfg, "later", "/data/scans/later")
	now := time.Now()
	future := now.Add(10 * time.Minute)
	job, err := store.NewJob(context.Background(), book.ID, &future, false)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	got, err := store.ClaimNextEligible(context.Background(), now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if got != nil {
		t.Fatalf("future job should not be claimable yet, got %s", got.ID)
	}

	got, err = store.ClaimNextEligible(context.Background(), future.Add(time.Second))
	if err != nil {
		t.Fatalf("claim after schedule: %v", err)
	}
	if got == nil || got.ID != job.ID {
		t.Fatalf("expected job claimable once now passes scheduled_at, got %+v", got)
	}
}

func TestClaimOrdering(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	bookA := testsupport.NewBook(t, store, cfg, "a", "/data/scans/a")
	bookB := testsupport.NewBook(t, store, cfg, "b", "/data/scans/b")

	// The scheduled job predates the immediate one, so its effective
	// eligibility time sorts first.
	past := time.Now().Add(-time.Hour)
	scheduled, err := store.NewJob(ctx, bookA.ID, &past, false)
	if err != nil {
		t.Fatalf("new scheduled job: %v", err)
	}
	immediate := testsupport.NewJob(t, store, bookB.ID)

	first, err := store.ClaimNextEligible(ctx, time.Now())
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if first == nil || first.ID != scheduled.ID {
		t.Fatalf("expected earlier effective schedule first, got %+v", first)
	}

	second, err := store.ClaimNextEligible(ctx, time.Now())
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if second == nil || second.ID != immediate.ID {
		t.Fatalf("expected immediate job second, got %+v", second)
	}
}

func TestClaimOrderingSubsecond(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	bookA := testsupport.NewBook(t, store, cfg, "whole", "/data/scans/whole")
	bookB := testsupport.NewBook(t, store, cfg, "frac", "/data/scans/frac")

	// Eligibility comparisons happen on stored timestamp strings. A
	// whole-second schedule must still sort before one a fraction of a
	// second later, and must be eligible mid-second.
	base := time.Now().Add(-time.Minute).Truncate(time.Second)
	later := base.Add(100 * time.Millisecond)
	wholeSecond, err := store.NewJob(ctx, bookA.ID, &base, false)
	if err != nil {
		t.Fatalf("new whole-second job: %v", err)
	}
	fractional, err := store.NewJob(ctx, bookB.ID, &later, false)
	if err != nil {
		t.Fatalf("new fractional job: %v", err)
	}

	got, err := store.ClaimNextEligible(ctx, base.Add(50*time.Millisecond))
	if err != nil {
		t.Fatalf("mid-second claim: %v", err)
	}
	if got == nil || got.ID != wholeSecond.ID {
		t.Fatalf("whole-second schedule should be eligible mid-second, got %+v", got)
	}

	got, err = store.ClaimNextEligible(ctx, time.Now())
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if got == nil || got.ID != fractional.ID {
		t.Fatalf("fractional schedule should claim second, got %+v", got)
	}
}

func TestClaimByID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	book := testsupport.NewBook(t, store, cfg, "direct", "/data/scans/direct")
	job := testsupport.NewJob(t, store, book.ID)

	got, err := store.ClaimByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("claim by id: %v", err)
	}
	if got == nil || got.Status != queue.JobRunning {
		t.Fatalf("expected running job, got %+v", got)
	}

	again, err := store.ClaimByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("second claim by id: %v", err)
	}
	if again != nil {
		t.Fatal("a running job must not be claimable again")
	}

	missing, err := store.ClaimByID(ctx, "nope")
	if err != nil {
		t.Fatalf("claim missing: %v", err)
	}
	if missing != nil {
		t.Fatal("claiming an unknown id should yield nil")
	}
}

func TestCancelOnlyPending(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	book := testsupport.NewBook(t, store, cfg, "cancel", "/data/scans/cancel")
	job := testsupport.NewJob(t, store, book.ID)

	ok, err := store.CancelJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !ok {
		t.Fatal("pending job should cancel")
	}
	got, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.Status != queue.JobCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}

	running := testsupport.NewJob(t, store, book.ID)
	if _, err := store.ClaimByID(ctx, running.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	ok, err = store.CancelJob(ctx, running.ID)
	if err != nil {
		t.Fatalf("cancel running: %v", err)
	}
	if ok {
		t.Fatal("a running job must not be cancellable")
	}
}

func TestMarkDoneAndFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	book := testsupport.NewBook(t, store, cfg, "terminal", "/data/scans/terminal")
	done := testsupport.NewJob(t, store, book.ID)
	failed := testsupport.NewJob(t, store, book.ID)

	if err := store.MarkJobDone(ctx, done.ID); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	if err := store.MarkJobFailed(ctx, failed.ID, "ocr crashed"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	gotDone, err := store.GetJob(ctx, done.ID)
	if err != nil {
		t.Fatalf("get done: %v", err)
	}
	if gotDone.Status != queue.JobDone || gotDone.FinishedAt == nil {
		t.Fatalf("unexpected done job %+v", gotDone)
	}

	gotFailed, err := store.GetJob(ctx, failed.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if gotFailed.Status != queue.JobFailed || gotFailed.ErrorMessage != "ocr crashed" {
		t.Fatalf("unexpected failed job %+v", gotFailed)
	}
}

func TestRecoverInterrupted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	book := testsupport.NewBook(t, store, cfg, "crash", "/data/scans/crash")
	job := testsupport.NewJob(t, store, book.ID)
	if _, err := store.ClaimByID(ctx, job.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := store.UpdateBookStatus(ctx, book.ID, queue.BookRunning, manifest.StageOCR); err != nil {
		t.Fatalf("mark book running: %v", err)
	}

	untouched := testsupport.NewBook(t, store, cfg, "safe", "/data/scans/safe")
	pending := testsupport.NewJob(t, store, untouched.ID)

	count, err := store.RecoverInterrupted(ctx, queue.InterruptedMessage)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one recovered job, got %d", count)
	}

	gotJob, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if gotJob.Status != queue.JobFailed || gotJob.ErrorMessage != queue.InterruptedMessage {
		t.Fatalf("interrupted job not failed: %+v", gotJob)
	}

	gotBook, err := store.GetBook(ctx, book.ID)
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	if gotBook.Status != queue.BookFailed {
		t.Fatalf("interrupted book not failed: %s", gotBook.Status)
	}

	gotPending, err := store.GetJob(ctx, pending.ID)
	if err != nil {
		t.Fatalf("get pending: %v", err)
	}
	if gotPending.Status != queue.JobPending {
		t.Fatalf("pending job must survive recovery untouched, got %s", gotPending.Status)
	}
}

func TestPatchBookSettingsFrozenAfterStart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	book := testsupport.NewBook(t, store, cfg, "patch", "/data/scans/patch")

	lang := "eng"
	patched, err := store.PatchBookSettings(ctx, book.ID, queue.SettingsPatch{Language: &lang})
	if err != nil {
		t.Fatalf("patch pending: %v", err)
	}
	if patched.Language != "eng" {
		t.Fatalf("language not patched: %q", patched.Language)
	}

	if err := store.UpdateBookStatus(ctx, book.ID, queue.BookRunning, ""); err != nil {
		t.Fatalf("mark running: %v", err)
	}
	if _, err := store.PatchBookSettings(ctx, book.ID, queue.SettingsPatch{Language: &lang}); err == nil {
		t.Fatal("settings must be frozen once the book leaves pending")
	}
}

func TestRemoveBookCascadesJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	book := testsupport.NewBook(t, store, cfg, "gone", "/data/scans/gone")
	job := testsupport.NewJob(t, store, book.ID)

	removed, err := store.RemoveBook(ctx, book.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !removed {
		t.Fatal("expected removal")
	}
	gotJob, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if gotJob != nil {
		t.Fatal("jobs must cascade with their book")
	}
}

func TestJobStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	book := testsupport.NewBook(t, store, cfg, "stats", "/data/scans/stats")
	testsupport.NewJob(t, store, book.ID)
	done := testsupport.NewJob(t, store, book.ID)
	if err := store.MarkJobDone(ctx, done.ID); err != nil {
		t.Fatalf("mark done: %v", err)
	}

	stats, err := store.JobStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 2 || stats.Pending != 1 || stats.Done != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
