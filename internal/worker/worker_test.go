package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bindery/internal/manifest"
	"bindery/internal/pipeline"
	"bindery/internal/queue"
	"bindery/internal/testsupport"
	"bindery/internal/worker"
)

type stubRunner struct {
	err    error
	params []pipeline.Params
	hook   func(pipeline.Params)
}

func (s *stubRunner) Run(_ context.Context, params pipeline.Params) (*pipeline.Outcome, error) {
	s.params = append(s.params, params)
	if s.hook != nil {
		s.hook(params)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &pipeline.Outcome{}, nil
}

func TestProcessOnceEmptyQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	w := worker.New(store, &stubRunner{}, cfg, nil)

	processed, err := w.ProcessOnce(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("process once: %v", err)
	}
	if processed {
		t.Fatal("nothing should be claimed from an empty queue")
	}
}

func TestProcessOnceSuccess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	book := testsupport.NewBook(t, store, cfg, "ok", "/data/scans/ok")
	job := testsupport.NewJob(t, store, book.ID)

	runner := &stubRunner{}
	w := worker.New(store, runner, cfg, nil)

	processed, err := w.ProcessOnce(ctx, time.Now())
	if err != nil {
		t.Fatalf("process once: %v", err)
	}
	if !processed {
		t.Fatal("expected the job to be claimed")
	}
	if len(runner.params) != 1 {
		t.Fatalf("expected one pipeline run, got %d", len(runner.params))
	}
	if runner.params[0].BookID != book.ID || runner.params[0].Resume {
		t.Fatalf("unexpected pipeline params %+v", runner.params[0])
	}

	gotJob, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if gotJob.Status != queue.JobDone {
		t.Fatalf("expected done job, got %s", gotJob.Status)
	}
	gotBook, err := store.GetBook(ctx, book.ID)
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	if gotBook.Status != queue.BookDone || gotBook.CurrentStage != manifest.StageFinalize {
		t.Fatalf("unexpected book state %s/%s", gotBook.Status, gotBook.CurrentStage)
	}
}

func TestProcessJobFailureReadsStageFromManifest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	book := testsupport.NewBook(t, store, cfg, "broken", "/data/scans/broken")
	job := testsupport.NewJob(t, store, book.ID)

	// The stub fails after writing a manifest that stopped at ocr, the way
	// a real run leaves the checkpoint behind.
	runner := &stubRunner{err: errors.New("ocr blew up")}
	runner.hook = func(params pipeline.Params) {
		m, err := manifest.Create(params.BookDir, params.BookID, params.Title, params.Settings)
		if err != nil {
			t.Fatalf("create manifest: %v", err)
		}
		for _, stage := range []manifest.Stage{manifest.StageValidate, manifest.StageAssemble} {
			if err := m.SetStageStatus(stage, manifest.StatusDone); err != nil {
				t.Fatalf("set stage: %v", err)
			}
		}
		if err := m.SetStageStatus(manifest.StageOCR, manifest.StatusFailed); err != nil {
			t.Fatalf("set failed stage: %v", err)
		}
	}

	w := worker.New(store, runner, cfg, nil)
	processed, err := w.ProcessJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("process job: %v", err)
	}
	if !processed {
		t.Fatal("expected the job to be claimed")
	}

	gotJob, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if gotJob.Status != queue.JobFailed || gotJob.ErrorMessage == "" {
		t.Fatalf("unexpected job state %+v", gotJob)
	}

	gotBook, err := store.GetBook(ctx, book.ID)
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	if gotBook.Status != queue.BookFailed {
		t.Fatalf("expected failed book, got %s", gotBook.Status)
	}
	if gotBook.CurrentStage != manifest.StageOCR {
		t.Fatalf("book stage should come from the manifest, got %s", gotBook.CurrentStage)
	}
}

func TestProcessJobUnknownID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	w := worker.New(store, &stubRunner{}, cfg, nil)

	processed, err := w.ProcessJob(context.Background(), "missing")
	if err != nil {
		t.Fatalf("process job: %v", err)
	}
	if processed {
		t.Fatal("unknown job must not be processed")
	}
}

func TestRunRecoversThenProcesses(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	stuck := testsupport.NewBook(t, store, cfg, "stuck", "/data/scans/stuck")
	stuckJob := testsupport.NewJob(t, store, stuck.ID)
	if _, err := store.ClaimByID(ctx, stuckJob.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}

	fresh := testsupport.NewBook(t, store, cfg, "fresh", "/data/scans/fresh")
	freshJob := testsupport.NewJob(t, store, fresh.ID)

	runner := &stubRunner{}
	w := worker.New(store, runner, cfg, nil)
	if err := w.Run(ctx, 1); err != nil {
		t.Fatalf("run: %v", err)
	}

	gotStuck, err := store.GetJob(ctx, stuckJob.ID)
	if err != nil {
		t.Fatalf("get stuck job: %v", err)
	}
	if gotStuck.Status != queue.JobFailed || gotStuck.ErrorMessage != queue.InterruptedMessage {
		t.Fatalf("interrupted job not recovered: %+v", gotStuck)
	}

	gotFresh, err := store.GetJob(ctx, freshJob.ID)
	if err != nil {
		t.Fatalf("get fresh job: %v", err)
	}
	if gotFresh.Status != queue.JobDone {
		t.Fatalf("fresh job should have run, got %s", gotFresh.Status)
	}
}
