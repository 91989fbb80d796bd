package progress

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"bindery/internal/config"
	"bindery/internal/logging"
	"bindery/internal/manifest"
	"bindery/internal/queue"
)

// StagePercent maps each stage to its fixed completion percentage.
var StagePercent = map[manifest.Stage]int{
	manifest.StageValidate: 20,
	manifest.StageAssemble: 40,
	manifest.StageOCR:      60,
	manifest.StageOptimize: 80,
	manifest.StageFinalize: 100,
}

// Event types emitted on a progress stream.
const (
	TypeProgress   = "progress"
	TypeCompletion = "completion"
	TypeError      = "error"
)

// Event is one message on a progress stream.
type Event struct {
	Type     string `json:"type"`
	JobID    string `json:"job_id,omitempty"`
	Status   string `json:"status,omitempty"`
	StepName string `json:"step_name,omitempty"`
	Percent  int    `json:"percent,omitempty"`
	Message  string `json:"message,omitempty"`
}

// ErrSessionLimit signals that the concurrent session cap is reached.
// Excess observers are rejected, never queued.
var ErrSessionLimit = errors.New("progress session limit reached")

// Hub hands out bounded progress streams over the shared store.
type Hub struct {
	store          *queue.Store
	logger         *slog.Logger
	sampleInterval time.Duration
	maxLifetime    time.Duration
	sessionLimit   int

	mu       sync.Mutex
	sessions int
}

// NewHub builds a Hub with the configured session bounds.
func NewHub(store *queue.Store, cfg *config.Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	sample := cfg.SampleInterval()
	if sample <= 0 {
		sample = 200 * time.Millisecond
	}
	lifetime := cfg.SessionLifetime()
	if lifetime <= 0 {
		lifetime = 600 * time.Second
	}
	limit := cfg.Progress.SessionLimit
	if limit <= 0 {
		limit = 100
	}
	return &Hub{
		store:          store,
		logger:         logger.With(slog.String(logging.FieldComponent, "progress")),
		sampleInterval: sample,
		maxLifetime:    lifetime,
		sessionLimit:   limit,
	}
}

// Sessions returns the number of live streams.
func (h *Hub) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions
}

// Watch opens a stream of events for one job. The stream closes after the
// final completion event, after an error event, when ctx is cancelled, or
// when the session lifetime expires. A full hub rejects the request.
func (h *Hub) Watch(ctx context.Context, jobID string) (<-chan Event, error) {
	if !h.acquire() {
		return nil, ErrSessionLimit
	}
	events := make(chan Event, 16)
	go h.observe(ctx, jobID, events)
	return events, nil
}

func (h *Hub) acquire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions >= h.sessionLimit {
		return false
	}
	h.sessions++
	return true
}

func (h *Hub) release() {
	h.mu.Lock()
	h.sessions--
	h.mu.Unlock()
}

// observe samples (job.status, book.current_stage) and forwards an event
// only when the pair changes from the last emitted value.
func (h *Hub) observe(ctx context.Context, jobID string, events chan<- Event) {
	defer h.release()
	defer close(events)

	deadline := time.NewTimer(h.maxLifetime)
	defer deadline.Stop()
	ticker := time.NewTicker(h.sampleInterval)
	defer ticker.Stop()

	var (
		lastStatus queue.JobStatus
		lastStage  manifest.Stage
		emitted    bool
	)

	for {
		job, err := h.store.GetJob(ctx, jobID)
		if err != nil {
			h.send(ctx, events, Event{Type: TypeError, Message: err.Error()})
			return
		}
		if job == nil {
			h.send(ctx, events, Event{Type: TypeError, Message: "Job not found"})
			return
		}

		stage := manifest.StageValidate
		book, err := h.store.GetBook(ctx, job.BookID)
		if err == nil && book != nil && book.CurrentStage.Valid() {
			stage = book.CurrentStage
		}

		if !emitted || job.Status != lastStatus || stage != lastStage {
			if !h.send(ctx, events, progressEvent(jobID, job.Status, stage)) {
				return
			}
			lastStatus, lastStage, emitted = job.Status, stage, true
		}

		if job.Status.Terminal() {
			h.send(ctx, events, Event{Type: TypeCompletion, JobID: jobID, Status: string(job.Status)})
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			h.logger.Debug("session lifetime reached", slog.String(logging.FieldJobID, jobID))
			return
		case <-ticker.C:
		}
	}
}

func (h *Hub) send(ctx context.Context, events chan<- Event, event Event) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

func progressEvent(jobID string, status queue.JobStatus, stage manifest.Stage) Event {
	percent := StagePercent[stage]
	if status == queue.JobDone {
		percent = 100
	}
	return Event{
		Type:     TypeProgress,
		JobID:    jobID,
		Status:   string(status),
		StepName: string(stage),
		Percent:  percent,
	}
}
