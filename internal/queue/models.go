package queue

import (
	"strings"
	"time"

	"bindery/internal/manifest"
)

// BookStatus represents the lifecycle of a registered book.
type BookStatus string

const (
	BookPending BookStatus = "pending"
	BookRunning BookStatus = "running"
	BookDone    BookStatus = "done"
	BookFailed  BookStatus = "failed"
)

// JobStatus represents the lifecycle of an execution request.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobDone      JobStatus = "done"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// InterruptedMessage is the fixed error recorded when crash recovery fails
// jobs left running by a dead worker process.
const InterruptedMessage = "Interrupted - abnormal termination"

var jobStatuses = map[JobStatus]struct{}{
	JobPending:   {},
	JobRunning:   {},
	JobDone:      {},
	JobFailed:    {},
	JobCancelled: {},
}

// ParseJobStatus converts a string into a known JobStatus.
func ParseJobStatus(value string) (JobStatus, bool) {
	normalized := JobStatus(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := jobStatuses[normalized]; !ok {
		return "", false
	}
	return normalized, true
}

// Terminal reports whether the status is one a job never leaves.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobDone, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// Retryable reports whether a new resume job may be created after this one.
func (s JobStatus) Retryable() bool {
	return s == JobFailed || s == JobCancelled
}

// Book is one source image-directory-to-document conversion unit.
type Book struct {
	ID           string
	Title        string
	SourcePath   string
	BookDir      string
	Status       BookStatus
	CurrentStage manifest.Stage
	Language     string
	OptimizeMode string
	ErrorPolicy  string
	FrontCover   *int
	BackCover    *int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Settings builds the manifest settings snapshot from the book record.
func (b *Book) Settings() manifest.Settings {
	return manifest.Settings{
		Language:     b.Language,
		OptimizeMode: b.OptimizeMode,
		ErrorPolicy:  b.ErrorPolicy,
		FrontCover:   b.FrontCover,
		BackCover:    b.BackCover,
	}
}

// Job is one execution attempt (run or resume) against a book.
type Job struct {
	ID           string
	BookID       string
	Status       JobStatus
	ScheduledAt  *time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
	ErrorMessage string
	Resume       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Stats aggregates job counts per status.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Done      int `json:"done"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}
