package server

import (
	"time"

	"bindery/internal/manifest"
	"bindery/internal/queue"
)

// BookResponse is the wire form of a book record.
type BookResponse struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	SourcePath   string     `json:"source_path"`
	BookDir      string     `json:"book_dir"`
	Status       string     `json:"status"`
	CurrentStage string     `json:"current_stage"`
	Language     string     `json:"language"`
	OptimizeMode string     `json:"optimize_mode"`
	ErrorPolicy  string     `json:"error_policy"`
	FrontCover   *int      `json:"front_cover,omitempty"`
	BackCover    *int      `json:"back_cover,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BookDetailResponse adds the manifest document when one exists.
type BookDetailResponse struct {
	BookResponse
	Manifest *manifest.Document `json:"manifest,omitempty"`
}

// JobResponse is the wire form of a job record.
type JobResponse struct {
	ID           string     `json:"id"`
	BookID       string     `json:"book_id"`
	Status       string     `json:"status"`
	ScheduledAt  *time.Time `json:"scheduled_at,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Resume       bool       `json:"resume"`
	CreatedAt    time.Time  `json:"created_at"`
}

// JobCreateResponse reports a created job and whether it started running
// immediately.
type JobCreateResponse struct {
	Job     JobResponse `json:"job"`
	Started bool        `json:"started"`
}

// PreviewResponse lists the first and last page image names of a book.
type PreviewResponse struct {
	Front []string `json:"front"`
	Back  []string `json:"back"`
}

// StatusResponse summarizes queue state for dashboards.
type StatusResponse struct {
	DatabasePath string      `json:"database_path"`
	Books        int         `json:"books"`
	Jobs         queue.Stats `json:"jobs"`
	Sessions     int         `json:"progress_sessions"`
}

func bookResponse(book *queue.Book) BookResponse {
	return BookResponse{
		ID:           book.ID,
		Title:        book.Title,
		SourcePath:   book.SourcePath,
		BookDir:      book.BookDir,
		Status:       string(book.Status),
		CurrentStage: string(book.CurrentStage),
		Language:     book.Language,
		OptimizeMode: book.OptimizeMode,
		ErrorPolicy:  book.ErrorPolicy,
		FrontCover:   book.FrontCover,
		BackCover:    book.BackCover,
		CreatedAt:    book.CreatedAt,
		UpdatedAt:    book.UpdatedAt,
	}
}

func jobResponse(job *queue.Job) JobResponse {
	return JobResponse{
		ID:           job.ID,
		BookID:       job.BookID,
		Status:       string(job.Status),
		ScheduledAt:  job.ScheduledAt,
		StartedAt:    job.StartedAt,
		FinishedAt:   job.FinishedAt,
		ErrorMessage: job.ErrorMessage,
		Resume:       job.Resume,
		CreatedAt:    job.CreatedAt,
	}
}
