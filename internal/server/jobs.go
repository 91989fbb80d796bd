package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

type jobCreateRequest struct {
	BookID      string     `json:"book_id"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	RunNow      bool       `json:"run_now"`
	Resume      bool       `json:"resume"`
}

type jobRetryRequest struct {
	RunNow bool `json:"run_now"`
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req jobCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	book, err := s.store.GetBook(r.Context(), req.BookID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if book == nil {
		s.writeError(w, http.StatusNotFound, "book not found")
		return
	}

	job, err := s.store.NewJob(r.Context(), req.BookID, req.ScheduledAt, req.Resume)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// run_now only bypasses the queue poll for unscheduled jobs; a
	// scheduled job keeps its eligibility time.
	started := false
	if req.RunNow && req.ScheduledAt == nil {
		s.startJobInBackground(job.ID)
		started = true
	}
	s.writeJSON(w, http.StatusCreated, JobCreateResponse{Job: jobResponse(job), Started: started})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		job, err := s.store.GetJob(r.Context(), id)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if job == nil {
			s.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.writeJSON(w, http.StatusOK, jobResponse(job))

	case "cancel":
		s.handleJobCancel(w, r, id)

	case "retry":
		s.handleJobRetry(w, r, id)

	case "progress":
		s.handleJobProgress(w, r, id)

	default:
		s.writeError(w, http.StatusNotFound, "job not found")
	}
}

func (s *Server) handleJobCancel(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	cancelled, err := s.store.CancelJob(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !cancelled {
		s.writeError(w, http.StatusConflict, "job cannot be cancelled")
		return
	}

	updated, err := s.store.GetJob(r.Context(), id)
	if err != nil || updated == nil {
		s.writeError(w, http.StatusInternalServerError, "job state unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, jobResponse(updated))
}

// handleJobRetry creates a fresh resume job against the same book. Only
// terminal failed or cancelled jobs are retryable; the old record stays
// untouched.
func (s *Server) handleJobRetry(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req jobRetryRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if !job.Status.Retryable() {
		s.writeError(w, http.StatusConflict, "only failed/cancelled jobs can be retried")
		return
	}

	retryJob, err := s.store.NewJob(r.Context(), job.BookID, nil, true)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	started := false
	if req.RunNow {
		s.startJobInBackground(retryJob.ID)
		started = true
	}
	s.writeJSON(w, http.StatusCreated, JobCreateResponse{Job: jobResponse(retryJob), Started: started})
}
