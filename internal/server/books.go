package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"bindery/internal/manifest"
	"bindery/internal/queue"
	"bindery/internal/validation"
)

type bookCreateRequest struct {
	Path         string `json:"path"`
	Title        string `json:"title"`
	Language     string `json:"language"`
	OptimizeMode string `json:"optimize_mode"`
	ErrorPolicy  string `json:"error_policy"`
	FrontCover   *int   `json:"front_cover"`
	BackCover    *int   `json:"back_cover"`
}

type bookPatchRequest struct {
	Language     *string `json:"language"`
	OptimizeMode *string `json:"optimize_mode"`
	ErrorPolicy  *string `json:"error_policy"`
	FrontCover   *int    `json:"front_cover"`
	BackCover    *int    `json:"back_cover"`
	ClearCovers  bool    `json:"clear_covers"`
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		books, err := s.store.ListBooks(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out := make([]BookResponse, 0, len(books))
		for _, book := range books {
			out = append(out, bookResponse(book))
		}
		s.writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		var req bookCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		info, err := os.Stat(req.Path)
		if err != nil || !info.IsDir() {
			s.writeError(w, http.StatusBadRequest, "invalid source directory path")
			return
		}

		params := queue.NewBookParams{
			Title:        req.Title,
			SourcePath:   req.Path,
			BooksRoot:    s.cfg.BooksDir(),
			Language:     defaultString(req.Language, s.cfg.OCR.Language),
			OptimizeMode: defaultString(req.OptimizeMode, s.cfg.Pipeline.OptimizeMode),
			ErrorPolicy:  defaultString(req.ErrorPolicy, s.cfg.Pipeline.ErrorPolicy),
			FrontCover:   req.FrontCover,
			BackCover:    req.BackCover,
		}
		book, err := s.store.NewBook(r.Context(), params)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusCreated, bookResponse(book))

	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/books/")
	id, suffix, _ := strings.Cut(rest, "/")
	if id == "" {
		s.writeError(w, http.StatusNotFound, "book not found")
		return
	}

	if suffix == "preview" {
		s.handleBookPreview(w, r, id)
		return
	}
	if suffix != "" {
		s.writeError(w, http.StatusNotFound, "book not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		book, err := s.store.GetBook(r.Context(), id)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if book == nil {
			s.writeError(w, http.StatusNotFound, "book not found")
			return
		}
		detail := BookDetailResponse{BookResponse: bookResponse(book)}
		if m, err := manifest.Open(book.BookDir); err == nil {
			doc := m.Document()
			detail.Manifest = &doc
		}
		s.writeJSON(w, http.StatusOK, detail)

	case http.MethodPatch:
		var req bookPatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		book, err := s.store.PatchBookSettings(r.Context(), id, queue.SettingsPatch{
			Language:     req.Language,
			OptimizeMode: req.OptimizeMode,
			ErrorPolicy:  req.ErrorPolicy,
			FrontCover:   req.FrontCover,
			BackCover:    req.BackCover,
			ClearCovers:  req.ClearCovers,
		})
		if err != nil {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		if book == nil {
			s.writeError(w, http.StatusNotFound, "book not found")
			return
		}
		s.writeJSON(w, http.StatusOK, bookResponse(book))

	case http.MethodDelete:
		book, err := s.store.GetBook(r.Context(), id)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if book == nil {
			s.writeError(w, http.StatusNotFound, "book not found")
			return
		}
		removed, err := s.store.RemoveBook(r.Context(), id)
		if err != nil || !removed {
			s.writeError(w, http.StatusInternalServerError, "failed to delete book")
			return
		}
		if book.BookDir != "" {
			_ = os.RemoveAll(book.BookDir)
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleBookPreview lists the first and last five page image names so a
// client can confirm cover selection before running the pipeline.
func (s *Server) handleBookPreview(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	book, err := s.store.GetBook(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if book == nil {
		s.writeError(w, http.StatusNotFound, "book not found")
		return
	}

	inputDir := filepath.Join(book.BookDir, "input")
	if _, err := os.Stat(inputDir); err != nil {
		inputDir = book.SourcePath
	}
	files, err := validation.ListPageFiles(inputDir)
	if err != nil || len(files) == 0 {
		s.writeError(w, http.StatusNotFound, "no preview images found")
		return
	}

	names := make([]string, len(files))
	for i, file := range files {
		names[i] = filepath.Base(file.Path)
	}
	s.writeJSON(w, http.StatusOK, PreviewResponse{
		Front: head(names, 5),
		Back:  tail(names, 5),
	})
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func head(values []string, n int) []string {
	if len(values) < n {
		n = len(values)
	}
	return values[:n]
}

func tail(values []string, n int) []string {
	if len(values) < n {
		n = len(values)
	}
	return values[len(values)-n:]
}
