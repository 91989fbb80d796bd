package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// allowedOutputFiles is the download allowlist; nothing else in a book
// workspace is reachable over HTTP.
var allowedOutputFiles = map[string]struct{}{
	"book.pdf":    {},
	"book.txt":    {},
	"report.json": {},
}

func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/output/")
	bookID, fileName, ok := strings.Cut(rest, "/")
	if !ok || bookID == "" {
		s.writeError(w, http.StatusNotFound, "output file not found")
		return
	}
	if _, allowed := allowedOutputFiles[fileName]; !allowed {
		s.writeError(w, http.StatusBadRequest, "unsupported output file")
		return
	}

	book, err := s.store.GetBook(r.Context(), bookID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if book == nil {
		s.writeError(w, http.StatusNotFound, "book not found")
		return
	}

	path := filepath.Join(book.BookDir, "out", fileName)
	if _, err := os.Stat(path); err != nil {
		s.writeError(w, http.StatusNotFound, "output file not found")
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename="+fileName)
	http.ServeFile(w, r, path)
}
