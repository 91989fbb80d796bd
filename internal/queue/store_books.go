package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"bindery/internal/manifest"
)

// NewBookParams carries the registration inputs for a book. ID is normally
// left empty and generated; the inbox importer pre-allocates it because the
// imported files land in a directory named after it.
type NewBookParams struct {
	ID           string
	Title        string
	SourcePath   string
	BooksRoot    string
	Language     string
	OptimizeMode string
	ErrorPolicy  string
	FrontCover   *int
	BackCover    *int
}

// NewID produces the short hex identifiers used for books and jobs.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// NewBook registers a book in status pending with its workspace directory
// reserved under the books root.
func (s *Store) NewBook(ctx context.Context, params NewBookParams) (*Book, error) {
	if strings.TrimSpace(params.SourcePath) == "" {
		return nil, errors.New("source path is required")
	}
	if strings.TrimSpace(params.BooksRoot) == "" {
		return nil, errors.New("books root is required")
	}

	id := strings.TrimSpace(params.ID)
	if id == "" {
		id = NewID()
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		title = filepath.Base(params.SourcePath)
	}
	bookDir := filepath.Join(params.BooksRoot, id)
	now := timestamp(time.Now())

	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO books (
            id, title, source_path, book_dir, status, current_stage,
            language, optimize_mode, error_policy, front_cover, back_cover,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		title,
		params.SourcePath,
		bookDir,
		BookPending,
		manifest.StageValidate,
		params.Language,
		params.OptimizeMode,
		params.ErrorPolicy,
		nullableInt(params.FrontCover),
		nullableInt(params.BackCover),
		now,
		now,
	); err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}

	return s.GetBook(ctx, id)
}

// GetBook fetches a book by identifier; nil when absent.
func (s *Store) GetBook(ctx context.Context, id string) (*Book, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id)
	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// ListBooks returns all books, newest first.
func (s *Store) ListBooks(ctx context.Context) ([]*Book, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+bookColumns+` FROM books ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

// FindLatestFailedBookBySource returns the most recently updated failed
// book registered for the given source directory; nil when absent.
func (s *Store) FindLatestFailedBookBySource(ctx context.Context, sourcePath string) (*Book, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+bookColumns+` FROM books
         WHERE source_path = ? AND status = ?
         ORDER BY updated_at DESC LIMIT 1`,
		sourcePath,
		BookFailed,
	)
	book, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find failed book by source: %w", err)
	}
	return book, nil
}

// UpdateBookStatus persists a status change; when stage is non-empty the
// current_stage pointer moves with it.
func (s *Store) UpdateBookStatus(ctx context.Context, id string, status BookStatus, stage manifest.Stage) error {
	now := timestamp(time.Now())
	var err error
	if stage == "" {
		_, err = s.execWithRetry(
			ctx,
			`UPDATE books SET status = ?, updated_at = ? WHERE id = ?`,
			status, now, id,
		)
	} else {
		_, err = s.execWithRetry(
			ctx,
			`UPDATE books SET status = ?, current_stage = ?, updated_at = ? WHERE id = ?`,
			status, stage, now, id,
		)
	}
	if err != nil {
		return fmt.Errorf("update book status: %w", err)
	}
	return nil
}

// SettingsPatch carries optional settings changes; nil fields are left alone.
type SettingsPatch struct {
	Language     *string
	OptimizeMode *string
	ErrorPolicy  *string
	FrontCover   *int
	BackCover    *int
	ClearCovers  bool
}

// PatchBookSettings updates conversion settings. Settings are only mutable
// while the book is pending; the guard is part of the statement so a
// concurrently started run cannot race the patch.
func (s *Store) PatchBookSettings(ctx context.Context, id string, patch SettingsPatch) (*Book, error) {
	book, err := s.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, nil
	}

	language := book.Language
	if patch.Language != nil {
		language = *patch.Language
	}
	optimizeMode := book.OptimizeMode
	if patch.OptimizeMode != nil {
		optimizeMode = *patch.OptimizeMode
	}
	errorPolicy := book.ErrorPolicy
	if patch.ErrorPolicy != nil {
		errorPolicy = *patch.ErrorPolicy
	}
	frontCover := book.FrontCover
	backCover := book.BackCover
	if patch.ClearCovers {
		frontCover, backCover = nil, nil
	}
	if patch.FrontCover != nil {
		frontCover = patch.FrontCover
	}
	if patch.BackCover != nil {
		backCover = patch.BackCover
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE books
         SET language = ?, optimize_mode = ?, error_policy = ?,
             front_cover = ?, back_cover = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		language,
		optimizeMode,
		errorPolicy,
		nullableInt(frontCover),
		nullableInt(backCover),
		timestamp(time.Now()),
		id,
		BookPending,
	)
	if err != nil {
		return nil, fmt.Errorf("patch book settings: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("book %s is not pending; settings are frozen", id)
	}
	return s.GetBook(ctx, id)
}

// RemoveBook deletes a book and, via the foreign key cascade, its jobs.
func (s *Store) RemoveBook(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete book: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

const bookColumns = "id, title, source_path, book_dir, status, current_stage, language, optimize_mode, error_policy, front_cover, back_cover, created_at, updated_at"

func scanBook(sc scanner) (*Book, error) {
	var (
		book       Book
		statusStr  string
		stageStr   string
		frontCover sql.NullInt64
		backCover  sql.NullInt64
		createdRaw string
		updatedRaw string
	)

	if err := sc.Scan(
		&book.ID,
		&book.Title,
		&book.SourcePath,
		&book.BookDir,
		&statusStr,
		&stageStr,
		&book.Language,
		&book.OptimizeMode,
		&book.ErrorPolicy,
		&frontCover,
		&backCover,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	book.Status = BookStatus(statusStr)
	book.CurrentStage = manifest.Stage(stageStr)
	if frontCover.Valid {
		v := int(frontCover.Int64)
		book.FrontCover = &v
	}
	if backCover.Valid {
		v := int(backCover.Int64)
		book.BackCover = &v
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		book.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		book.UpdatedAt = updated
	}
	return &book, nil
}
