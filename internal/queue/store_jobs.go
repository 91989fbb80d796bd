package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// NewJob creates a pending execution request against a book. A nil
// scheduledAt makes the job immediately eligible.
func (s *Store) NewJob(ctx context.Context, bookID string, scheduledAt *time.Time, resume bool) (*Job, error) {
	id := NewID()
	now := timestamp(time.Now())

	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            id, book_id, status, scheduled_at, started_at, finished_at,
            error_message, resume, created_at, updated_at
        ) VALUES (?, ?, ?, ?, NULL, NULL, NULL, ?, ?, ?)`,
		id,
		bookID,
		JobPending,
		nullableTime(scheduledAt),
		boolToInt(resume),
		now,
		now,
	); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.GetJob(ctx, id)
}

// GetJob fetches a job by identifier; nil when absent.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs newest first, optionally filtered by status.
func (s *Store) ListJobs(ctx context.Context, statuses ...JobStatus) ([]*Job, error) {
	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at DESC`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// LatestJobForBook returns the most recently created job for a book.
func (s *Store) LatestJobForBook(ctx context.Context, bookID string) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE book_id = ? ORDER BY created_at DESC LIMIT 1`,
		bookID,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest job for book: %w", err)
	}
	return job, nil
}

// ClaimNextEligible atomically claims the oldest eligible pending job.
// Eligibility requires scheduled_at to be unset or in the past; ordering is
// by effective schedule time, then creation time. The selection and the
// pending→running transition are one SQL statement, so two concurrent
// claimers can never both receive the same job.
func (s *Store) ClaimNextEligible(ctx context.Context, now time.Time) (*Job, error) {
	ctx = ensureContext(ctx)
	nowStr := timestamp(now)

	var id string
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(
			ctx,
			`UPDATE jobs
             SET status = ?, started_at = ?, updated_at = ?
             WHERE id = (
                 SELECT id FROM jobs
                 WHERE status = ? AND (scheduled_at IS NULL OR scheduled_at <= ?)
                 ORDER BY COALESCE(scheduled_at, created_at), created_at
                 LIMIT 1
             ) AND status = ?
             RETURNING id`,
			JobRunning,
			nowStr,
			nowStr,
			JobPending,
			nowStr,
			JobPending,
		).Scan(&id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next eligible job: %w", err)
	}
	return s.GetJob(ctx, id)
}

// ClaimByID atomically claims one specific job; nil when the job is absent
// or no longer pending.
func (s *Store) ClaimByID(ctx context.Context, id string) (*Job, error) {
	now := timestamp(time.Now())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, started_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		JobRunning,
		now,
		now,
		id,
		JobPending,
	)
	if err != nil {
		return nil, fmt.Errorf("claim job by id: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}
	return s.GetJob(ctx, id)
}

// MarkJobDone records the successful terminal state.
func (s *Store) MarkJobDone(ctx context.Context, id string) error {
	now := timestamp(time.Now())
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, finished_at = ?, error_message = NULL, updated_at = ?
         WHERE id = ?`,
		JobDone, now, now, id,
	); err != nil {
		return fmt.Errorf("mark job done: %w", err)
	}
	return nil
}

// MarkJobFailed records the failed terminal state with its message.
func (s *Store) MarkJobFailed(ctx context.Context, id, message string) error {
	now := timestamp(time.Now())
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, finished_at = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		JobFailed, now, nullableString(message), now, id,
	); err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	return nil
}

// CancelJob transitions a pending job to cancelled. It reports false when
// the job has already started, finished, or does not exist.
func (s *Store) CancelJob(ctx context.Context, id string) (bool, error) {
	now := timestamp(time.Now())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, finished_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		JobCancelled,
		now,
		now,
		id,
		JobPending,
	)
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// RecoverInterrupted fails every job still marked running together with its
// book, recording message as the error. Running jobs can only exist at
// startup when a prior worker process died mid-execution; this must run
// before polling begins.
func (s *Store) RecoverInterrupted(ctx context.Context, message string) (int64, error) {
	ctx = ensureContext(ctx)
	now := timestamp(time.Now())

	var count int64
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin recovery tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		rows, err := tx.QueryContext(ctx, `SELECT id, book_id FROM jobs WHERE status = ?`, JobRunning)
		if err != nil {
			return fmt.Errorf("list running jobs: %w", err)
		}
		type pair struct{ jobID, bookID string }
		var interrupted []pair
		for rows.Next() {
			var p pair
			if err := rows.Scan(&p.jobID, &p.bookID); err != nil {
				rows.Close()
				return fmt.Errorf("scan running job: %w", err)
			}
			interrupted = append(interrupted, p)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, p := range interrupted {
			if _, err := tx.ExecContext(
				ctx,
				`UPDATE jobs
                 SET status = ?, finished_at = ?, error_message = ?, updated_at = ?
                 WHERE id = ?`,
				JobFailed, now, message, now, p.jobID,
			); err != nil {
				return fmt.Errorf("fail interrupted job: %w", err)
			}
			if _, err := tx.ExecContext(
				ctx,
				`UPDATE books SET status = ?, updated_at = ? WHERE id = ?`,
				BookFailed, now, p.bookID,
			); err != nil {
				return fmt.Errorf("fail interrupted book: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit recovery: %w", err)
		}
		count = int64(len(interrupted))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// JobStats returns a count of jobs grouped by status.
func (s *Store) JobStats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var status JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		stats.Total += count
		switch status {
		case JobPending:
			stats.Pending += count
		case JobRunning:
			stats.Running += count
		case JobDone:
			stats.Done += count
		case JobFailed:
			stats.Failed += count
		case JobCancelled:
			stats.Cancelled += count
		}
	}
	return stats, rows.Err()
}

const jobColumns = "id, book_id, status, scheduled_at, started_at, finished_at, error_message, resume, created_at, updated_at"

func scanJob(sc scanner) (*Job, error) {
	var (
		job          Job
		statusStr    string
		scheduledRaw sql.NullString
		startedRaw   sql.NullString
		finishedRaw  sql.NullString
		errorMessage sql.NullString
		resume       int64
		createdRaw   string
		updatedRaw   string
	)

	if err := sc.Scan(
		&job.ID,
		&job.BookID,
		&statusStr,
		&scheduledRaw,
		&startedRaw,
		&finishedRaw,
		&errorMessage,
		&resume,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job.Status = JobStatus(statusStr)
	job.ErrorMessage = errorMessage.String
	job.Resume = resume != 0
	if scheduledRaw.Valid {
		if t, err := parseTimeString(scheduledRaw.String); err == nil {
			job.ScheduledAt = &t
		}
	}
	if startedRaw.Valid {
		if t, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &t
		}
	}
	if finishedRaw.Valid {
		if t, err := parseTimeString(finishedRaw.String); err == nil {
			job.FinishedAt = &t
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return &job, nil
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
