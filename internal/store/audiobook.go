// ABOUTME: Audiobook task store methods
// ABOUTME: Tasks hand audiobook generation requests to the synthesis worker

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// taskTimeLayout is fixed-width so that ORDER BY created_at sorts chronologically
// even for tasks created within the same second.
const taskTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// CreateAudiobookTask inserts a new task.
func (s *SQLiteStore) CreateAudiobookTask(ctx context.Context, task *AudiobookTask) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}
	if task.Status == "" {
		task.Status = AudiobookPending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audiobook_tasks (task_id, user_id, book_id, library_type, status, progress,
			message, file_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, task.TaskID, task.UserID, task.BookID, task.LibraryType, string(task.Status), task.Progress,
		task.Message, task.FilePath,
		task.CreatedAt.UTC().Format(taskTimeLayout),
		task.UpdatedAt.UTC().Format(taskTimeLayout))
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting audiobook task: %w", err)
	}

	s.logger.Debug("created audiobook task", "task_id", task.TaskID, "book_id", task.BookID, "library_type", task.LibraryType)
	return nil
}

// GetAudiobookTask retrieves a task by ID.
// Returns ErrNotFound if the task doesn't exist.
func (s *SQLiteStore) GetAudiobookTask(ctx context.Context, taskID string) (*AudiobookTask, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT task_id, user_id, book_id, library_type, status, progress, message, file_path,
			created_at, updated_at
		FROM audiobook_tasks WHERE task_id = ?
	`, taskID)
	return scanAudiobookTask(row)
}

// GetLatestAudiobookTask returns the most recent task for a book. Calibre books
// live in the shared library, so any user's task counts; Anx books are private
// and only the user's own tasks are considered.
// Returns ErrNotFound if there is no task.
func (s *SQLiteStore) GetLatestAudiobookTask(ctx context.Context, userID, bookID int64, libraryType string) (*AudiobookTask, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT task_id, user_id, book_id, library_type, status, progress, message, file_path,
			created_at, updated_at
		FROM audiobook_tasks
		WHERE book_id = ? AND library_type = ? AND (library_type = 'calibre' OR user_id = ?)
		ORDER BY created_at DESC
		LIMIT 1
	`, bookID, libraryType, userID)
	return scanAudiobookTask(row)
}

// UpdateAudiobookTask persists status, progress, message and file path.
// Returns ErrNotFound if the task doesn't exist.
func (s *SQLiteStore) UpdateAudiobookTask(ctx context.Context, task *AudiobookTask) error {
	task.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE audiobook_tasks
		SET status = ?, progress = ?, message = ?, file_path = ?, updated_at = ?
		WHERE task_id = ?
	`, string(task.Status), task.Progress, task.Message, task.FilePath,
		task.UpdatedAt.Format(taskTimeLayout), task.TaskID)
	if err != nil {
		return fmt.Errorf("updating audiobook task: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAudiobookTask(row rowScanner) (*AudiobookTask, error) {
	var t AudiobookTask
	var status, createdAt, updatedAt string

	err := row.Scan(&t.TaskID, &t.UserID, &t.BookID, &t.LibraryType, &status, &t.Progress,
		&t.Message, &t.FilePath, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning audiobook task: %w", err)
	}

	t.Status = AudiobookStatus(status)
	t.CreatedAt, err = time.Parse(taskTimeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	t.UpdatedAt, err = time.Parse(taskTimeLayout, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &t, nil
}
