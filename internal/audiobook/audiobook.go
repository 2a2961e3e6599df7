// ABOUTME: Audiobook task submission and status lookup
// ABOUTME: Tasks are handed to the synthesis worker through the audiobook_tasks table

package audiobook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/shelf-gateway/internal/auth"
	"github.com/2389/shelf-gateway/internal/library"
	"github.com/2389/shelf-gateway/internal/store"
)

// Status values reported by Submit and LatestForBook in addition to the task statuses.
const (
	StatusStarted           = "success"
	StatusAlreadyInProgress = "already_in_progress"
	StatusNotFound          = "not_found"
)

// Messages shown to MCP callers.
const (
	msgTaskNotFound        = "Task not found."
	msgTaskNotFoundForUser = "Task not found for this user."
	msgNoTaskForBook       = "No active or completed task found for this book."
	msgQueued              = "Audiobook generation task has been queued."
)

// Submission is the reply to a generation request.
type Submission struct {
	Status  string `json:"status"`
	TaskID  string `json:"task_id"`
	Message string `json:"message,omitempty"`
}

// ErrorReply carries a message for a request that could not be served.
type ErrorReply struct {
	Error string `json:"error"`
}

// NotFoundReply is returned when a book has no task.
type NotFoundReply struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// TaskView is the MCP rendering of a stored task.
type TaskView struct {
	TaskID      string `json:"task_id"`
	UserID      int64  `json:"user_id"`
	BookID      int64  `json:"book_id"`
	LibraryType string `json:"library_type"`
	Status      string `json:"status"`
	Progress    int    `json:"progress"`
	Message     string `json:"message"`
	FilePath    string `json:"file_path"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// NewTaskView renders a task.
func NewTaskView(t *store.AudiobookTask) TaskView {
	return TaskView{
		TaskID:      t.TaskID,
		UserID:      t.UserID,
		BookID:      t.BookID,
		LibraryType: t.LibraryType,
		Status:      string(t.Status),
		Progress:    t.Progress,
		Message:     t.Message,
		FilePath:    t.FilePath,
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// Service submits and reports on audiobook tasks.
type Service struct {
	tasks  store.AudiobookStore
	libs   *library.Libraries
	logger *slog.Logger
}

// NewService creates an audiobook service. When libs is non-nil, Submit
// checks that the book exists before queueing a task.
func NewService(tasks store.AudiobookStore, libs *library.Libraries, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		tasks:  tasks,
		libs:   libs,
		logger: logger.With("component", "audiobook"),
	}
}

// Submit queues generation for a book unless a task for it is still running.
func (s *Service) Submit(ctx context.Context, p *auth.Principal, bookID int64, libType library.Type) (any, error) {
	latest, err := s.tasks.GetLatestAudiobookTask(ctx, p.ID, bookID, string(libType))
	switch {
	case err == nil && !latest.Status.Finished():
		return Submission{Status: StatusAlreadyInProgress, TaskID: latest.TaskID}, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("looking up audiobook task: %w", err)
	}

	if s.libs != nil {
		lib, err := s.libs.For(string(libType))
		if err != nil {
			return nil, err
		}
		if _, err := lib.Details(ctx, p, bookID); err != nil {
			if errors.Is(err, library.ErrBookNotFound) {
				return ErrorReply{Error: fmt.Sprintf("Book %d not found in %s library.", bookID, libType)}, nil
			}
			return nil, err
		}
	}

	task := &store.AudiobookTask{
		TaskID:      uuid.New().String(),
		UserID:      p.ID,
		BookID:      bookID,
		LibraryType: string(libType),
		Status:      store.AudiobookPending,
		Message:     msgQueued,
	}
	if err := s.tasks.CreateAudiobookTask(ctx, task); err != nil {
		return nil, fmt.Errorf("creating audiobook task: %w", err)
	}

	s.logger.Info("queued audiobook task",
		"task_id", task.TaskID,
		"user_id", p.ID,
		"book_id", bookID,
		"library_type", libType,
	)
	return Submission{Status: StatusStarted, TaskID: task.TaskID, Message: msgQueued}, nil
}

// Status reports a task by id. Anx tasks are only visible to their owner;
// Calibre tasks are visible to everyone.
func (s *Service) Status(ctx context.Context, p *auth.Principal, taskID string) (any, error) {
	task, err := s.tasks.GetAudiobookTask(ctx, taskID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrorReply{Error: msgTaskNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting audiobook task: %w", err)
	}
	if task.LibraryType == string(library.Anx) && task.UserID != p.ID {
		return ErrorReply{Error: msgTaskNotFoundForUser}, nil
	}
	return NewTaskView(task), nil
}

// LatestForBook reports the newest task for a book visible to p.
func (s *Service) LatestForBook(ctx context.Context, p *auth.Principal, bookID int64, libType string) (any, error) {
	task, err := s.tasks.GetLatestAudiobookTask(ctx, p.ID, bookID, libType)
	if errors.Is(err, store.ErrNotFound) {
		return NotFoundReply{Status: StatusNotFound, Message: msgNoTaskForBook}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up audiobook task: %w", err)
	}
	return NewTaskView(task), nil
}
