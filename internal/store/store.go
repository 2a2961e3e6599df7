// ABOUTME: Store interfaces and data types for shelf-gateway persistence
// ABOUTME: Defines users, MCP tokens, and audiobook tasks plus the interfaces over them

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique key (username, token) is already taken
var ErrDuplicate = errors.New("already exists")

// User is a person who owns an Anx library and MCP tokens.
type User struct {
	ID          int64
	Username    string
	KindleEmail string
	IsAdmin     bool
	CreatedAt   time.Time
}

// MCPToken maps an opaque token string to exactly one user.
type MCPToken struct {
	Token     string
	UserID    int64
	Name      string
	CreatedAt time.Time
}

// AudiobookStatus is the lifecycle state of an audiobook task.
type AudiobookStatus string

const (
	AudiobookPending    AudiobookStatus = "pending"
	AudiobookProcessing AudiobookStatus = "processing"
	AudiobookCompleted  AudiobookStatus = "completed"
	AudiobookError      AudiobookStatus = "error"
)

// Finished reports whether a task with this status will not change again.
func (s AudiobookStatus) Finished() bool {
	return s == AudiobookCompleted || s == AudiobookError
}

// AudiobookTask records one audiobook generation request. Tasks are picked up
// by an external synthesis worker that updates status and progress.
type AudiobookTask struct {
	TaskID      string
	UserID      int64
	BookID      int64
	LibraryType string
	Status      AudiobookStatus
	Progress    int
	Message     string
	FilePath    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserStore manages users.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	UpdateKindleEmail(ctx context.Context, id int64, email string) error
}

// TokenStore manages MCP access tokens.
type TokenStore interface {
	CreateMCPToken(ctx context.Context, token *MCPToken) error
	GetMCPToken(ctx context.Context, token string) (*MCPToken, error)
	ListMCPTokens(ctx context.Context, userID int64) ([]*MCPToken, error)
	DeleteMCPToken(ctx context.Context, token string) error
}

// AudiobookStore manages audiobook tasks.
type AudiobookStore interface {
	CreateAudiobookTask(ctx context.Context, task *AudiobookTask) error
	GetAudiobookTask(ctx context.Context, taskID string) (*AudiobookTask, error)
	GetLatestAudiobookTask(ctx context.Context, userID, bookID int64, libraryType string) (*AudiobookTask, error)
	UpdateAudiobookTask(ctx context.Context, task *AudiobookTask) error
}

// Store is everything the gateway persists.
type Store interface {
	UserStore
	TokenStore
	AudiobookStore

	// Close releases any resources held by the store
	Close() error
}
