// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]*User
	tokens map[string]*MCPToken
	tasks  map[string]*AudiobookTask
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		users:  make(map[int64]*User),
		tokens: make(map[string]*MCPToken),
		tasks:  make(map[string]*AudiobookTask),
	}
}

// CreateUser stores a new user and assigns its ID.
func (m *MockStore) CreateUser(ctx context.Context, user *User) error {
	if strings.TrimSpace(user.Username) == "" {
		return errors.New("username is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == user.Username {
			return ErrDuplicate
		}
	}

	m.nextID++
	user.ID = m.nextID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	// Make a copy to avoid external modification
	u := *user
	m.users[u.ID] = &u
	return nil
}

// GetUser retrieves a user by ID.
func (m *MockStore) GetUser(ctx context.Context, id int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *u
	return &result, nil
}

// GetUserByUsername retrieves a user by username.
func (m *MockStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Username == username {
			result := *u
			return &result, nil
		}
	}
	return nil, ErrNotFound
}

// ListUsers returns all users ordered by ID.
func (m *MockStore) ListUsers(ctx context.Context) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		c := *u
		users = append(users, &c)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// UpdateKindleEmail sets the user's Kindle address.
func (m *MockStore) UpdateKindleEmail(ctx context.Context, id int64, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.KindleEmail = email
	return nil
}

// DeleteUser removes a user but leaves its tokens behind, which lets tests
// model a token whose principal no longer exists.
func (m *MockStore) DeleteUser(id int64) {
	m.mu.Lock()
	delete(m.users, id)
	m.mu.Unlock()
}

// CreateMCPToken stores a token for an existing user.
func (m *MockStore) CreateMCPToken(ctx context.Context, token *MCPToken) error {
	if token.Token == "" {
		token.Token = NewTokenValue()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[token.UserID]; !ok {
		return ErrNotFound
	}
	if _, exists := m.tokens[token.Token]; exists {
		return ErrDuplicate
	}
	t := *token
	m.tokens[t.Token] = &t
	return nil
}

// GetMCPToken looks up a token by value.
func (m *MockStore) GetMCPToken(ctx context.Context, token string) (*MCPToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tokens[token]
	if !ok {
		return nil, ErrNotFound
	}
	result := *t
	return &result, nil
}

// ListMCPTokens returns a user's tokens, newest first.
func (m *MockStore) ListMCPTokens(ctx context.Context, userID int64) ([]*MCPToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var tokens []*MCPToken
	for _, t := range m.tokens {
		if t.UserID == userID {
			c := *t
			tokens = append(tokens, &c)
		}
	}
	sort.Slice(tokens, func(i, j int) bool {
		if !tokens[i].CreatedAt.Equal(tokens[j].CreatedAt) {
			return tokens[i].CreatedAt.After(tokens[j].CreatedAt)
		}
		return tokens[i].Token < tokens[j].Token
	})
	return tokens, nil
}

// DeleteMCPToken revokes a token.
func (m *MockStore) DeleteMCPToken(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tokens[token]; !ok {
		return ErrNotFound
	}
	delete(m.tokens, token)
	return nil
}

// CreateAudiobookTask stores a new task.
func (m *MockStore) CreateAudiobookTask(ctx context.Context, task *AudiobookTask) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}
	if task.Status == "" {
		task.Status = AudiobookPending
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tasks[task.TaskID]; exists {
		return ErrDuplicate
	}
	t := *task
	m.tasks[t.TaskID] = &t
	return nil
}

// GetAudiobookTask retrieves a task by ID.
func (m *MockStore) GetAudiobookTask(ctx context.Context, taskID string) (*AudiobookTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	result := *t
	return &result, nil
}

// GetLatestAudiobookTask mirrors the SQLite visibility rules: calibre tasks are
// shared, anx tasks are per-user.
func (m *MockStore) GetLatestAudiobookTask(ctx context.Context, userID, bookID int64, libraryType string) (*AudiobookTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *AudiobookTask
	for _, t := range m.tasks {
		if t.BookID != bookID || t.LibraryType != libraryType {
			continue
		}
		if libraryType != "calibre" && t.UserID != userID {
			continue
		}
		if latest == nil || t.CreatedAt.After(latest.CreatedAt) {
			latest = t
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	result := *latest
	return &result, nil
}

// UpdateAudiobookTask replaces the mutable fields of a task.
func (m *MockStore) UpdateAudiobookTask(ctx context.Context, task *AudiobookTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[task.TaskID]
	if !ok {
		return ErrNotFound
	}
	task.UpdatedAt = time.Now().UTC()
	t.Status = task.Status
	t.Progress = task.Progress
	t.Message = task.Message
	t.FilePath = task.FilePath
	t.UpdatedAt = task.UpdatedAt
	return nil
}

// Close is a no-op for MockStore.
func (m *MockStore) Close() error {
	return nil
}

// Ensure MockStore implements Store interface
var _ Store = (*MockStore)(nil)
