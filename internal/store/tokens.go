// ABOUTME: MCP token store methods
// ABOUTME: Tokens are opaque uuid strings, each bound to exactly one user

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewTokenValue generates a fresh opaque token string.
func NewTokenValue() string {
	return uuid.New().String()
}

// CreateMCPToken stores a token for a user. An empty Token field is filled with
// a newly generated value. Returns ErrNotFound if the user doesn't exist and
// ErrDuplicate if the token value is already in use.
func (s *SQLiteStore) CreateMCPToken(ctx context.Context, token *MCPToken) error {
	if token.Token == "" {
		token.Token = NewTokenValue()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	if _, err := s.GetUser(ctx, token.UserID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mcp_tokens (token, user_id, name, created_at)
		VALUES (?, ?, ?, ?)
	`, token.Token, token.UserID, token.Name, token.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting mcp token: %w", err)
	}

	s.logger.Debug("created mcp token", "user_id", token.UserID, "name", token.Name)
	return nil
}

// GetMCPToken looks up a token record by its exact value.
// Returns ErrNotFound if no such token exists.
func (s *SQLiteStore) GetMCPToken(ctx context.Context, token string) (*MCPToken, error) {
	var t MCPToken
	var createdAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT token, user_id, name, created_at FROM mcp_tokens WHERE token = ?
	`, token).Scan(&t.Token, &t.UserID, &t.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying mcp token: %w", err)
	}

	t.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &t, nil
}

// ListMCPTokens returns the tokens owned by a user, newest first.
func (s *SQLiteStore) ListMCPTokens(ctx context.Context, userID int64) ([]*MCPToken, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token, user_id, name, created_at
		FROM mcp_tokens WHERE user_id = ?
		ORDER BY created_at DESC, token
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying mcp tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*MCPToken
	for rows.Next() {
		var t MCPToken
		var createdAt string
		if err := rows.Scan(&t.Token, &t.UserID, &t.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning mcp token row: %w", err)
		}
		t.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		tokens = append(tokens, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating mcp token rows: %w", err)
	}
	return tokens, nil
}

// DeleteMCPToken revokes a token.
// Returns ErrNotFound if the token doesn't exist.
func (s *SQLiteStore) DeleteMCPToken(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM mcp_tokens WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("deleting mcp token: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	s.logger.Debug("deleted mcp token")
	return nil
}
