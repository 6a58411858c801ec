// Package snapshot persists the last-known user table and the logged-in user
// id so the engine can restore them after a restart.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/netpulse/client/internal/models"
)

const (
	// UsersKey holds the JSON-encoded user table.
	UsersKey = "savedUsers"
	// CurrentUserKey holds the id of the logged-in user.
	CurrentUserKey = "currentUserId"
)

// ErrNotFound indicates the key has never been written.
var ErrNotFound = errors.New("snapshot key not found")

// Backend is a durable key-value blob store.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Store reads and writes the engine's durable snapshot on top of a Backend.
type Store struct {
	backend Backend
}

// New wraps a backend.
func New(backend Backend) *Store {
	if backend == nil {
		panic("snapshot: backend must not be nil")
	}
	return &Store{backend: backend}
}

// LoadUsers returns the saved table, normalized. A missing key is an empty table.
func (s *Store) LoadUsers(ctx context.Context) ([]models.User, error) {
	data, err := s.backend.Get(ctx, UsersKey)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load users snapshot: %w", err)
	}
	var users []models.User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("decode users snapshot: %w", err)
	}
	return models.NormalizeUsers(users), nil
}

// SaveUsers overwrites the saved table.
func (s *Store) SaveUsers(ctx context.Context, users []models.User) error {
	if users == nil {
		users = []models.User{}
	}
	data, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("encode users snapshot: %w", err)
	}
	if err := s.backend.Set(ctx, UsersKey, data); err != nil {
		return fmt.Errorf("save users snapshot: %w", err)
	}
	return nil
}

// LoadCurrentUserID returns the saved id, or "" when nobody is logged in.
func (s *Store) LoadCurrentUserID(ctx context.Context) (string, error) {
	data, err := s.backend.Get(ctx, CurrentUserKey)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load current user id: %w", err)
	}
	return string(data), nil
}

// SaveCurrentUserID records id; an empty id clears it.
func (s *Store) SaveCurrentUserID(ctx context.Context, id string) error {
	if id == "" {
		if err := s.backend.Delete(ctx, CurrentUserKey); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("clear current user id: %w", err)
		}
		return nil
	}
	if err := s.backend.Set(ctx, CurrentUserKey, []byte(id)); err != nil {
		return fmt.Errorf("save current user id: %w", err)
	}
	return nil
}
