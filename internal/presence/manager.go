// Package presence is the status and discovery surface over the identity store.
package presence

import (
	"context"
	"errors"
	"strings"

	"github.com/netpulse/client/internal/models"
)

var (
	ErrNotLoggedIn  = errors.New("no user is logged in")
	ErrUserNotFound = errors.New("user not found")
	ErrSelf         = errors.New("cannot add yourself")
)

// Identity is what the presence manager reads and mutates.
type Identity interface {
	CurrentUser() (models.User, bool)
	Users() []models.User
	UpdateStatus(ctx context.Context, status models.UserStatus) bool
	UpdateCustomStatus(ctx context.Context, text string) bool
	ToggleStatus(ctx context.Context) bool
	AddFriendEdge(ctx context.Context, a, b string) bool
}

// Manager answers presence queries for the current user.
type Manager struct {
	identity Identity
}

// NewManager wraps an identity store.
func NewManager(identity Identity) *Manager {
	return &Manager{identity: identity}
}

// SetStatus sets a preset status and clears the custom text.
func (m *Manager) SetStatus(ctx context.Context, status models.UserStatus) bool {
	return m.identity.UpdateStatus(ctx, status)
}

// SetCustomStatus sets free-form status text; blank text clears it.
func (m *Manager) SetCustomStatus(ctx context.Context, text string) bool {
	return m.identity.UpdateCustomStatus(ctx, text)
}

// Toggle flips between online and offline.
func (m *Manager) Toggle(ctx context.Context) bool {
	return m.identity.ToggleStatus(ctx)
}

// Friends lists the current user's friends in table order.
func (m *Manager) Friends() []models.User {
	current, ok := m.identity.CurrentUser()
	if !ok {
		return nil
	}
	var out []models.User
	for _, u := range m.identity.Users() {
		if current.HasFriend(u.ID) {
			out = append(out, u)
		}
	}
	return out
}

// Discoverable lists users who are neither the current user nor friends,
// filtered by a case-insensitive substring of name, email or username. A
// blank query matches everyone.
func (m *Manager) Discoverable(query string) []models.User {
	current, ok := m.identity.CurrentUser()
	if !ok {
		return nil
	}
	query = strings.ToLower(strings.TrimSpace(query))

	var out []models.User
	for _, u := range m.identity.Users() {
		if u.ID == current.ID || current.HasFriend(u.ID) {
			continue
		}
		if query != "" && !matches(u, query) {
			continue
		}
		out = append(out, u)
	}
	return out
}

func matches(u models.User, query string) bool {
	for _, field := range []string{u.Name, u.Email, u.Username} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

// FindUser resolves a scanned handle, a username or an email. Usernames are
// matched before emails; both ignore case.
func (m *Manager) FindUser(handleOrEmail string) (models.User, bool) {
	needle := models.ParseHandle(handleOrEmail)
	if needle == "" {
		return models.User{}, false
	}
	users := m.identity.Users()
	for _, u := range users {
		if strings.EqualFold(u.Username, needle) {
			return u, true
		}
	}
	for _, u := range users {
		if strings.EqualFold(strings.TrimSpace(u.Email), needle) {
			return u, true
		}
	}
	return models.User{}, false
}

// AddFriendByHandle befriends the user behind a handle directly, without a
// request round trip.
func (m *Manager) AddFriendByHandle(ctx context.Context, handle string) (models.User, error) {
	current, ok := m.identity.CurrentUser()
	if !ok {
		return models.User{}, ErrNotLoggedIn
	}
	target, ok := m.FindUser(handle)
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	if target.ID == current.ID {
		return models.User{}, ErrSelf
	}
	if !m.identity.AddFriendEdge(ctx, current.ID, target.ID) {
		return models.User{}, ErrUserNotFound
	}
	return target, nil
}
