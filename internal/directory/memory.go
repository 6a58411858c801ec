package directory

import (
	"context"
	"sort"
	"sync"

	"github.com/netpulse/client/internal/models"
)

// Memory is an in-process directory for tests and offline development. Fail
// simulates an unreachable directory.
type Memory struct {
	mu       sync.Mutex
	users    map[string]models.User
	requests map[string]models.FriendRequest
	err      error
	calls    map[string]int
}

// NewMemory returns an empty in-memory directory.
func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]models.User),
		requests: make(map[string]models.FriendRequest),
		calls:    make(map[string]int),
	}
}

// Fail makes subsequent calls return err; nil restores normal behaviour.
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Calls reports how many times the named method was invoked.
func (m *Memory) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// User returns the stored record for id.
func (m *Memory) User(id string) (models.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	return u.Clone(), ok
}

// Request returns the stored request for id.
func (m *Memory) Request(id string) (models.FriendRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	return r, ok
}

func (m *Memory) enter(method string) error {
	m.mu.Lock()
	m.calls[method]++
	return m.err
}

func (m *Memory) FetchUsers(context.Context) ([]models.User, error) {
	err := m.enter("FetchUsers")
	defer m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) PutUser(_ context.Context, user models.User) error {
	err := m.enter("PutUser")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	m.users[user.ID] = user.Clone()
	return nil
}

func (m *Memory) FetchFriendRequests(context.Context) ([]models.FriendRequest, error) {
	err := m.enter("FetchFriendRequests")
	defer m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]models.FriendRequest, 0, len(m.requests))
	for _, r := range m.requests {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) PutFriendRequest(_ context.Context, request models.FriendRequest) error {
	err := m.enter("PutFriendRequest")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	m.requests[request.ID] = request
	return nil
}

func (m *Memory) PatchFriendRequestStatus(_ context.Context, id string, status models.FriendRequestStatus) error {
	err := m.enter("PatchFriendRequestStatus")
	defer m.mu.Unlock()
	if err != nil {
		return err
	}
	r, ok := m.requests[id]
	if !ok {
		// A PATCH against a missing document creates it with only the patched field.
		m.requests[id] = models.FriendRequest{ID: id, Status: status}
		return nil
	}
	r.Status = status
	m.requests[id] = r
	return nil
}

var _ Client = (*Memory)(nil)
