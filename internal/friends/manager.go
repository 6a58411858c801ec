// Package friends drives the friend request state machine.
//
// A request moves from pending to exactly one of accepted, declined or
// cancelled and never leaves a terminal state. Local state is authoritative;
// remote writes are queued and best-effort.
package friends

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/netpulse/client/internal/directory"
	"github.com/netpulse/client/internal/events"
	"github.com/netpulse/client/internal/logging"
	"github.com/netpulse/client/internal/models"
	"github.com/netpulse/client/internal/propagation"
	"github.com/netpulse/client/internal/reconcile"
)

var (
	ErrSelfRequest      = errors.New("cannot send a friend request to yourself")
	ErrAlreadyFriends   = errors.New("users are already friends")
	ErrDuplicatePending = errors.New("a pending request already exists")
	ErrUnknownUser      = errors.New("unknown user")
	ErrRequestNotFound  = errors.New("friend request not found")
	ErrNotPending       = errors.New("friend request is no longer pending")
	ErrNotAddressee     = errors.New("only the addressee can respond to this request")
	ErrNotSender        = errors.New("only the sender can cancel this request")
)

// Users is the slice of the identity store the manager depends on.
type Users interface {
	User(id string) (models.User, bool)
	CurrentUserID() string
	AddFriendEdge(ctx context.Context, a, b string) bool
}

// Refresher schedules a friend request refresh without waiting for it.
type Refresher interface {
	TriggerRequests()
}

// EventKind names a request transition.
type EventKind string

const (
	RequestSent      EventKind = "request_sent"
	RequestAccepted  EventKind = "request_accepted"
	RequestDeclined  EventKind = "request_declined"
	RequestCancelled EventKind = "request_cancelled"
	RequestsReplaced EventKind = "requests_replaced"
)

// Event describes a change to the request table.
type Event struct {
	Kind    EventKind
	Request models.FriendRequest
}

// Options wires a Manager.
type Options struct {
	Users       Users
	Directory   directory.Client
	Propagation propagation.Submitter
	Logger      *slog.Logger
	NewID       func() string
	Now         func() time.Time
}

// Manager owns the friend request table.
type Manager struct {
	users  Users
	dir    directory.Client
	submit propagation.Submitter
	logger *slog.Logger
	newID  func() string
	now    func() time.Time
	bus    *events.Bus[Event]

	mu        sync.RWMutex
	requests  []models.FriendRequest
	refresher Refresher
}

// NewManager constructs a Manager with an empty table.
func NewManager(opts Options) *Manager {
	if opts.Users == nil {
		panic("friends: users must not be nil")
	}
	if opts.Directory == nil {
		opts.Directory = directory.Disabled{}
	}
	if opts.Propagation == nil {
		opts.Propagation = propagation.Inline{Logger: opts.Logger}
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		users:  opts.Users,
		dir:    opts.Directory,
		submit: opts.Propagation,
		logger: logging.Component(opts.Logger, "friends"),
		newID:  opts.NewID,
		now:    opts.Now,
		bus:    events.NewBus[Event](0),
	}
}

// SetRefresher installs the scheduler notified after local mutations.
func (m *Manager) SetRefresher(r Refresher) {
	m.mu.Lock()
	m.refresher = r
	m.mu.Unlock()
}

// Subscribe returns a channel of request events.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	return m.bus.Subscribe()
}

// Send creates a pending request from fromID to toID.
func (m *Manager) Send(ctx context.Context, fromID, toID string) (models.FriendRequest, error) {
	if fromID == toID {
		return models.FriendRequest{}, ErrSelfRequest
	}
	from, ok := m.users.User(fromID)
	if !ok {
		return models.FriendRequest{}, ErrUnknownUser
	}
	to, ok := m.users.User(toID)
	if !ok {
		return models.FriendRequest{}, ErrUnknownUser
	}
	if from.HasFriend(toID) || to.HasFriend(fromID) {
		return models.FriendRequest{}, ErrAlreadyFriends
	}

	m.mu.Lock()
	for _, r := range m.requests {
		if r.Status == models.RequestPending && r.FromUserID == fromID && r.ToUserID == toID {
			m.mu.Unlock()
			return models.FriendRequest{}, ErrDuplicatePending
		}
	}
	request := models.FriendRequest{
		ID:         m.newID(),
		FromUserID: fromID,
		ToUserID:   toID,
		Status:     models.RequestPending,
		CreatedAt:  m.now().UTC(),
	}
	m.requests = append(m.requests, request)
	refresher := m.refresher
	m.mu.Unlock()

	logging.FromContext(ctx).Debug("friend request sent", "requestId", request.ID, "from", fromID, "to", toID)
	m.submit.Submit("put_friend_request", "friend_request:"+request.ID, func(ctx context.Context) error {
		return m.dir.PutFriendRequest(ctx, request)
	})
	m.bus.Publish(Event{Kind: RequestSent, Request: request})
	if refresher != nil {
		refresher.TriggerRequests()
	}
	return request, nil
}

// Accept marks a pending request accepted and records the friendship. Only
// the addressee, as the current user, may accept.
func (m *Manager) Accept(ctx context.Context, id string) error {
	return m.respond(ctx, id, models.RequestAccepted)
}

// Decline marks a pending request declined. Only the addressee may decline.
func (m *Manager) Decline(ctx context.Context, id string) error {
	return m.respond(ctx, id, models.RequestDeclined)
}

// Cancel withdraws a pending request. Only the sender may cancel.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	return m.respond(ctx, id, models.RequestCancelled)
}

func (m *Manager) respond(ctx context.Context, id string, status models.FriendRequestStatus) error {
	actor := m.users.CurrentUserID()

	m.mu.Lock()
	idx := m.indexLocked(id)
	if idx < 0 {
		m.mu.Unlock()
		return ErrRequestNotFound
	}
	request := m.requests[idx]
	if request.Status != models.RequestPending {
		m.mu.Unlock()
		return ErrNotPending
	}
	switch status {
	case models.RequestCancelled:
		if actor == "" || actor != request.FromUserID {
			m.mu.Unlock()
			return ErrNotSender
		}
	default:
		if actor == "" || actor != request.ToUserID {
			m.mu.Unlock()
			return ErrNotAddressee
		}
	}
	if status == models.RequestAccepted && !m.users.AddFriendEdge(ctx, request.FromUserID, request.ToUserID) {
		m.mu.Unlock()
		return ErrUnknownUser
	}
	request.Status = status
	m.requests[idx] = request
	refresher := m.refresher
	m.mu.Unlock()

	logging.FromContext(ctx).Debug("friend request resolved", "requestId", id, "status", status)
	m.patch(request)
	m.bus.Publish(Event{Kind: eventFor(status), Request: request})
	if refresher != nil {
		refresher.TriggerRequests()
	}
	return nil
}

func (m *Manager) patch(request models.FriendRequest) {
	m.submit.Submit("patch_friend_request", "friend_request:"+request.ID, func(ctx context.Context) error {
		return m.dir.PatchFriendRequestStatus(ctx, request.ID, request.Status)
	})
}

func eventFor(status models.FriendRequestStatus) EventKind {
	switch status {
	case models.RequestAccepted:
		return RequestAccepted
	case models.RequestDeclined:
		return RequestDeclined
	default:
		return RequestCancelled
	}
}

// Incoming returns the pending requests addressed to userID.
func (m *Manager) Incoming(userID string) []models.FriendRequest {
	return m.filter(func(r models.FriendRequest) bool {
		return r.Status == models.RequestPending && r.ToUserID == userID
	})
}

// SentPending returns the current user's outstanding requests.
func (m *Manager) SentPending() []models.FriendRequest {
	userID := m.users.CurrentUserID()
	if userID == "" {
		return nil
	}
	return m.filter(func(r models.FriendRequest) bool {
		return r.Status == models.RequestPending && r.FromUserID == userID
	})
}

// Requests returns a copy of the whole table.
func (m *Manager) Requests() []models.FriendRequest {
	return m.filter(func(models.FriendRequest) bool { return true })
}

// Request looks a request up by id.
func (m *Manager) Request(id string) (models.FriendRequest, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx := m.indexLocked(id)
	if idx < 0 {
		return models.FriendRequest{}, false
	}
	return m.requests[idx], true
}

// Replace merges a fetched remote table into the local one. Local terminal
// states that the directory still shows as pending are sent again.
func (m *Manager) Replace(ctx context.Context, remote []models.FriendRequest) {
	remote = models.NormalizeFriendRequests(remote)

	m.mu.Lock()
	result := reconcile.MergeRequests(remote, m.requests)
	m.requests = result.Requests
	m.mu.Unlock()

	for _, r := range result.Overridden {
		logging.FromContext(ctx).Info("re-sending terminal friend request status", "requestId", r.ID, "status", r.Status)
		m.patch(r)
	}
	m.bus.Publish(Event{Kind: RequestsReplaced})
}

func (m *Manager) filter(keep func(models.FriendRequest) bool) []models.FriendRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.FriendRequest, 0, len(m.requests))
	for _, r := range m.requests {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func (m *Manager) indexLocked(id string) int {
	for i := range m.requests {
		if m.requests[i].ID == id {
			return i
		}
	}
	return -1
}
