// Package sessions runs session invitations and the single active countdown.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/netpulse/client/internal/events"
	"github.com/netpulse/client/internal/logging"
	"github.com/netpulse/client/internal/models"
)

var (
	ErrUnknownUser          = errors.New("unknown user")
	ErrTargetOffline        = errors.New("invitee is not online")
	ErrNotFriends           = errors.New("invitee is not a friend")
	ErrInvalidSessionType   = errors.New("invalid session type")
	ErrInvitationNotFound   = errors.New("invitation not found")
	ErrInvitationNotPending = errors.New("invitation is no longer pending")
	ErrInvalidDuration      = errors.New("duration must be between 1 minute and 24 hours")
	ErrNotInvitee           = errors.New("only the invitee may respond to an invitation")
	ErrSessionActive        = errors.New("a session is already active")
)

// MaxDurationMinutes caps a session at one day.
const MaxDurationMinutes = 24 * 60

// Users resolves participants and the acting user.
type Users interface {
	User(id string) (models.User, bool)
	CurrentUserID() string
}

// Ticker delivers countdown ticks.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type timeTicker struct{ *time.Ticker }

func (t timeTicker) Chan() <-chan time.Time { return t.C }

// NewTimeTicker adapts time.NewTicker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}

// EventKind names an invitation or session transition.
type EventKind string

const (
	InvitationSent     EventKind = "invitation_sent"
	InvitationDeclined EventKind = "invitation_declined"
	SessionStarted     EventKind = "session_started"
	SessionTick        EventKind = "session_tick"
	SessionEnded       EventKind = "session_ended"
)

// Event is published after the orchestrator state changed.
type Event struct {
	Kind       EventKind
	Invitation models.Invitation
	Session    models.Session
	Remaining  int
}

// Options wires an Orchestrator.
type Options struct {
	Users        Users
	Logger       *slog.Logger
	Now          func() time.Time
	NewTicker    func(time.Duration) Ticker
	TickInterval time.Duration
	NewID        func() string
}

// Orchestrator owns invitations, the active session and the completed history.
type Orchestrator struct {
	users     Users
	logger    *slog.Logger
	now       func() time.Time
	newTicker func(time.Duration) Ticker
	interval  time.Duration
	newID     func() string
	bus       *events.Bus[Event]

	mu            sync.Mutex
	invitations   []models.Invitation
	active        *models.Session
	lastRemaining int
	history       []models.Session
	stopCountdown context.CancelFunc
	countdownDone chan struct{}
}

// New constructs an idle Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Users == nil {
		panic("sessions: users must not be nil")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewTicker == nil {
		opts.NewTicker = NewTimeTicker
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Orchestrator{
		users:     opts.Users,
		logger:    logging.Component(opts.Logger, "sessions"),
		now:       opts.Now,
		newTicker: opts.NewTicker,
		interval:  opts.TickInterval,
		newID:     opts.NewID,
		bus:       events.NewBus[Event](0),
	}
}

// Subscribe returns a channel of orchestrator events.
func (o *Orchestrator) Subscribe() (<-chan Event, func()) {
	return o.bus.Subscribe()
}

// SendInvitation invites a friend who is currently online.
func (o *Orchestrator) SendInvitation(fromID, toID string, sessionType models.SessionType) (models.Invitation, error) {
	if !sessionType.Valid() {
		return models.Invitation{}, ErrInvalidSessionType
	}
	from, ok := o.users.User(fromID)
	if !ok {
		return models.Invitation{}, ErrUnknownUser
	}
	to, ok := o.users.User(toID)
	if !ok {
		return models.Invitation{}, ErrUnknownUser
	}
	if to.Status != models.StatusOnline {
		return models.Invitation{}, ErrTargetOffline
	}
	if !from.HasFriend(toID) {
		return models.Invitation{}, ErrNotFriends
	}

	inv := models.Invitation{
		ID:          o.newID(),
		FromUserID:  fromID,
		ToUserID:    toID,
		SessionType: sessionType,
		Status:      models.InvitationPending,
		SentAt:      o.now().UTC(),
	}
	o.mu.Lock()
	o.invitations = append(o.invitations, inv)
	o.mu.Unlock()

	o.bus.Publish(Event{Kind: InvitationSent, Invitation: inv})
	return inv, nil
}

// IncomingInvitations lists pending invitations addressed to userID.
func (o *Orchestrator) IncomingInvitations(userID string) []models.Invitation {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []models.Invitation
	for _, inv := range o.invitations {
		if inv.ToUserID == userID && inv.Status == models.InvitationPending {
			out = append(out, inv)
		}
	}
	return out
}

// Invitation looks an invitation up by id.
func (o *Orchestrator) Invitation(id string) (models.Invitation, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	idx := o.invitationIndexLocked(id)
	if idx < 0 {
		return models.Invitation{}, false
	}
	return o.invitations[idx], true
}

// DeclineInvitation marks a pending invitation declined. Only the invitee,
// as the current user, may decline.
func (o *Orchestrator) DeclineInvitation(id string) error {
	actor := o.users.CurrentUserID()

	o.mu.Lock()
	idx := o.invitationIndexLocked(id)
	if idx < 0 {
		o.mu.Unlock()
		return ErrInvitationNotFound
	}
	if o.invitations[idx].Status != models.InvitationPending {
		o.mu.Unlock()
		return ErrInvitationNotPending
	}
	if actor == "" || actor != o.invitations[idx].ToUserID {
		o.mu.Unlock()
		return ErrNotInvitee
	}
	o.invitations[idx].Status = models.InvitationDeclined
	inv := o.invitations[idx]
	o.mu.Unlock()

	o.bus.Publish(Event{Kind: InvitationDeclined, Invitation: inv})
	return nil
}

// InvitationSender resolves the user who sent inv.
func (o *Orchestrator) InvitationSender(inv models.Invitation) (models.User, bool) {
	return o.users.User(inv.FromUserID)
}

// StartSession accepts a pending invitation and starts the countdown. Only
// the invitee, as the current user, may accept.
func (o *Orchestrator) StartSession(invitationID string, durationMinutes int) (models.Session, error) {
	if durationMinutes <= 0 || durationMinutes > MaxDurationMinutes {
		return models.Session{}, ErrInvalidDuration
	}
	actor := o.users.CurrentUserID()

	o.mu.Lock()
	if o.active != nil {
		o.mu.Unlock()
		return models.Session{}, ErrSessionActive
	}
	idx := o.invitationIndexLocked(invitationID)
	if idx < 0 {
		o.mu.Unlock()
		return models.Session{}, ErrInvitationNotFound
	}
	inv := o.invitations[idx]
	if inv.Status != models.InvitationPending {
		o.mu.Unlock()
		return models.Session{}, ErrInvitationNotPending
	}
	if actor == "" || actor != inv.ToUserID {
		o.mu.Unlock()
		return models.Session{}, ErrNotInvitee
	}
	o.invitations[idx].Status = models.InvitationAccepted

	session := models.Session{
		ID:              o.newID(),
		InvitationID:    inv.ID,
		SessionType:     inv.SessionType,
		ParticipantIDs:  []string{inv.FromUserID, inv.ToUserID},
		StartedAt:       o.now().UTC(),
		DurationSeconds: durationMinutes * 60,
		IsActive:        true,
	}
	o.active = &session
	o.lastRemaining = session.DurationSeconds

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	o.stopCountdown = cancel
	o.countdownDone = done
	ticker := o.newTicker(o.interval)
	go o.runCountdown(ctx, session.ID, ticker, done)
	out := session.Clone()
	o.mu.Unlock()

	o.logger.Info("session started", "sessionId", session.ID, "type", session.SessionType, "durationSeconds", session.DurationSeconds)
	o.bus.Publish(Event{Kind: SessionStarted, Session: out, Remaining: out.DurationSeconds})
	return out, nil
}

func (o *Orchestrator) runCountdown(ctx context.Context, sessionID string, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if o.tick(sessionID) {
				return
			}
		}
	}
}

// tick recomputes the remaining time from absolute timestamps and ends the
// session when it reaches zero. It reports whether the countdown is over.
func (o *Orchestrator) tick(sessionID string) bool {
	o.mu.Lock()
	if o.active == nil || o.active.ID != sessionID {
		o.mu.Unlock()
		return true
	}
	remaining := o.remainingLocked()
	if remaining > 0 {
		session := o.active.Clone()
		o.mu.Unlock()
		o.bus.Publish(Event{Kind: SessionTick, Session: session, Remaining: remaining})
		return false
	}
	ended := o.endLocked()
	o.mu.Unlock()

	o.logger.Info("session completed", "sessionId", ended.ID)
	o.bus.Publish(Event{Kind: SessionEnded, Session: ended})
	return true
}

// EndSession stops the active session early and moves it to history.
func (o *Orchestrator) EndSession() (models.Session, bool) {
	o.mu.Lock()
	if o.active == nil {
		o.mu.Unlock()
		return models.Session{}, false
	}
	ended := o.endLocked()
	o.mu.Unlock()

	o.logger.Info("session ended", "sessionId", ended.ID)
	o.bus.Publish(Event{Kind: SessionEnded, Session: ended})
	return ended, true
}

func (o *Orchestrator) endLocked() models.Session {
	if o.stopCountdown != nil {
		o.stopCountdown()
		o.stopCountdown = nil
	}
	session := *o.active
	completed := o.now().UTC()
	session.CompletedAt = &completed
	session.IsActive = false
	o.history = append(o.history, session)
	o.active = nil
	o.lastRemaining = 0
	return session.Clone()
}

// remainingLocked never grows between calls for the same session.
func (o *Orchestrator) remainingLocked() int {
	if o.active == nil {
		return 0
	}
	remaining := o.active.RemainingSeconds(o.now())
	if remaining > o.lastRemaining {
		remaining = o.lastRemaining
	}
	o.lastRemaining = remaining
	return remaining
}

// ActiveSession returns the running session, if any.
func (o *Orchestrator) ActiveSession() (models.Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil {
		return models.Session{}, false
	}
	return o.active.Clone(), true
}

// RemainingSeconds is the countdown value, or 0 when idle.
func (o *Orchestrator) RemainingSeconds() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.remainingLocked()
}

// History returns completed sessions, oldest first.
func (o *Orchestrator) History() []models.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]models.Session, 0, len(o.history))
	for _, s := range o.history {
		out = append(out, s.Clone())
	}
	return out
}

// Close stops the countdown goroutine without ending the session.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	cancel, done := o.stopCountdown, o.countdownDone
	o.stopCountdown = nil
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (o *Orchestrator) invitationIndexLocked(id string) int {
	for i := range o.invitations {
		if o.invitations[i].ID == id {
			return i
		}
	}
	return -1
}

// FormatRemaining renders seconds as m:ss.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
