package handlers

import (
	"context"

	"github.com/netpulse/client/internal/models"
)

// IdentityService covers account and current-user operations.
type IdentityService interface {
	Authenticate(ctx context.Context, email, password string) error
	Register(ctx context.Context, name, email, password string) (models.User, error)
	Logout(ctx context.Context)
	CurrentUser() (models.User, bool)
	User(id string) (models.User, bool)
	Users() []models.User
}

// PresenceService covers status updates and user discovery.
type PresenceService interface {
	SetStatus(ctx context.Context, status models.UserStatus) bool
	SetCustomStatus(ctx context.Context, text string) bool
	Toggle(ctx context.Context) bool
	Friends() []models.User
	Discoverable(query string) []models.User
	FindUser(handleOrEmail string) (models.User, bool)
	AddFriendByHandle(ctx context.Context, handle string) (models.User, error)
}

// FriendService drives friend requests.
type FriendService interface {
	Send(ctx context.Context, fromID, toID string) (models.FriendRequest, error)
	Accept(ctx context.Context, id string) error
	Decline(ctx context.Context, id string) error
	Cancel(ctx context.Context, id string) error
	Incoming(userID string) []models.FriendRequest
	SentPending() []models.FriendRequest
}

// SessionService drives invitations and the shared countdown.
type SessionService interface {
	SendInvitation(fromID, toID string, sessionType models.SessionType) (models.Invitation, error)
	IncomingInvitations(userID string) []models.Invitation
	DeclineInvitation(id string) error
	InvitationSender(inv models.Invitation) (models.User, bool)
	StartSession(invitationID string, durationMinutes int) (models.Session, error)
	EndSession() (models.Session, bool)
	ActiveSession() (models.Session, bool)
	RemainingSeconds() int
	History() []models.Session
}

// Syncer schedules a background refresh.
type Syncer interface {
	Trigger()
}
