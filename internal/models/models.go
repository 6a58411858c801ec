package models

import (
	"strings"
	"time"
)

// UserStatus is the preset presence a user declares.
type UserStatus string

const (
	StatusOnline   UserStatus = "online"
	StatusOffline  UserStatus = "offline"
	StatusWorking  UserStatus = "working"
	StatusStudying UserStatus = "studying"
)

// Valid reports whether s is one of the preset statuses.
func (s UserStatus) Valid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusWorking, StatusStudying:
		return true
	}
	return false
}

// Label returns the human readable name of the status.
func (s UserStatus) Label() string {
	switch s {
	case StatusOnline:
		return "Online"
	case StatusOffline:
		return "Offline"
	case StatusWorking:
		return "Working"
	case StatusStudying:
		return "Studying"
	default:
		return string(s)
	}
}

// ParseUserStatus accepts a status name in any case.
func ParseUserStatus(raw string) (UserStatus, bool) {
	s := UserStatus(strings.ToLower(strings.TrimSpace(raw)))
	return s, s.Valid()
}

// User represents an account known to the NetPulse directory.
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	Status       UserStatus `json:"status"`
	CustomStatus string     `json:"customStatus,omitempty"`
	FriendsList  []string   `json:"friendsList"`
	PasswordHash string     `json:"passwordHash,omitempty"`
	PasswordSalt string     `json:"passwordSalt,omitempty"`
}

// DisplayStatus prefers the trimmed custom status over the preset label.
func (u User) DisplayStatus() string {
	if custom := strings.TrimSpace(u.CustomStatus); custom != "" {
		return custom
	}
	return u.Status.Label()
}

// HasFriend reports whether id is in the user's friends list.
func (u User) HasFriend(id string) bool {
	for _, friend := range u.FriendsList {
		if friend == id {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices with u.
func (u User) Clone() User {
	out := u
	out.FriendsList = append([]string(nil), u.FriendsList...)
	if out.FriendsList == nil {
		out.FriendsList = []string{}
	}
	return out
}

// ToggleStatus flips online to offline and every other preset back to online.
// The custom status is cleared.
func (u *User) ToggleStatus() {
	if u.Status == StatusOnline {
		u.Status = StatusOffline
	} else {
		u.Status = StatusOnline
	}
	u.CustomStatus = ""
}

// MakeUsername derives a handle from the email local-part, falling back to the name.
func MakeUsername(name, email string) string {
	if local, _, _ := strings.Cut(strings.TrimSpace(email), "@"); local != "" {
		return strings.ToLower(local)
	}
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// FriendRequestStatus tracks the lifecycle of a directed friend request.
type FriendRequestStatus string

const (
	RequestPending   FriendRequestStatus = "pending"
	RequestAccepted  FriendRequestStatus = "accepted"
	RequestDeclined  FriendRequestStatus = "declined"
	RequestCancelled FriendRequestStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s FriendRequestStatus) Terminal() bool {
	return s == RequestAccepted || s == RequestDeclined || s == RequestCancelled
}

func (s FriendRequestStatus) valid() bool {
	return s == RequestPending || s.Terminal()
}

// FriendRequest represents the invitation workflow between two users.
type FriendRequest struct {
	ID         string
	FromUserID string
	ToUserID   string
	Status     FriendRequestStatus
	CreatedAt  time.Time
}

// SessionType is the kind of collaborative session.
type SessionType string

const (
	SessionWork       SessionType = "work"
	SessionStudy      SessionType = "study"
	SessionMeditation SessionType = "meditation"
)

// Valid reports whether t is a known session type.
func (t SessionType) Valid() bool {
	return t == SessionWork || t == SessionStudy || t == SessionMeditation
}

// InvitationStatus tracks an invitation to a session.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
)

// Invitation asks a friend to join a synchronized session.
type Invitation struct {
	ID          string           `json:"id"`
	FromUserID  string           `json:"fromUserId"`
	ToUserID    string           `json:"toUserId"`
	SessionType SessionType      `json:"sessionType"`
	Status      InvitationStatus `json:"status"`
	SentAt      time.Time        `json:"sentAt"`
}

// Session is an active or completed synchronized countdown.
type Session struct {
	ID              string      `json:"id"`
	InvitationID    string      `json:"invitationId"`
	SessionType     SessionType `json:"sessionType"`
	ParticipantIDs  []string    `json:"participantIds"`
	StartedAt       time.Time   `json:"startedAt"`
	DurationSeconds int         `json:"durationSeconds"`
	IsActive        bool        `json:"isActive"`
	CompletedAt     *time.Time  `json:"completedAt,omitempty"`
}

// EndTime is the instant the countdown reaches zero.
func (s Session) EndTime() time.Time {
	return s.StartedAt.Add(time.Duration(s.DurationSeconds) * time.Second)
}

// RemainingSeconds is computed from absolute timestamps and is zero once inactive.
func (s Session) RemainingSeconds(now time.Time) int {
	if !s.IsActive {
		return 0
	}
	remaining := int(s.EndTime().Sub(now) / time.Second)
	if remaining < 0 {
		return 0
	}
	if remaining > s.DurationSeconds {
		return s.DurationSeconds
	}
	return remaining
}

// Clone returns a copy that shares no memory with s.
func (s Session) Clone() Session {
	out := s
	out.ParticipantIDs = append([]string(nil), s.ParticipantIDs...)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return out
}
