package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/netpulse/client/internal/friends"
	"github.com/netpulse/client/internal/identity"
	"github.com/netpulse/client/internal/logging"
	"github.com/netpulse/client/internal/models"
	"github.com/netpulse/client/internal/presence"
	"github.com/netpulse/client/internal/sessions"
)

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respondJSON(ctx, w, status, map[string]string{"error": message})
}

// respondErr maps an engine error to a status code and writes it.
func respondErr(ctx context.Context, w http.ResponseWriter, err error) {
	respondError(ctx, w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, identity.ErrInvalidInput),
		errors.Is(err, friends.ErrSelfRequest),
		errors.Is(err, sessions.ErrInvalidSessionType),
		errors.Is(err, sessions.ErrInvalidDuration),
		errors.Is(err, presence.ErrSelf):
		return http.StatusBadRequest
	case errors.Is(err, identity.ErrInvalidCredentials),
		errors.Is(err, presence.ErrNotLoggedIn):
		return http.StatusUnauthorized
	case errors.Is(err, friends.ErrNotAddressee),
		errors.Is(err, friends.ErrNotSender),
		errors.Is(err, sessions.ErrNotFriends),
		errors.Is(err, sessions.ErrNotInvitee):
		return http.StatusForbidden
	case errors.Is(err, friends.ErrUnknownUser),
		errors.Is(err, friends.ErrRequestNotFound),
		errors.Is(err, sessions.ErrUnknownUser),
		errors.Is(err, sessions.ErrInvitationNotFound),
		errors.Is(err, presence.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, identity.ErrDuplicateEmail),
		errors.Is(err, friends.ErrAlreadyFriends),
		errors.Is(err, friends.ErrDuplicatePending),
		errors.Is(err, friends.ErrNotPending),
		errors.Is(err, sessions.ErrTargetOffline),
		errors.Is(err, sessions.ErrSessionActive),
		errors.Is(err, sessions.ErrInvitationNotPending):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// requireUser writes 401 when nobody is logged in.
func requireUser(w http.ResponseWriter, r *http.Request, users IdentityService) (models.User, bool) {
	if users == nil {
		logging.FromContext(r.Context()).Error("identity service unavailable")
		respondError(r.Context(), w, http.StatusInternalServerError, "identity service unavailable")
		return models.User{}, false
	}
	current, ok := users.CurrentUser()
	if !ok {
		respondError(r.Context(), w, http.StatusUnauthorized, "not logged in")
		return models.User{}, false
	}
	return current, true
}

type userView struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Email         string            `json:"email"`
	Username      string            `json:"username"`
	Handle        string            `json:"handle"`
	Status        models.UserStatus `json:"status"`
	CustomStatus  string            `json:"customStatus,omitempty"`
	DisplayStatus string            `json:"displayStatus"`
	FriendsList   []string          `json:"friendsList"`
}

func newUserView(u models.User) userView {
	friendsList := u.FriendsList
	if friendsList == nil {
		friendsList = []string{}
	}
	return userView{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Username:      u.Username,
		Handle:        models.HandlePayload(u.Username),
		Status:        u.Status,
		CustomStatus:  u.CustomStatus,
		DisplayStatus: u.DisplayStatus(),
		FriendsList:   friendsList,
	}
}

func newUserViews(users []models.User) []userView {
	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, newUserView(u))
	}
	return out
}
