package handlers

import (
	"net/http"
	"strings"

	"github.com/netpulse/client/internal/logging"
	"github.com/netpulse/client/internal/models"
)

// PresenceHandler exposes status updates and user discovery.
type PresenceHandler struct {
	Identity IdentityService
	Presence PresenceService
}

type statusRequest struct {
	Status       *string `json:"status,omitempty"`
	CustomStatus *string `json:"customStatus,omitempty"`
	Toggle       bool    `json:"toggle,omitempty"`
}

type handleRequest struct {
	Handle string `json:"handle"`
}

// Status handles POST /api/v1/status. Exactly one of status, customStatus or
// toggle is expected.
func (h PresenceHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if _, ok := requireUser(w, r, h.Identity); !ok {
		return
	}

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		logging.FromContext(ctx).Warn("invalid status payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	var applied bool
	switch {
	case req.Toggle:
		applied = h.Presence.Toggle(ctx)
	case req.Status != nil:
		status, valid := models.ParseUserStatus(*req.Status)
		if !valid {
			respondError(ctx, w, http.StatusBadRequest, "unknown status")
			return
		}
		applied = h.Presence.SetStatus(ctx, status)
	case req.CustomStatus != nil:
		applied = h.Presence.SetCustomStatus(ctx, *req.CustomStatus)
	default:
		respondError(ctx, w, http.StatusBadRequest, "status, customStatus or toggle is required")
		return
	}
	if !applied {
		respondError(ctx, w, http.StatusUnauthorized, "not logged in")
		return
	}

	current, ok := requireUser(w, r, h.Identity)
	if !ok {
		return
	}
	respondJSON(ctx, w, http.StatusOK, newUserView(current))
}

// Friends handles GET /api/v1/friends.
func (h PresenceHandler) Friends(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireUser(w, r, h.Identity); !ok {
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, map[string]any{"friends": newUserViews(h.Presence.Friends())})
}

// Discover handles GET /api/v1/users/discover?q=.
func (h PresenceHandler) Discover(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := requireUser(w, r, h.Identity); !ok {
		return
	}
	users := h.Presence.Discoverable(r.URL.Query().Get("q"))
	respondJSON(r.Context(), w, http.StatusOK, map[string]any{"users": newUserViews(users)})
}

// Lookup handles GET /api/v1/users/lookup?handle=.
func (h PresenceHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	handle := strings.TrimSpace(r.URL.Query().Get("handle"))
	if handle == "" {
		respondError(ctx, w, http.StatusBadRequest, "handle is required")
		return
	}
	user, ok := h.Presence.FindUser(handle)
	if !ok {
		respondError(ctx, w, http.StatusNotFound, "user not found")
		return
	}
	respondJSON(ctx, w, http.StatusOK, newUserView(user))
}

// AddFriend handles POST /api/v1/friends/add, befriending by handle directly.
func (h PresenceHandler) AddFriend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	var req handleRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Handle) == "" {
		respondError(ctx, w, http.StatusBadRequest, "handle is required")
		return
	}

	friend, err := h.Presence.AddFriendByHandle(ctx, req.Handle)
	if err != nil {
		respondErr(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, newUserView(friend))
}
