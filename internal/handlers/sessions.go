package handlers

import (
	"net/http"
	"strings"

	"github.com/netpulse/client/internal/logging"
	"github.com/netpulse/client/internal/models"
	"github.com/netpulse/client/internal/sessions"
)

// SessionHandler exposes invitations and the shared countdown.
type SessionHandler struct {
	Identity IdentityService
	Sessions SessionService
}

type invitePayload struct {
	ToUserID    string `json:"toUserId"`
	SessionType string `json:"sessionType"`
}

type idPayload struct {
	ID string `json:"id"`
}

type startPayload struct {
	InvitationID    string `json:"invitationId"`
	DurationMinutes int    `json:"durationMinutes"`
}

type invitationView struct {
	models.Invitation
	From *userView `json:"from,omitempty"`
}

type activeView struct {
	Session          models.Session `json:"session"`
	RemainingSeconds int            `json:"remainingSeconds"`
	Remaining        string         `json:"remaining"`
}

// Invitations handles GET (incoming) and POST (send) on /api/v1/invitations.
func (h SessionHandler) Invitations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.incoming(w, r)
	case http.MethodPost:
		h.invite(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h SessionHandler) incoming(w http.ResponseWriter, r *http.Request) {
	current, ok := requireUser(w, r, h.Identity)
	if !ok {
		return
	}
	pending := h.Sessions.IncomingInvitations(current.ID)
	out := make([]invitationView, 0, len(pending))
	for _, inv := range pending {
		view := invitationView{Invitation: inv}
		if sender, found := h.Sessions.InvitationSender(inv); found {
			sv := newUserView(sender)
			view.From = &sv
		}
		out = append(out, view)
	}
	respondJSON(r.Context(), w, http.StatusOK, map[string]any{"invitations": out})
}

func (h SessionHandler) invite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	current, ok := requireUser(w, r, h.Identity)
	if !ok {
		return
	}

	var req invitePayload
	if err := decodeJSON(r, &req); err != nil {
		logging.FromContext(ctx).Warn("invalid invitation payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.ToUserID) == "" {
		respondError(ctx, w, http.StatusBadRequest, "toUserId is required")
		return
	}

	sessionType := models.SessionType(strings.ToLower(strings.TrimSpace(req.SessionType)))
	inv, err := h.Sessions.SendInvitation(current.ID, req.ToUserID, sessionType)
	if err != nil {
		respondErr(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, inv)
}

// Decline handles POST /api/v1/invitations/decline.
func (h SessionHandler) Decline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if _, ok := requireUser(w, r, h.Identity); !ok {
		return
	}
	var req idPayload
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.ID) == "" {
		respondError(ctx, w, http.StatusBadRequest, "id is required")
		return
	}
	if err := h.Sessions.DeclineInvitation(req.ID); err != nil {
		respondErr(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Start handles POST /api/v1/sessions/start.
func (h SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if _, ok := requireUser(w, r, h.Identity); !ok {
		return
	}
	var req startPayload
	if err := decodeJSON(r, &req); err != nil {
		logging.FromContext(ctx).Warn("invalid start payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.InvitationID) == "" {
		respondError(ctx, w, http.StatusBadRequest, "invitationId is required")
		return
	}

	session, err := h.Sessions.StartSession(req.InvitationID, req.DurationMinutes)
	if err != nil {
		respondErr(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, activeView{
		Session:          session,
		RemainingSeconds: session.DurationSeconds,
		Remaining:        sessions.FormatRemaining(session.DurationSeconds),
	})
}

// End handles POST /api/v1/sessions/end.
func (h SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ended, ok := h.Sessions.EndSession()
	if !ok {
		respondError(r.Context(), w, http.StatusNotFound, "no active session")
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, ended)
}

// Active handles GET /api/v1/sessions/active.
func (h SessionHandler) Active(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	session, ok := h.Sessions.ActiveSession()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	remaining := h.Sessions.RemainingSeconds()
	respondJSON(r.Context(), w, http.StatusOK, activeView{
		Session:          session,
		RemainingSeconds: remaining,
		Remaining:        sessions.FormatRemaining(remaining),
	})
}

// History handles GET /api/v1/sessions/history.
func (h SessionHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, map[string]any{"sessions": h.Sessions.History()})
}
