package handlers

import (
	"net/http"
	"strings"

	"github.com/netpulse/client/internal/logging"
	"github.com/netpulse/client/internal/models"
)

// FriendHandler exposes the friend request lifecycle for the current user.
type FriendHandler struct {
	Identity IdentityService
	Friends  FriendService
}

type sendRequestPayload struct {
	ToUserID string `json:"toUserId"`
}

type respondRequestPayload struct {
	ID     string `json:"id"`
	Action string `json:"action"`
}

type requestsResponse struct {
	Incoming []models.FriendRequest `json:"incoming"`
	Sent     []models.FriendRequest `json:"sent"`
}

// Requests handles GET (list) and POST (send) on /api/v1/friends/requests.
func (h FriendHandler) Requests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.send(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h FriendHandler) list(w http.ResponseWriter, r *http.Request) {
	current, ok := requireUser(w, r, h.Identity)
	if !ok {
		return
	}
	incoming := h.Friends.Incoming(current.ID)
	if incoming == nil {
		incoming = []models.FriendRequest{}
	}
	sent := h.Friends.SentPending()
	if sent == nil {
		sent = []models.FriendRequest{}
	}
	respondJSON(r.Context(), w, http.StatusOK, requestsResponse{Incoming: incoming, Sent: sent})
}

func (h FriendHandler) send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	current, ok := requireUser(w, r, h.Identity)
	if !ok {
		return
	}

	var req sendRequestPayload
	if err := decodeJSON(r, &req); err != nil {
		logging.FromContext(ctx).Warn("invalid friend request payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.ToUserID = strings.TrimSpace(req.ToUserID)
	if req.ToUserID == "" {
		respondError(ctx, w, http.StatusBadRequest, "toUserId is required")
		return
	}

	request, err := h.Friends.Send(ctx, current.ID, req.ToUserID)
	if err != nil {
		respondErr(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, request)
}

// Respond handles POST /api/v1/friends/requests/respond with an action of
// accept, decline or cancel.
func (h FriendHandler) Respond(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if _, ok := requireUser(w, r, h.Identity); !ok {
		return
	}

	var req respondRequestPayload
	if err := decodeJSON(r, &req); err != nil {
		logging.FromContext(ctx).Warn("invalid respond payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		respondError(ctx, w, http.StatusBadRequest, "id is required")
		return
	}

	var err error
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "accept":
		err = h.Friends.Accept(ctx, req.ID)
	case "decline":
		err = h.Friends.Decline(ctx, req.ID)
	case "cancel":
		err = h.Friends.Cancel(ctx, req.ID)
	default:
		respondError(ctx, w, http.StatusBadRequest, "action must be accept, decline or cancel")
		return
	}
	if err != nil {
		respondErr(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
