package handlers

import (
	"net/http"
	"net/mail"
	"strings"

	"github.com/netpulse/client/internal/logging"
)

// AuthHandler implements account endpoints for the local user.
type AuthHandler struct {
	Identity IdentityService
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/v1/auth/login requests.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Identity == nil {
		logger.Error("identity service unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "identity service unavailable")
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		respondError(ctx, w, http.StatusBadRequest, "email is required")
		return
	}

	if err := h.Identity.Authenticate(ctx, req.Email, req.Password); err != nil {
		logger.Warn("login rejected", "email", req.Email)
		respondErr(ctx, w, err)
		return
	}

	current, ok := h.Identity.CurrentUser()
	if !ok {
		respondError(ctx, w, http.StatusInternalServerError, "login did not take effect")
		return
	}
	respondJSON(ctx, w, http.StatusOK, newUserView(current))
}

// Register handles POST /api/v1/auth/register requests.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Identity == nil {
		logger.Error("identity service unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "identity service unavailable")
		return
	}

	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid register payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" {
		respondError(ctx, w, http.StatusBadRequest, "name and email are required")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		logger.Warn("register invalid email", "email", req.Email, "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid email address")
		return
	}

	user, err := h.Identity.Register(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		respondErr(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, newUserView(user))
}

// Logout handles POST /api/v1/auth/logout requests.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.Identity == nil {
		respondError(r.Context(), w, http.StatusInternalServerError, "identity service unavailable")
		return
	}

	h.Identity.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/me.
func (h AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	current, ok := requireUser(w, r, h.Identity)
	if !ok {
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, newUserView(current))
}
