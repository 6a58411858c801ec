package handlers

import (
	"net/http"
)

// HealthHandler responds with engine health information.
type HealthHandler struct {
	Identity IdentityService
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	payload := map[string]any{
		"status": "ok",
	}
	if h.Identity != nil {
		_, loggedIn := h.Identity.CurrentUser()
		payload["users"] = len(h.Identity.Users())
		payload["loggedIn"] = loggedIn
	}

	respondJSON(r.Context(), w, http.StatusOK, payload)
}
