package handlers

import "net/http"

// SyncHandler lets the UI request an immediate directory refresh.
type SyncHandler struct {
	Syncer Syncer
}

// Sync handles POST /api/v1/sync. The refresh runs asynchronously.
func (h SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.Syncer == nil {
		respondError(r.Context(), w, http.StatusServiceUnavailable, "sync is not configured")
		return
	}
	h.Syncer.Trigger()
	w.WriteHeader(http.StatusAccepted)
}
