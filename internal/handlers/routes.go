package handlers

import (
	"net/http"

	"github.com/netpulse/client/internal/middleware"
)

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Identity: deps.Identity}
	auth := AuthHandler{Identity: deps.Identity}
	presence := PresenceHandler{Identity: deps.Identity, Presence: deps.Presence}
	friends := FriendHandler{Identity: deps.Identity, Friends: deps.Friends}
	sessions := SessionHandler{Identity: deps.Identity, Sessions: deps.Sessions}
	sync := SyncHandler{Syncer: deps.Syncer}

	limit := middleware.RateLimit(deps.AuthLimiter, "auth")

	mux.HandleFunc("/healthz", health.Handle)
	mux.Handle("/api/v1/auth/login", limit(http.HandlerFunc(auth.Login)))
	mux.Handle("/api/v1/auth/register", limit(http.HandlerFunc(auth.Register)))
	mux.HandleFunc("/api/v1/auth/logout", auth.Logout)
	mux.HandleFunc("/api/v1/me", auth.Me)
	mux.HandleFunc("/api/v1/status", presence.Status)
	mux.HandleFunc("/api/v1/friends", presence.Friends)
	mux.HandleFunc("/api/v1/friends/add", presence.AddFriend)
	mux.HandleFunc("/api/v1/users/discover", presence.Discover)
	mux.HandleFunc("/api/v1/users/lookup", presence.Lookup)
	mux.HandleFunc("/api/v1/friends/requests", friends.Requests)
	mux.HandleFunc("/api/v1/friends/requests/respond", friends.Respond)
	mux.HandleFunc("/api/v1/invitations", sessions.Invitations)
	mux.HandleFunc("/api/v1/invitations/decline", sessions.Decline)
	mux.HandleFunc("/api/v1/sessions/start", sessions.Start)
	mux.HandleFunc("/api/v1/sessions/end", sessions.End)
	mux.HandleFunc("/api/v1/sessions/active", sessions.Active)
	mux.HandleFunc("/api/v1/sessions/history", sessions.History)
	mux.HandleFunc("/api/v1/sync", sync.Sync)
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Identity    IdentityService
	Presence    PresenceService
	Friends     FriendService
	Sessions    SessionService
	Syncer      Syncer
	AuthLimiter middleware.RateLimiter
}
