package gate

import (
	"net/http"

	"github.com/ashureev/docgate/internal/identity"
)

// RequireSession rejects API and WebSocket requests from devices without a
// valid session. Unlike Pages it never redirects and never refreshes the TTL.
func (g *Gate) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deviceID := identity.DeviceIDFromContext(r.Context())
		valid, err := g.sessions.IsSessionValid(r.Context(), deviceID)
		if err != nil {
			g.logger.Error("session check failed", "device_id", deviceID, "error", err)
			http.Error(w, `{"error":"session check failed"}`, http.StatusInternalServerError)
			return
		}
		if !valid {
			http.Error(w, `{"error":"login required"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
