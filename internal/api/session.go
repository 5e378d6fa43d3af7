package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/docgate/internal/domain"
	"github.com/ashureev/docgate/internal/identity"
)

// Sessions is the read/clear view of the session manager.
type Sessions interface {
	Lookup(ctx context.Context, deviceID string) (*domain.SessionRecord, error)
	Remaining(rec *domain.SessionRecord) time.Duration
	ClearSession(ctx context.Context, deviceID string) error
}

// WidgetCloser drops a device's chat widgets.
type WidgetCloser interface {
	CloseDevice(deviceID string)
}

// SessionHandler reports and ends the current device's session.
type SessionHandler struct {
	sessions Sessions
	widgets  WidgetCloser
}

// NewSessionHandler creates a session handler. widgets may be nil.
func NewSessionHandler(sessions Sessions, widgets WidgetCloser) *SessionHandler {
	return &SessionHandler{sessions: sessions, widgets: widgets}
}

// SessionStatus is the body of GET /api/session.
type SessionStatus struct {
	DeviceID      string     `json:"device_id"`
	Authenticated bool       `json:"authenticated"`
	IssuedAt      *time.Time `json:"issued_at,omitempty"`
	ExpiresIn     int64      `json:"expires_in_seconds"`
	Roles         []string   `json:"roles"`
}

// RegisterRoutes registers the session routes under basePath.
func (h *SessionHandler) RegisterRoutes(r chi.Router, basePath string) {
	r.Route(basePath+"/api", func(r chi.Router) {
		r.Get("/session", h.Get)
		r.Delete("/session", h.Delete)
	})
}

// Get returns the session status. It never refreshes the TTL.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	deviceID := identity.DeviceIDFromContext(r.Context())
	rec, err := h.sessions.Lookup(r.Context(), deviceID)
	if err != nil {
		slog.Error("Failed to look up session", "device_id", deviceID, "error", err)
		Error(w, http.StatusInternalServerError, "session lookup failed")
		return
	}

	status := SessionStatus{DeviceID: deviceID, Roles: []string{}}
	if remaining := h.sessions.Remaining(rec); remaining > 0 {
		issued := rec.IssuedAt
		status.Authenticated = true
		status.IssuedAt = &issued
		status.ExpiresIn = int64(remaining.Seconds())
		if rec.Roles != nil {
			status.Roles = rec.Roles
		}
	}
	JSON(w, http.StatusOK, status)
}

// Delete ends the session and closes the device's chat widgets.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	deviceID := identity.DeviceIDFromContext(r.Context())
	if err := h.sessions.ClearSession(r.Context(), deviceID); err != nil {
		slog.Error("Failed to clear session", "device_id", deviceID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to clear session")
		return
	}
	if h.widgets != nil {
		h.widgets.CloseDevice(deviceID)
	}
	w.WriteHeader(http.StatusNoContent)
}
