package widget

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/ashureev/docgate/internal/chat"
	"github.com/ashureev/docgate/internal/identity"
	"github.com/ashureev/docgate/internal/observability"
)

// clientMessage is one browser-to-server message.
type clientMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	ID   string `json:"id,omitempty"`
}

// Handler upgrades /ws/chat requests and wires each socket to its tab's controller.
type Handler struct {
	hub            *Hub
	metrics        *observability.Metrics
	allowedOrigins []string
	isDev          bool
}

// NewHandler creates a new WebSocket handler.
func NewHandler(hub *Hub, metrics *observability.Metrics, allowedOrigins []string, isDev bool) *Handler {
	return &Handler{
		hub:            hub,
		metrics:        metrics,
		allowedOrigins: allowedOrigins,
		isDev:          isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := identity.FromContext(r.Context())
	slog.Info("Chat connection request", "device_id", id.DeviceID, "tab_id", id.TabID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "device_id", id.DeviceID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "chat ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "device_id", id.DeviceID)
		}
	}()

	view := newSocketView()
	ctrl := h.hub.Acquire(id.DeviceID, id.TabID, view)
	defer h.hub.Release(id.DeviceID, id.TabID, view)

	h.metrics.WidgetConnected(1)
	defer h.metrics.WidgetConnected(-1)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()
		view.writeLoop(ctx, ws)
	}()

	h.readLoop(ctx, ws, ctrl, view, id)
	cancel()
	<-writerDone
	slog.Info("Chat connection ended", "device_id", id.DeviceID, "tab_id", id.TabID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.allowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigins)
	return false
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, ctrl *chat.Controller, view *socketView, id identity.Identity) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				slog.Debug("WebSocket closed", "device_id", id.DeviceID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "device_id", id.DeviceID)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("Ignoring malformed chat message", "error", err, "device_id", id.DeviceID)
			continue
		}

		switch msg.Type {
		case "send":
			outcome := ctrl.Send(h.hub.Context(), msg.Text)
			slog.Debug("Chat send", "device_id", id.DeviceID, "tab_id", id.TabID, "outcome", outcome)
		case "cancel":
			ctrl.Cancel()
		case "retry":
			if _, err := ctrl.Retry(h.hub.Context(), msg.ID); err != nil {
				if !errors.Is(err, chat.ErrNotRetryable) && !errors.Is(err, chat.ErrBusy) {
					slog.Warn("Chat retry failed", "error", err, "device_id", id.DeviceID)
				}
				view.notice(serverEvent{Type: "error", ID: msg.ID, Error: err.Error()})
			}
		case "ping":
			view.notice(serverEvent{Type: "pong"})
		}
		h.hub.Touch(id.DeviceID, id.TabID)
	}
}
