// Package widget serves the chat widget over WebSocket: one chat controller
// per browser tab, kept across reconnects.
package widget

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/docgate/internal/chat"
)

// ControllerFactory builds the controller for a new tab.
type ControllerFactory func() *chat.Controller

type widget struct {
	ctrl       *chat.Controller
	view       chat.View
	lastActive time.Time
}

// Hub owns the chat controllers of every connected tab, keyed by device and tab.
type Hub struct {
	ctx     context.Context
	factory ControllerFactory
	now     func() time.Time

	mu      sync.Mutex
	widgets map[string]map[string]*widget
}

// NewHub creates a hub. Streams started through the hub live until ctx is
// cancelled or the user stops them, not until the socket closes.
func NewHub(ctx context.Context, factory ControllerFactory) *Hub {
	return &Hub{
		ctx:     ctx,
		factory: factory,
		now:     time.Now,
		widgets: make(map[string]map[string]*widget),
	}
}

// Context is the lifetime of streams started through the hub.
func (h *Hub) Context() context.Context {
	return h.ctx
}

// Acquire attaches view to the tab's controller, creating the controller on
// first use. A view already attached to the tab is replaced.
func (h *Hub) Acquire(deviceID, tabID string, view chat.View) *chat.Controller {
	h.mu.Lock()
	defer h.mu.Unlock()

	tabs, ok := h.widgets[deviceID]
	if !ok {
		tabs = make(map[string]*widget)
		h.widgets[deviceID] = tabs
	}
	w, ok := tabs[tabID]
	if !ok {
		w = &widget{ctrl: h.factory()}
		tabs[tabID] = w
	}
	if old, ok := w.view.(*socketView); ok && old != view {
		old.close("session replaced")
	}

	w.view = view
	w.lastActive = h.now()
	w.ctrl.Attach(view)
	slog.Info("Chat widget attached", "device_id", deviceID, "tab_id", tabID)
	return w.ctrl
}

// Release detaches view if it is still the tab's current view.
func (h *Hub) Release(deviceID, tabID string, view chat.View) {
	h.mu.Lock()
	defer h.mu.Unlock()

	w, ok := h.widgets[deviceID][tabID]
	if !ok || w.view != view {
		return
	}
	w.view = nil
	w.lastActive = h.now()
	w.ctrl.Attach(nil)
	slog.Info("Chat widget detached", "device_id", deviceID, "tab_id", tabID)
}

// Touch marks the tab as active.
func (h *Hub) Touch(deviceID, tabID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if w, ok := h.widgets[deviceID][tabID]; ok {
		w.lastActive = h.now()
	}
}

// PruneIdle closes detached, idle controllers untouched for maxIdle and
// returns how many were removed.
func (h *Hub) PruneIdle(maxIdle time.Duration) int {
	h.mu.Lock()
	var stale []*chat.Controller
	cutoff := h.now().Add(-maxIdle)
	for deviceID, tabs := range h.widgets {
		for tabID, w := range tabs {
			if w.view != nil || w.ctrl.Busy() || !w.lastActive.Before(cutoff) {
				continue
			}
			stale = append(stale, w.ctrl)
			delete(tabs, tabID)
		}
		if len(tabs) == 0 {
			delete(h.widgets, deviceID)
		}
	}
	h.mu.Unlock()

	for _, c := range stale {
		c.Close()
	}
	if len(stale) > 0 {
		slog.Info("Pruned idle chat widgets", "count", len(stale))
	}
	return len(stale)
}

// CloseDevice closes every widget of a device, e.g. after logout.
func (h *Hub) CloseDevice(deviceID string) {
	h.mu.Lock()
	tabs := h.widgets[deviceID]
	delete(h.widgets, deviceID)
	h.mu.Unlock()

	for tabID, w := range tabs {
		if v, ok := w.view.(*socketView); ok {
			v.close("session closed")
		}
		w.ctrl.Close()
		slog.Info("Chat widget closed", "device_id", deviceID, "tab_id", tabID)
	}
}

// Close stops every controller; used on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	devices := make([]string, 0, len(h.widgets))
	for d := range h.widgets {
		devices = append(devices, d)
	}
	h.mu.Unlock()

	for _, d := range devices {
		h.CloseDevice(d)
	}
}

// Len returns the number of live controllers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, tabs := range h.widgets {
		n += len(tabs)
	}
	return n
}
