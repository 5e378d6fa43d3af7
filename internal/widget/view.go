package widget

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/coder/websocket"

	"github.com/ashureev/docgate/internal/chat"
)

const eventQueueSize = 256

// serverEvent is one server-to-browser message.
type serverEvent struct {
	Type     string         `json:"type"`
	Message  *chat.Message  `json:"message,omitempty"`
	Messages []chat.Message `json:"messages,omitempty"`
	ID       string         `json:"id,omitempty"`
	Busy     *bool          `json:"busy,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// socketView queues controller events for one WebSocket connection. The
// controller calls it under its lock, so enqueueing never blocks: a client
// too slow to drain the queue is disconnected and resyncs from a snapshot.
type socketView struct {
	events chan serverEvent
	done   chan struct{}

	closeOnce sync.Once
	reason    string
}

func newSocketView() *socketView {
	return &socketView{
		events: make(chan serverEvent, eventQueueSize),
		done:   make(chan struct{}),
	}
}

func (v *socketView) Append(m chat.Message) { v.push(serverEvent{Type: "append", Message: &m}) }
func (v *socketView) Update(m chat.Message) { v.push(serverEvent{Type: "update", Message: &m}) }
func (v *socketView) Remove(id string)      { v.push(serverEvent{Type: "remove", ID: id}) }
func (v *socketView) SetBusy(busy bool)     { v.push(serverEvent{Type: "busy", Busy: &busy}) }

func (v *socketView) Snapshot(messages []chat.Message, busy bool) {
	v.push(serverEvent{Type: "snapshot", Messages: messages, Busy: &busy})
}

func (v *socketView) notice(ev serverEvent) { v.push(ev) }

func (v *socketView) push(ev serverEvent) {
	select {
	case <-v.done:
	case v.events <- ev:
	default:
		slog.Warn("Chat widget event queue full, dropping connection")
		v.close("client too slow")
	}
}

func (v *socketView) close(reason string) {
	v.closeOnce.Do(func() {
		v.reason = reason
		close(v.done)
	})
}

// writeLoop sends queued events until ctx ends or the view is closed.
func (v *socketView) writeLoop(ctx context.Context, ws *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-v.done:
			if err := ws.Close(websocket.StatusPolicyViolation, v.reason); err != nil {
				slog.Debug("Failed to close replaced websocket", "error", err)
			}
			return
		case ev := <-v.events:
			data, err := json.Marshal(ev)
			if err != nil {
				slog.Error("Failed to encode chat event", "type", ev.Type, "error", err)
				continue
			}
			if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
				if ctx.Err() == nil {
					slog.Debug("WebSocket write error", "error", err)
				}
				return
			}
		}
	}
}

var _ chat.Snapshotter = (*socketView)(nil)
