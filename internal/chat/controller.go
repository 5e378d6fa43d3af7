// Package chat implements the streaming chat widget: transcript state, turn
// lifecycle, reasoning/answer splitting and message rendering.
package chat

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/docgate/internal/observability"
)

// Streamer produces response fragments for a prompt.
// Iteration stops at end-of-stream or after the first error.
type Streamer interface {
	Generate(ctx context.Context, prompt string) iter.Seq2[string, error]
}

// View receives transcript changes in order. Calls are made while the
// controller holds its lock, so implementations must not call back into it.
type View interface {
	Append(m Message)
	Update(m Message)
	Remove(id string)
	SetBusy(busy bool)
}

// Outcome is what a Send call did.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeCancelled
	OutcomeStarted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeStarted:
		return "started"
	default:
		return "ignored"
	}
}

// Turn outcomes recorded in metrics.
const (
	turnCompleted = "completed"
	turnPaused    = "paused"
	turnFailed    = "failed"
)

// Config holds the controller's collaborators. Zero fields get defaults.
type Config struct {
	Pools    Pools
	BotName  string
	UserName string
	Now      func() time.Time
	NewID    func() string
	Metrics  *observability.Metrics
}

type turn struct {
	placeholder string
	prompt      string
	cancel      context.CancelFunc
	cancelled   bool
	started     time.Time
	gotFirst    bool
	parser      Parser
}

// Controller owns one widget's transcript and at most one in-flight turn.
type Controller struct {
	streamer Streamer
	view     View
	cfg      Config
	logger   *slog.Logger

	mu       sync.Mutex
	messages []Message
	turn     *turn
	wg       sync.WaitGroup
}

// NewController creates a controller rendering into view.
func NewController(streamer Streamer, view View, cfg Config, logger *slog.Logger) *Controller {
	if view == nil {
		view = nopView{}
	}
	if cfg.Pools.Errors == nil || cfg.Pools.Pauses == nil {
		defaults := DefaultPools(nil)
		if cfg.Pools.Errors == nil {
			cfg.Pools.Errors = defaults.Errors
		}
		if cfg.Pools.Pauses == nil {
			cfg.Pools.Pauses = defaults.Pauses
		}
	}
	if cfg.BotName == "" {
		cfg.BotName = "MondoBot"
	}
	if cfg.UserName == "" {
		cfg.UserName = "Yo"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		streamer: streamer,
		view:     view,
		cfg:      cfg,
		logger:   logger,
	}
}

// Snapshotter is implemented by views that want the current transcript
// when they are attached.
type Snapshotter interface {
	Snapshot(messages []Message, busy bool)
}

// Attach makes v the controller's view. A Snapshotter receives the transcript
// before any later event, so a reconnecting widget sees no gap and no duplicate.
// A nil v detaches the current view.
func (c *Controller) Attach(v View) {
	if v == nil {
		v = nopView{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view = v
	if s, ok := v.(Snapshotter); ok {
		s.Snapshot(slices.Clone(c.messages), c.turn != nil)
	}
}

// Send submits text. While a turn is streaming, Send stops it instead of
// queuing text, whatever the text is. Otherwise blank text is ignored.
func (c *Controller) Send(ctx context.Context, text string) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.turn != nil {
		c.cancelLocked()
		return OutcomeCancelled
	}
	if strings.TrimSpace(text) == "" {
		return OutcomeIgnored
	}
	c.startLocked(ctx, text)
	return OutcomeStarted
}

// Cancel stops the in-flight turn. It reports false when nothing was streaming.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.turn == nil {
		return false
	}
	c.cancelLocked()
	return true
}

// Retry removes a pause message and resubmits the text it interrupted.
func (c *Controller) Retry(ctx context.Context, messageID string) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(messageID)
	if i < 0 {
		return OutcomeIgnored, ErrNotRetryable
	}
	msg := c.messages[i]
	if msg.Kind != KindPause || !msg.Retryable || strings.TrimSpace(msg.prompt) == "" {
		return OutcomeIgnored, ErrNotRetryable
	}
	if c.turn != nil {
		return OutcomeIgnored, ErrBusy
	}

	c.removeLocked(messageID)
	c.startLocked(ctx, msg.prompt)
	return OutcomeStarted, nil
}

// Messages returns a copy of the transcript.
func (c *Controller) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.messages)
}

// Busy reports whether a turn is streaming.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turn != nil
}

// Wait blocks until every stream goroutine has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close stops any in-flight turn and waits for its goroutine.
func (c *Controller) Close() {
	c.Cancel()
	c.Wait()
}

func (c *Controller) startLocked(ctx context.Context, text string) {
	now := c.cfg.Now()
	c.appendLocked(Message{
		ID:         c.cfg.NewID(),
		Role:       RoleUser,
		Kind:       KindUser,
		Sender:     c.cfg.UserName,
		Text:       text,
		HTML:       Render(text),
		RenderedAt: now,
	})

	t := &turn{
		placeholder: c.cfg.NewID(),
		prompt:      text,
		started:     now,
	}
	c.appendLocked(Message{
		ID:         t.placeholder,
		Role:       RoleAssistant,
		Kind:       KindThinking,
		Sender:     c.cfg.BotName,
		RenderedAt: now,
	})

	turnCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	c.turn = t
	c.view.SetBusy(true)

	c.wg.Add(1)
	go c.run(turnCtx, t)
}

func (c *Controller) run(ctx context.Context, t *turn) {
	defer c.wg.Done()
	defer t.cancel()

	var streamErr error
	for fragment, err := range c.streamer.Generate(ctx, t.prompt) {
		if err != nil {
			streamErr = err
			break
		}

		c.mu.Lock()
		if t.cancelled {
			c.mu.Unlock()
			return
		}
		if !t.gotFirst {
			t.gotFirst = true
			c.cfg.Metrics.ObserveFirstChunk(c.cfg.Now().Sub(t.started))
		}
		c.renderLocked(t, t.parser.Feed(fragment))
		c.mu.Unlock()

		c.cfg.Metrics.StreamChunk()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if t.cancelled {
		return
	}
	switch {
	case streamErr == nil && ctx.Err() == nil:
		c.finishLocked(t)
	case errors.Is(streamErr, ErrCancelled) || errors.Is(streamErr, context.Canceled) || ctx.Err() != nil:
		c.pauseLocked(t)
	default:
		c.failLocked(t, streamErr)
	}
}

func (c *Controller) renderLocked(t *turn, seg Segments) {
	i := c.indexLocked(t.placeholder)
	if i < 0 {
		return
	}
	m := c.messages[i]
	m.Reasoning = seg.Reasoning
	m.Answer = seg.Answer
	m.ReasoningOpen = seg.Open
	m.ReasoningHTML = Render(seg.Reasoning)
	m.AnswerHTML = Render(seg.Answer)
	m.Text = seg.Answer
	m.HTML = m.AnswerHTML
	c.messages[i] = m
	c.view.Update(m)
}

func (c *Controller) cancelLocked() {
	t := c.turn
	t.cancelled = true
	t.cancel()
	c.pauseLocked(t)
}

func (c *Controller) pauseLocked(t *turn) {
	c.endLocked(t)
	text := c.cfg.Pools.Pauses.Pick()
	c.appendLocked(Message{
		ID:         c.cfg.NewID(),
		Role:       RoleAssistant,
		Kind:       KindPause,
		Sender:     c.cfg.BotName,
		Text:       text,
		HTML:       Render(text),
		Retryable:  true,
		RenderedAt: c.cfg.Now(),
		prompt:     t.prompt,
	})
	c.cfg.Metrics.ChatTurn(turnPaused)
}

func (c *Controller) failLocked(t *turn, err error) {
	c.endLocked(t)
	c.logger.Error("chat turn failed", "error", err, "bytes_received", t.parser.Len())
	text := c.cfg.Pools.Errors.Pick()
	c.appendLocked(Message{
		ID:         c.cfg.NewID(),
		Role:       RoleAssistant,
		Kind:       KindError,
		Sender:     c.cfg.BotName,
		Text:       text,
		HTML:       Render(text),
		RenderedAt: c.cfg.Now(),
	})
	c.cfg.Metrics.ChatTurn(turnFailed)
}

func (c *Controller) finishLocked(t *turn) {
	c.endLocked(t)
	seg := t.parser.Segments()
	answerHTML := Render(seg.Answer)
	c.appendLocked(Message{
		ID:            c.cfg.NewID(),
		Role:          RoleAssistant,
		Kind:          KindBot,
		Sender:        c.cfg.BotName,
		Text:          seg.Answer,
		HTML:          answerHTML,
		Reasoning:     seg.Reasoning,
		Answer:        seg.Answer,
		ReasoningHTML: Render(seg.Reasoning),
		AnswerHTML:    answerHTML,
		ReasoningOpen: seg.Open,
		RenderedAt:    c.cfg.Now(),
	})
	c.cfg.Metrics.ChatTurn(turnCompleted)
}

// endLocked drops the placeholder and clears the busy flag.
func (c *Controller) endLocked(t *turn) {
	c.removeLocked(t.placeholder)
	if c.turn == t {
		c.turn = nil
	}
	c.view.SetBusy(false)
}

func (c *Controller) appendLocked(m Message) {
	c.messages = append(c.messages, m)
	c.view.Append(m)
}

func (c *Controller) removeLocked(id string) {
	i := c.indexLocked(id)
	if i < 0 {
		return
	}
	c.messages = slices.Delete(c.messages, i, i+1)
	c.view.Remove(id)
}

func (c *Controller) indexLocked(id string) int {
	return slices.IndexFunc(c.messages, func(m Message) bool { return m.ID == id })
}

type nopView struct{}

func (nopView) Append(Message) {}
func (nopView) Update(Message) {}
func (nopView) Remove(string)  {}
func (nopView) SetBusy(bool)   {}
