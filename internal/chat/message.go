package chat

import "time"

// Role is who authored a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Kind distinguishes the entries a widget renders differently.
type Kind string

const (
	KindUser     Kind = "user"
	KindThinking Kind = "thinking" // placeholder while a turn streams
	KindBot      Kind = "bot"
	KindPause    Kind = "pause"
	KindError    Kind = "error"
)

// Message is one transcript entry. Only the thinking placeholder is ever
// updated in place; every other entry is immutable once appended.
type Message struct {
	ID            string    `json:"id"`
	Role          Role      `json:"role"`
	Kind          Kind      `json:"kind"`
	Sender        string    `json:"sender"`
	Text          string    `json:"text"`
	HTML          string    `json:"html"`
	Reasoning     string    `json:"reasoning,omitempty"`
	Answer        string    `json:"answer,omitempty"`
	ReasoningHTML string    `json:"reasoning_html,omitempty"`
	AnswerHTML    string    `json:"answer_html,omitempty"`
	ReasoningOpen bool      `json:"reasoning_open,omitempty"`
	Retryable     bool      `json:"retryable,omitempty"`
	RenderedAt    time.Time `json:"rendered_at"`

	// prompt is the user text a pause message can resubmit.
	prompt string
}

// HasReasoning reports whether the entry carries a reasoning segment.
func (m Message) HasReasoning() bool {
	return m.Reasoning != "" || m.ReasoningOpen
}
