package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ashureev/docgate/internal/chat"
)

const (
	ansiDim   = "\x1b[2m"
	ansiReset = "\x1b[0m"
)

// terminalView prints a conversation as plain text. Streamed updates are
// written as deltas since the terminal cannot redraw earlier output.
type terminalView struct {
	mu  sync.Mutex
	out io.Writer

	// Bytes of the current turn already printed.
	reasoning int
	answer    int
	inReason  bool
}

func newTerminalView(out io.Writer) *terminalView {
	return &terminalView{out: out}
}

func (v *terminalView) Append(m chat.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch m.Kind {
	case chat.KindUser:
		// Already on screen as typed.
	case chat.KindThinking:
		v.reasoning, v.answer, v.inReason = 0, 0, false
		fmt.Fprintf(v.out, "%s: ", m.Sender)
	case chat.KindBot:
		v.writeDelta(m, true)
		v.closeReasoning()
		fmt.Fprintln(v.out)
	case chat.KindPause:
		v.closeReasoning()
		fmt.Fprintf(v.out, "\n%s: %s (%s para reintentar)\n", m.Sender, m.Text, retryCommand)
	case chat.KindError:
		v.closeReasoning()
		fmt.Fprintf(v.out, "\n%s: %s\n", m.Sender, m.Text)
	}
}

func (v *terminalView) Update(m chat.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.writeDelta(m, false)
}

func (v *terminalView) Remove(string) {}

func (v *terminalView) SetBusy(bool) {}

func (v *terminalView) writeDelta(m chat.Message, final bool) {
	if len(m.Reasoning) > v.reasoning {
		if !v.inReason {
			fmt.Fprint(v.out, ansiDim)
			v.inReason = true
		}
		fmt.Fprint(v.out, m.Reasoning[v.reasoning:])
		v.reasoning = len(m.Reasoning)
	}
	if m.HasReasoning() && m.ReasoningOpen {
		return
	}

	answer := m.Answer
	if !final && !m.HasReasoning() {
		answer = holdMarker(answer)
	}
	if len(answer) > v.answer {
		v.closeReasoning()
		fmt.Fprint(v.out, answer[v.answer:])
		v.answer = len(answer)
	}
}

func (v *terminalView) closeReasoning() {
	if v.inReason {
		fmt.Fprint(v.out, ansiReset+"\n")
		v.inReason = false
	}
}

// holdMarker trims a trailing partial reasoning start marker so it is not
// printed before the rest of the marker arrives.
func holdMarker(s string) string {
	for n := min(len(s), len(chat.ReasoningStart)-1); n > 0; n-- {
		if strings.HasSuffix(s, chat.ReasoningStart[:n]) {
			return s[:len(s)-n]
		}
	}
	return s
}
