package main

import (
	"bytes"
	"context"
	"iter"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/docgate/internal/chat"
)

func TestHoldMarker(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"hola", "hola"},
		{"hola <", "hola "},
		{"hola <thi", "hola "},
		{"<think", ""},
		{"a < b", "a < b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, holdMarker(tt.in), "input %q", tt.in)
	}
}

func TestTerminalViewStreamsDeltas(t *testing.T) {
	var buf bytes.Buffer
	v := newTerminalView(&buf)

	v.Append(chat.Message{Kind: chat.KindUser, Text: "hola"})
	v.Append(chat.Message{Kind: chat.KindThinking, Sender: "MondoBot"})
	v.Update(chat.Message{Answer: "<th"})
	v.Update(chat.Message{Reasoning: "pienso", ReasoningOpen: true})
	v.Update(chat.Message{Reasoning: "pienso mucho", ReasoningOpen: true})
	v.Update(chat.Message{Reasoning: "pienso mucho", Answer: "Hola"})
	v.Append(chat.Message{Kind: chat.KindBot, Reasoning: "pienso mucho", Answer: "Hola!"})

	out := buf.String()
	assert.Equal(t, "MondoBot: "+ansiDim+"pienso mucho"+ansiReset+"\nHola!\n", out)
	assert.NotContains(t, out, "<th")
}

func TestTerminalViewPause(t *testing.T) {
	var buf bytes.Buffer
	v := newTerminalView(&buf)

	v.Append(chat.Message{Kind: chat.KindThinking, Sender: "MondoBot"})
	v.Update(chat.Message{Answer: "Par"})
	v.Append(chat.Message{Kind: chat.KindPause, Sender: "MondoBot", Text: "Me detengo."})

	assert.Equal(t, "MondoBot: Par\nMondoBot: Me detengo. (/retry para reintentar)\n", buf.String())
}

func TestLastPause(t *testing.T) {
	_, ok := lastPause(nil)
	assert.False(t, ok)

	msgs := []chat.Message{
		{ID: "1", Kind: chat.KindPause, Retryable: true},
		{ID: "2", Kind: chat.KindBot},
		{ID: "3", Kind: chat.KindPause, Retryable: true},
		{ID: "4", Kind: chat.KindError},
	}
	id, ok := lastPause(msgs)
	require.True(t, ok)
	assert.Equal(t, "3", id)
}

type replyStreamer struct{}

func (replyStreamer) Generate(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield("eco: "+prompt, nil)
	}
}

func TestRunChatAnswersEachLine(t *testing.T) {
	var buf bytes.Buffer
	ctrl := chat.NewController(replyStreamer{}, newTerminalView(&buf), chat.Config{}, nil)
	defer ctrl.Close()

	in := strings.NewReader("hola\n")
	require.NoError(t, runChat(context.Background(), ctrl, in))

	msgs := ctrl.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, chat.KindUser, msgs[0].Kind)
	assert.Equal(t, "eco: hola", msgs[1].Answer)
	assert.Contains(t, buf.String(), "eco: hola")
}

func TestRunChatQuit(t *testing.T) {
	var buf bytes.Buffer
	ctrl := chat.NewController(replyStreamer{}, newTerminalView(&buf), chat.Config{}, nil)
	defer ctrl.Close()

	require.NoError(t, runChat(context.Background(), ctrl, strings.NewReader("/quit\nhola\n")))
	assert.Empty(t, ctrl.Messages())
}
