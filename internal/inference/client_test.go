package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/docgate/internal/chat"
	"github.com/ashureev/docgate/internal/config"
)

func newTestClient(url string) *Client {
	return NewClient(config.ChatConfig{InferenceURL: url, Model: "test-model"})
}

func collect(t *testing.T, c *Client, ctx context.Context, prompt string) ([]string, error) {
	t.Helper()
	var fragments []string
	for fragment, err := range c.Generate(ctx, prompt) {
		if err != nil {
			return fragments, err
		}
		fragments = append(fragments, fragment)
	}
	return fragments, nil
}

func TestGenerateStreamsFragments(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = w.Write([]byte(
			`{"response":"<th","done":false}` + "\n" +
				"\n" +
				`{"response":"ink>r</think>","done":false}` + "\n" +
				`{"response":"answer\n","done":false}` + "\n" +
				`{"response":"","done":true}` + "\n" +
				`{"response":"ignored","done":false}` + "\n"))
	}))
	defer srv.Close()

	fragments, err := collect(t, newTestClient(srv.URL), context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []string{"<th", "ink>r</think>", "answer\n"}, fragments)
	assert.Equal(t, generateRequest{Model: "test-model", Prompt: "hello", Stream: true}, got)
}

func TestGenerateEndsAtEOF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"response":"only"}`))
	}))
	defer srv.Close()

	fragments, err := collect(t, newTestClient(srv.URL), context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, fragments)
}

func TestGenerateTransportErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
	}{
		{name: "non-2xx", status: http.StatusBadGateway, body: "upstream down", wantStatus: http.StatusBadGateway},
		{name: "error field", status: http.StatusOK, body: `{"error":"model not found"}` + "\n"},
		{name: "malformed line", status: http.StatusOK, body: "not json\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := collect(t, newTestClient(srv.URL), context.Background(), "hi")
			var te *chat.TransportError
			require.True(t, errors.As(err, &te), "got %v", err)
			assert.Equal(t, tt.wantStatus, te.Status)
			assert.False(t, errors.Is(err, chat.ErrCancelled))
		})
	}
}

func TestGenerateUnreachableIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := collect(t, newTestClient(url), context.Background(), "hi")
	var te *chat.TransportError
	assert.True(t, errors.As(err, &te))
}

func TestGenerateCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"first"}` + "\n"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var fragments []string
	var streamErr error
	for fragment, err := range newTestClient(srv.URL).Generate(ctx, "hi") {
		if err != nil {
			streamErr = err
			break
		}
		fragments = append(fragments, fragment)
		cancel()
	}

	assert.Equal(t, []string{"first"}, fragments)
	assert.ErrorIs(t, streamErr, chat.ErrCancelled)
	assert.ErrorIs(t, streamErr, context.Canceled)
}
