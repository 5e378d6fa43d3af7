// Package inference streams completions from an Ollama-compatible
// /api/generate endpoint.
package inference

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"github.com/ashureev/docgate/internal/chat"
	"github.com/ashureev/docgate/internal/config"
)

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// Client implements chat.Streamer over HTTP NDJSON.
type Client struct {
	url    string
	model  string
	client *http.Client
}

var _ chat.Streamer = (*Client)(nil)

// NewClient creates a client from chat configuration. Streams have no
// client-side timeout; they end at EOF, on "done" or when ctx is cancelled.
func NewClient(cfg config.ChatConfig) *Client {
	return &Client{
		url:    strings.TrimSpace(cfg.InferenceURL),
		model:  cfg.Model,
		client: &http.Client{},
	}
}

// Generate posts prompt and yields each non-empty "response" fragment.
// A cancelled ctx ends the sequence with an error wrapping chat.ErrCancelled;
// every other failure is a *chat.TransportError.
func (c *Client) Generate(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		body, err := c.open(ctx, prompt)
		if err != nil {
			yield("", c.classify(ctx, err))
			return
		}
		defer body.Close()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var chunk generateChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				yield("", &chat.TransportError{Err: fmt.Errorf("decode stream line: %w", err)})
				return
			}
			if chunk.Error != "" {
				yield("", &chat.TransportError{Err: errors.New(chunk.Error)})
				return
			}
			if chunk.Response != "" {
				if !yield(chunk.Response, nil) {
					return
				}
			}
			if chunk.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", c.classify(ctx, fmt.Errorf("stream read: %w", err)))
		}
	}
}

func (c *Client) open(ctx context.Context, prompt string) (io.ReadCloser, error) {
	payload, err := json.Marshal(generateRequest{Model: c.model, Prompt: prompt, Stream: true})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		res.Body.Close()
		return nil, &chat.TransportError{
			Status: res.StatusCode,
			Err:    fmt.Errorf("unexpected status: %s", strings.TrimSpace(string(msg))),
		}
	}
	return res.Body, nil
}

func (c *Client) classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", chat.ErrCancelled, ctxErr)
	}
	var te *chat.TransportError
	if errors.As(err, &te) {
		return te
	}
	return &chat.TransportError{Err: err}
}
