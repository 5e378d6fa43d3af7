// Package authapi is the client for the remote token and roles API.
package authapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/docgate/internal/config"
)

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 1 << 20

// Client exchanges credentials for bearer tokens and looks up roles.
type Client struct {
	tokenURL string
	rolesURL string
	http     *http.Client
}

// NewClient creates a client from configuration.
func NewClient(cfg config.AuthConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		tokenURL: strings.TrimSpace(cfg.TokenURL),
		rolesURL: strings.TrimSpace(cfg.RolesURL),
		http:     &http.Client{Timeout: timeout},
	}
}

type tokenRequest struct {
	MachineID string `json:"machine_id"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type rolesResponse struct {
	Roles RoleList `json:"roles"`
}

// ExchangeCredentials performs one credential exchange call and returns the
// bearer token. Any non-2xx status or a response without a token is an *AuthError.
func (c *Client) ExchangeCredentials(ctx context.Context, user, pass, machineID string) (string, error) {
	payload, err := json.Marshal(tokenRequest{MachineID: machineID})
	if err != nil {
		return "", fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, bytes.NewReader(payload))
	if err != nil {
		return "", &AuthError{Op: OpExchange, Err: err}
	}
	req.Header.Set("Authorization", "Basic "+basicCredentials(user, pass))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var out tokenResponse
	if err := c.do(req, OpExchange, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", &AuthError{Op: OpExchange, Status: http.StatusOK, Err: ErrMissingToken}
	}
	return out.AccessToken, nil
}

// FetchRoles looks up the roles of token. The API may answer with a single
// role or a list; both are normalized to a list.
func (c *Client) FetchRoles(ctx context.Context, token string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.rolesURL, nil)
	if err != nil {
		return nil, &AuthError{Op: OpRoles, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	var out rolesResponse
	if err := c.do(req, OpRoles, &out); err != nil {
		return nil, err
	}
	return []string(out.Roles), nil
}

func (c *Client) do(req *http.Request, op string, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return &AuthError{Op: op, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return &AuthError{
			Op:     op,
			Status: res.StatusCode,
			Err:    fmt.Errorf("%w: %s", ErrUnexpectedStatus, strings.TrimSpace(string(body))),
		}
	}

	if err := json.NewDecoder(io.LimitReader(res.Body, maxResponseSize)).Decode(out); err != nil {
		return &AuthError{Op: op, Status: res.StatusCode, Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	return nil
}

func basicCredentials(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}
