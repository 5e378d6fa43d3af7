package authapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ashureev/docgate/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.AuthConfig{
		TokenURL: srv.URL + "/token",
		RolesURL: srv.URL + "/roles",
	})
}

func TestExchangeCredentials(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/token", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		want := "Basic " + base64.StdEncoding.EncodeToString([]byte("ana:s3cret"))
		assert.Equal(t, want, r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "browser-test-agent", body["machine_id"])

		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
	})

	token, err := client.ExchangeCredentials(context.Background(), "ana", "s3cret", "browser-test-agent")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
}

func TestExchangeCredentialsRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	})

	_, err := client.ExchangeCredentials(context.Background(), "ana", "wrong", "m")
	require.Error(t, err)

	var ae *AuthError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, OpExchange, ae.Op)
	assert.Equal(t, http.StatusUnauthorized, ae.Status)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestExchangeCredentialsMissingToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"token_type":"bearer"}`))
	})

	_, err := client.ExchangeCredentials(context.Background(), "ana", "s3cret", "m")
	assert.ErrorIs(t, err, ErrMissingToken)
	assert.True(t, IsAuthError(err))
}

func TestExchangeCredentialsNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(config.AuthConfig{TokenURL: url, RolesURL: url})
	_, err := client.ExchangeCredentials(context.Background(), "ana", "s3cret", "m")
	require.Error(t, err)

	var ae *AuthError
	require.True(t, errors.As(err, &ae))
	assert.Zero(t, ae.Status)
}

func TestFetchRolesNormalizesShapes(t *testing.T) {
	cases := map[string][]string{
		`{"roles":"admin"}`:         {"admin"},
		`{"roles":["admin","dev"]}`: {"admin", "dev"},
		`{"roles":null}`:            {},
		`{"roles":[]}`:              {},
		`{"roles":["", "viewer"]}`:  {"viewer"},
		`{"other":"field"}`:         nil,
	}
	for body, want := range cases {
		t.Run(body, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
				_, _ = w.Write([]byte(body))
			})
			roles, err := client.FetchRoles(context.Background(), "tok-123")
			require.NoError(t, err)
			assert.ElementsMatch(t, want, roles)
		})
	}
}

func TestFetchRolesFailures(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})
		_, err := client.FetchRoles(context.Background(), "tok")
		assert.ErrorIs(t, err, ErrUnexpectedStatus)
	})
	t.Run("malformed", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"roles": 42}`))
		})
		_, err := client.FetchRoles(context.Background(), "tok")
		assert.ErrorIs(t, err, ErrMalformedResponse)
		assert.True(t, IsAuthError(err))
	})
}
