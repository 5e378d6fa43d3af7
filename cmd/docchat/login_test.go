package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRoles struct {
	roles []string
	err   error
}

func (s stubRoles) FetchRoles(context.Context, string) ([]string, error) {
	return s.roles, s.err
}

type stubCache struct {
	err    error
	device string
	roles  []string
}

func (s *stubCache) CacheRoles(_ context.Context, deviceID string, roles []string) error {
	s.device, s.roles = deviceID, roles
	return s.err
}

func TestFetchAndCacheRolesReportsCacheFailure(t *testing.T) {
	var warn bytes.Buffer
	cache := &stubCache{err: errors.New("disk full")}

	roles := fetchAndCacheRoles(context.Background(), stubRoles{roles: []string{"dev"}}, cache, "cli-host", "tok", &warn)

	assert.True(t, roles.Has("dev"))
	assert.Equal(t, "cli-host", cache.device)
	assert.Contains(t, warn.String(), "failed to cache roles: disk full")
}

func TestFetchAndCacheRolesQuietWithoutWriter(t *testing.T) {
	cache := &stubCache{}
	roles := fetchAndCacheRoles(context.Background(), stubRoles{err: errors.New("boom")}, cache, "cli-host", "tok", nil)

	assert.Empty(t, roles)
	assert.Empty(t, cache.device, "nothing cached after a failed lookup")
}

func TestPromptPasswordFallsBackOffTerminal(t *testing.T) {
	stdin := strings.NewReader("secret\n")
	var out bytes.Buffer

	pass, err := promptPassword(stdin, bufio.NewReader(stdin), &out, "Contraseña: ")
	require.NoError(t, err)
	assert.Equal(t, "secret", pass)
	assert.Equal(t, "Contraseña: ", out.String())
}
