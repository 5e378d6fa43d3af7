package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, time.Hour, cfg.Gate.SessionTTL)
	assert.Equal(t, []string{"admin", "dev"}, cfg.Gate.AllowedRoles)
	assert.Equal(t, "/login/", cfg.Gate.LoginPath())
	assert.Equal(t, "/", cfg.Gate.HomePath())
	assert.Equal(t, DefaultModel, cfg.Chat.Model)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BASE_PATH", "/handbook/")
	t.Setenv("SESSION_TTL", "120")
	t.Setenv("ALLOWED_ROLES", "admin, ops ,")
	t.Setenv("CHAT_REQUIRE_SESSION", "off")
	t.Setenv("RECORD_RETENTION", "48h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/handbook", cfg.Gate.BasePath)
	assert.Equal(t, "/handbook/login/", cfg.Gate.LoginPath())
	assert.Equal(t, 2*time.Minute, cfg.Gate.SessionTTL)
	assert.Equal(t, []string{"admin", "ops"}, cfg.Gate.AllowedRoles)
	assert.False(t, cfg.Chat.RequireSession)
	assert.Equal(t, 48*time.Hour, cfg.RecordRetention)
}

func TestValidateRejectsRetentionShorterThanTTL(t *testing.T) {
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("RECORD_RETENTION", "1h")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RECORD_RETENTION")
}

func TestNormalizeBasePath(t *testing.T) {
	cases := map[string]string{
		"":        "",
		"/":       "",
		"docs":    "/docs",
		"/docs/":  "/docs",
		" /a/b/ ": "/a/b",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeBasePath(in), "input %q", in)
	}
}
