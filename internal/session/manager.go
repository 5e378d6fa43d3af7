// Package session implements the cached-token half of the session gate:
// validity checks against a TTL, session start/refresh/clear, and the
// volatile per-browser-session redirect target.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/ashureev/docgate/internal/domain"
	"github.com/ashureev/docgate/internal/store"
)

// DefaultTTL is the maximum age of a cached token.
const DefaultTTL = time.Hour

// Manager reads and writes session records for devices.
type Manager struct {
	repo store.Repository
	ttl  time.Duration
	now  func() time.Time
}

// NewManager creates a session manager. A non-positive ttl falls back to DefaultTTL.
func NewManager(repo store.Repository, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{repo: repo, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// TTL returns the configured time-to-live.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Lookup returns the device's record, or nil when it has none.
func (m *Manager) Lookup(ctx context.Context, deviceID string) (*domain.SessionRecord, error) {
	rec, err := m.repo.GetSession(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	return rec, nil
}

// IsSessionValid reports whether a token is cached and younger than the TTL.
func (m *Manager) IsSessionValid(ctx context.Context, deviceID string) (bool, error) {
	rec, err := m.Lookup(ctx, deviceID)
	if err != nil {
		return false, err
	}
	return rec.Valid(m.now(), m.ttl), nil
}

// StartSession stores token with the current time, replacing any prior record.
func (m *Manager) StartSession(ctx context.Context, deviceID, token string) error {
	if token == "" {
		return fmt.Errorf("start session: %w", ErrEmptyToken)
	}
	err := m.repo.UpsertSession(ctx, &domain.SessionRecord{
		DeviceID: deviceID,
		Token:    token,
		IssuedAt: m.now(),
	})
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	return nil
}

// Refresh restarts the session with its current token (sliding TTL).
// It returns the token so callers can use it without a second lookup.
func (m *Manager) Refresh(ctx context.Context, deviceID string) (string, error) {
	rec, err := m.Lookup(ctx, deviceID)
	if err != nil {
		return "", err
	}
	if !rec.Valid(m.now(), m.ttl) {
		return "", ErrNoSession
	}
	if err := m.StartSession(ctx, deviceID, rec.Token); err != nil {
		return "", err
	}
	return rec.Token, nil
}

// ClearSession removes the token, its timestamp and the cached roles.
func (m *Manager) ClearSession(ctx context.Context, deviceID string) error {
	if err := m.repo.DeleteSession(ctx, deviceID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// CacheRoles stores the last fetched role list for reporting.
func (m *Manager) CacheRoles(ctx context.Context, deviceID string, roles []string) error {
	if err := m.repo.SaveRoles(ctx, deviceID, roles); err != nil {
		return fmt.Errorf("cache roles: %w", err)
	}
	return nil
}

// Remaining returns how long the device's session stays valid.
func (m *Manager) Remaining(rec *domain.SessionRecord) time.Duration {
	return rec.Remaining(m.now(), m.ttl)
}
