package store

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/ashureev/docgate/internal/domain"
)

// ErrNotFound is returned when an update targets a device with no record.
var ErrNotFound = errors.New("session record not found")

// MemoryStore is an in-process Repository. Records do not survive a restart.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*domain.SessionRecord
	now     func() time.Time
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*domain.SessionRecord),
		now:     time.Now,
	}
}

// GetSession returns a copy of the device's record.
func (m *MemoryStore) GetSession(_ context.Context, deviceID string) (*domain.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[deviceID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	cp.Roles = slices.Clone(rec.Roles)
	return &cp, nil
}

// UpsertSession replaces the device's token and timestamp.
func (m *MemoryStore) UpsertSession(_ context.Context, rec *domain.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var roles []string
	if prev, ok := m.records[rec.DeviceID]; ok && prev.Token == rec.Token {
		roles = prev.Roles
	}
	m.records[rec.DeviceID] = &domain.SessionRecord{
		DeviceID:  rec.DeviceID,
		Token:     rec.Token,
		IssuedAt:  rec.IssuedAt,
		Roles:     roles,
		UpdatedAt: m.now(),
	}
	return nil
}

// SaveRoles caches roles on an existing record.
func (m *MemoryStore) SaveRoles(_ context.Context, deviceID string, roles []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[deviceID]
	if !ok {
		return ErrNotFound
	}
	rec.Roles = slices.Clone(roles)
	rec.UpdatedAt = m.now()
	return nil
}

// DeleteSession removes the device's record.
func (m *MemoryStore) DeleteSession(_ context.Context, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, deviceID)
	return nil
}

// DeleteStaleSessions removes records not updated within retention.
func (m *MemoryStore) DeleteStaleSessions(_ context.Context, retention time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-retention)
	var n int64
	for id, rec := range m.records {
		if rec.UpdatedAt.Before(cutoff) {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

var (
	_ Repository = (*MemoryStore)(nil)
	_ Repository = (*SQLiteStore)(nil)
)
