// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/docgate/internal/domain"
)

// Repository defines the durable per-device session store.
type Repository interface {
	// GetSession retrieves the record for a device. Returns nil, nil when absent.
	GetSession(ctx context.Context, deviceID string) (*domain.SessionRecord, error)

	// UpsertSession writes token and issued_at, overwriting any prior record.
	// Cached roles are reset because they belonged to the previous token.
	UpsertSession(ctx context.Context, rec *domain.SessionRecord) error

	// SaveRoles caches the role list for an existing record.
	SaveRoles(ctx context.Context, deviceID string, roles []string) error

	// DeleteSession removes token, timestamp and cached roles.
	DeleteSession(ctx context.Context, deviceID string) error

	// DeleteStaleSessions removes records not updated within retention.
	DeleteStaleSessions(ctx context.Context, retention time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
