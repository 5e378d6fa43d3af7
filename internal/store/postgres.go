package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ashureev/docgate/internal/domain"
)

// PostgresStore implements Repository using PostgreSQL, for deployments that
// run more than one server against shared session state.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL and creates the schema if needed.
func NewPostgres(ctx context.Context, databaseURL string) (Repository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initPostgresSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initPostgresSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS session_records (
			device_id TEXT PRIMARY KEY,
			token TEXT NOT NULL,
			issued_at TIMESTAMPTZ NOT NULL,
			roles_json TEXT,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_session_records_updated ON session_records (updated_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// GetSession retrieves the session record for a device.
func (s *PostgresStore) GetSession(ctx context.Context, deviceID string) (*domain.SessionRecord, error) {
	var rec domain.SessionRecord
	var rolesJSON *string

	err := s.pool.QueryRow(ctx,
		`SELECT device_id, token, issued_at, roles_json, updated_at
		 FROM session_records WHERE device_id = $1`,
		deviceID,
	).Scan(&rec.DeviceID, &rec.Token, &rec.IssuedAt, &rolesJSON, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	if rolesJSON != nil && *rolesJSON != "" {
		if err := json.Unmarshal([]byte(*rolesJSON), &rec.Roles); err != nil {
			slog.Warn("discarding unreadable cached roles", "device_id", deviceID, "error", err)
			rec.Roles = nil
		}
	}
	return &rec, nil
}

// UpsertSession creates or replaces the record for a device.
func (s *PostgresStore) UpsertSession(ctx context.Context, rec *domain.SessionRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO session_records (device_id, token, issued_at, roles_json, updated_at)
		 VALUES ($1, $2, $3, NULL, now())
		 ON CONFLICT (device_id) DO UPDATE SET
			token = EXCLUDED.token,
			issued_at = EXCLUDED.issued_at,
			roles_json = CASE WHEN session_records.token = EXCLUDED.token
				THEN session_records.roles_json ELSE NULL END,
			updated_at = now()`,
		rec.DeviceID, rec.Token, rec.IssuedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// SaveRoles caches the role list on an existing record.
func (s *PostgresStore) SaveRoles(ctx context.Context, deviceID string, roles []string) error {
	if roles == nil {
		roles = []string{}
	}
	data, err := json.Marshal(roles)
	if err != nil {
		return fmt.Errorf("marshal roles: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE session_records SET roles_json = $1, updated_at = now() WHERE device_id = $2`,
		string(data), deviceID,
	)
	if err != nil {
		return fmt.Errorf("save roles: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSession removes the record for a device.
func (s *PostgresStore) DeleteSession(ctx context.Context, deviceID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM session_records WHERE device_id = $1`, deviceID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteStaleSessions removes records not updated within retention.
func (s *PostgresStore) DeleteStaleSessions(ctx context.Context, retention time.Duration) (int64, error) {
	threshold := time.Now().Add(-retention).UTC()
	tag, err := s.pool.Exec(ctx, `DELETE FROM session_records WHERE updated_at < $1`, threshold)
	if err != nil {
		return 0, fmt.Errorf("delete stale sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
