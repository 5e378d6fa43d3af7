package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/docgate/internal/domain"
	"github.com/ashureev/docgate/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS session_records (
		device_id TEXT PRIMARY KEY,
		token TEXT NOT NULL,
		issued_at INTEGER NOT NULL,
		roles_json TEXT,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_session_records_updated ON session_records(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetSession retrieves the session record for a device.
func (s *SQLiteStore) GetSession(ctx context.Context, deviceID string) (*domain.SessionRecord, error) {
	query := `
		SELECT device_id, token, issued_at, roles_json, updated_at
		FROM session_records WHERE device_id = ?`

	row := s.db.QueryRowContext(ctx, query, deviceID)

	var rec domain.SessionRecord
	var rolesJSON sql.NullString
	var issuedAt, updatedAt int64

	err := row.Scan(&rec.DeviceID, &rec.Token, &issuedAt, &rolesJSON, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	// Millisecond precision, like the browser timestamp it replaces.
	rec.IssuedAt = time.UnixMilli(issuedAt)
	rec.UpdatedAt = time.UnixMilli(updatedAt)
	if rolesJSON.Valid && rolesJSON.String != "" {
		if err := json.Unmarshal([]byte(rolesJSON.String), &rec.Roles); err != nil {
			slog.Warn("discarding unreadable cached roles", "device_id", deviceID, "error", err)
			rec.Roles = nil
		}
	}

	return &rec, nil
}

// UpsertSession creates or replaces the record for a device.
func (s *SQLiteStore) UpsertSession(ctx context.Context, rec *domain.SessionRecord) error {
	query := `
	INSERT INTO session_records (device_id, token, issued_at, roles_json, updated_at)
	VALUES (?, ?, ?, NULL, ?)
	ON CONFLICT(device_id) DO UPDATE SET
		token = excluded.token,
		issued_at = excluded.issued_at,
		roles_json = CASE WHEN session_records.token = excluded.token
			THEN session_records.roles_json ELSE NULL END,
		updated_at = excluded.updated_at`

	return shared.RetryOnConflict(ctx, "upsert session", func() error {
		_, err := s.db.ExecContext(ctx, query,
			rec.DeviceID, rec.Token, rec.IssuedAt.UnixMilli(), time.Now().UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("upsert session: %w", err)
		}
		return nil
	})
}

// SaveRoles caches the role list on an existing record.
func (s *SQLiteStore) SaveRoles(ctx context.Context, deviceID string, roles []string) error {
	if roles == nil {
		roles = []string{}
	}
	data, err := json.Marshal(roles)
	if err != nil {
		return fmt.Errorf("marshal roles: %w", err)
	}

	query := `UPDATE session_records SET roles_json = ?, updated_at = ? WHERE device_id = ?`
	return shared.RetryOnConflict(ctx, "save roles", func() error {
		result, err := s.db.ExecContext(ctx, query, string(data), time.Now().UnixMilli(), deviceID)
		if err != nil {
			return fmt.Errorf("save roles: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rows == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// DeleteSession removes the record for a device.
func (s *SQLiteStore) DeleteSession(ctx context.Context, deviceID string) error {
	query := `DELETE FROM session_records WHERE device_id = ?`
	return shared.RetryOnConflict(ctx, "delete session", func() error {
		if _, err := s.db.ExecContext(ctx, query, deviceID); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	})
}

// DeleteStaleSessions removes records not updated within retention.
func (s *SQLiteStore) DeleteStaleSessions(ctx context.Context, retention time.Duration) (int64, error) {
	threshold := time.Now().Add(-retention).UnixMilli()
	result, err := s.db.ExecContext(ctx, `DELETE FROM session_records WHERE updated_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("delete stale sessions: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
