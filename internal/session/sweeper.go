package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/docgate/internal/store"
)

// targetMaxAge bounds how long an unused redirect target is kept.
const targetMaxAge = 24 * time.Hour

// SweepCallback runs after each sweep; the server uses it to prune idle chat widgets.
type SweepCallback func(ctx context.Context)

// StartSweeper runs a background goroutine that periodically removes records
// untouched for retention and stale redirect targets. It only collects garbage:
// validity is still decided lazily by IsSessionValid.
func StartSweeper(ctx context.Context, repo store.Repository, targets *Targets, interval, retention time.Duration, onSweep SweepCallback) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", interval, "retention", retention)

		for {
			select {
			case <-ticker.C:
				Sweep(ctx, repo, targets, retention)
				if onSweep != nil {
					onSweep(ctx)
				}
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// Sweep performs one collection pass.
func Sweep(ctx context.Context, repo store.Repository, targets *Targets, retention time.Duration) {
	deleted, err := repo.DeleteStaleSessions(ctx, retention)
	if err != nil {
		slog.Error("Session sweeper failed to delete stale records", "error", err)
	} else if deleted > 0 {
		slog.Info("Session sweeper removed stale records", "count", deleted)
	}

	if targets != nil {
		if n := targets.Prune(targetMaxAge); n > 0 {
			slog.Info("Session sweeper dropped stale redirect targets", "count", n)
		}
	}
}
