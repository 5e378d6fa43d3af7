package chat

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchPools reloads pools whenever the file at path is written or replaced,
// until ctx is done. The directory is watched so editors that save by rename
// keep triggering reloads.
func WatchPools(ctx context.Context, path string, pools Pools, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create pools watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch pools file: %w", err)
	}

	target := filepath.Clean(path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
					continue
				}
				if err := pools.Reload(path); err != nil {
					logger.Warn("Failed to reload chat pools, keeping current messages", "path", path, "error", err)
					continue
				}
				logger.Info("Chat pools reloaded", "path", path,
					"errors", len(pools.Errors.Messages()), "pauses", len(pools.Pauses.Messages()))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Pools watcher error", "error", err)
			}
		}
	}()
	return nil
}
