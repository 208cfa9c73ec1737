package database

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"langaccessor/logger"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce groups the bursts of writes SQLite makes for one commit (db, -wal, -shm).
const watchDebounce = 250 * time.Millisecond

// Watch follows the database file for commits made by other processes (for example a
// `settings save` CLI run while `start` is serving) and notifies listeners when any of
// keys changed. It blocks until ctx is cancelled.
func (s *SQLiteStore) Watch(ctx context.Context, keys ...string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	base := filepath.Base(s.path)
	logger.Info("SQLiteStore: watching %s for external changes to %v", s.path, keys)

	// Seed lastSeen so the first external edit is compared against the current state.
	if err := s.seed(ctx, keys); err != nil {
		logger.Error("SQLiteStore: initial read before watching failed: %v", err)
	}

	timer := time.NewTimer(watchDebounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.HasPrefix(filepath.Base(ev.Name), base) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if !pending {
				pending = true
				timer.Reset(watchDebounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("SQLiteStore: file watcher error: %v", err)
		case <-timer.C:
			pending = false
			if err := s.refreshExternal(ctx, keys); err != nil {
				logger.Error("SQLiteStore: %v", err)
			}
		}
	}
}
