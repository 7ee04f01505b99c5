package credstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch calls onChange whenever the credential file for host is created,
// rewritten, replaced or removed. It blocks until ctx is canceled.
//
// The parent directory is watched rather than the file itself: Write
// replaces the file by rename, which would orphan a file-level watch.
func (s *Store) Watch(ctx context.Context, host string, onChange func()) error {
	if err := os.MkdirAll(s.dir, DirPerms); err != nil {
		return fmt.Errorf("credstore: creating directory %s: %w", s.dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("credstore: creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("credstore: watching %s: %w", s.dir, err)
	}

	target := fileName(host)

	s.logger.Debug("watching credentials", slog.String("host", host), slog.String("dir", s.dir))

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Base(ev.Name) != target {
				continue
			}

			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}

			s.logger.Info("credentials changed on disk",
				slog.String("host", host),
				slog.String("op", ev.Op.String()),
			)

			onChange()

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			s.logger.Warn("credential watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
