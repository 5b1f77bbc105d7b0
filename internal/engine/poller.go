package engine

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Poll runs the change poller until ctx is cancelled: every interval one
// Tick evaluates the redirect document and, when a watched file changed,
// runs a relink cycle. Detection is mtime-based; the file-system watcher
// below only accelerates it.
func Poll(ctx context.Context, s *Session, interval time.Duration, logger *slog.Logger) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("poller: started", slog.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			logger.Info("poller: stopped")
			return nil
		case <-ticker.C:
			if _, err := s.Tick(); err != nil {
				logger.Error("poller: tick failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Watch starts an fsnotify watcher on the vault root and marks changed
// sidecar and blend files dirty in the session state until ctx is
// cancelled. The poller consumes the dirty set on its next tick, so a
// change is picked up one tick after it lands instead of one mtime scan
// later. Losing events is harmless; the mtime diff still catches them.
//
// New directories created at runtime are automatically added to the watch
// list.
func Watch(ctx context.Context, s *Session, vaultRoot string, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, vaultRoot); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", vaultRoot))

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// New directories join the watch list.
			if ev.Op&fsnotify.Create != 0 {
				if added, addErr := addIfDir(w, absPath); addErr != nil {
					logger.Warn("watcher: add new dir failed",
						slog.String("path", absPath),
						slog.String("error", addErr.Error()))
				} else if added {
					logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					continue
				}
			}

			if !interesting(absPath) {
				continue
			}
			rel, relErr := filepath.Rel(vaultRoot, absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			s.State().MarkDirty(rel)
			logger.Debug("watcher: dirty", slog.String("path", rel), slog.String("op", ev.Op.String()))

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// interesting reports whether a change to path can affect relinking:
// sidecar documents, redirect documents, and blend files.
func interesting(path string) bool {
	return strings.HasSuffix(path, ".md") || strings.HasSuffix(path, ".blend")
}

// addIfDir adds path (and its subtree) to the watcher when it is a
// directory.
func addIfDir(w *fsnotify.Watcher, path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false, nil
	}
	return true, addDirsRecursive(w, path)
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
