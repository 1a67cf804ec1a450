// Package watch reloads the configuration file when it changes on disk.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"timelinecal/internal/config"
	appLog "timelinecal/internal/log"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 200 * time.Millisecond

// ReloadFunc receives each successfully parsed configuration. Returning an
// error keeps the previous configuration in place.
type ReloadFunc func(cfg *config.Config) error

// Config watches the directory of path and calls onReload with the newly
// parsed file after changes settle. Invalid files are logged and skipped.
// It blocks until ctx is cancelled.
func Config(ctx context.Context, path string, debounce time.Duration, onReload ReloadFunc) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Editors replace the file by rename, which drops a watch on the file
	// itself, so watch its directory.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	appLog.Info("config watcher started", "path", abs)

	var timer *time.Timer
	var fire <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			fire = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			appLog.Info("config watcher stopped")
			return nil

		case <-fire:
			reload(abs, onReload)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			appLog.Error("config watcher error", watchErr)
		}
	}
}

func reload(path string, onReload ReloadFunc) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Mid-rename; the Create that follows schedules another reload.
		appLog.Debug("config reload skipped", "path", path, "err", err)
		return
	}
	cfg, err := config.Parse(data)
	if err != nil {
		appLog.Error("config reload rejected", err, "path", path)
		return
	}
	if err := onReload(cfg); err != nil {
		appLog.Error("config reload not applied", err, "path", path)
		return
	}
	appLog.Info("config reloaded", "path", path)
}
