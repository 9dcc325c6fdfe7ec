package profile

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/autopeer-io/panellink/pkg/log"
)

// Watcher calls a function whenever the profile file is written or replaced.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func()
}

// NewWatcher watches path. Bursts of events closer than debounce are
// collapsed into one call.
func NewWatcher(path string, debounce time.Duration, onChange func()) *Watcher {
	return &Watcher{path: filepath.Clean(path), debounce: debounce, onChange: onChange}
}

// Run blocks until ctx is done. The parent directory is watched so that
// editors replacing the file by rename are noticed.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create profile watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	log.Info("Watching profile for changes", "path", w.path)

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if w.debounce <= 0 {
				w.onChange()
				continue
			}
			fire = time.After(w.debounce)

		case <-fire:
			fire = nil
			w.onChange()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Error(err, "Profile watcher error", "path", w.path)
		}
	}
}
