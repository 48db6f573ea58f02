// Package watch follows the task slot file so a running server sees writes
// made by other stepwise processes.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 200 * time.Millisecond

// SlotWatcher reports changes to a single file. Rapid bursts, such as the
// temp file and rename of an atomic write, are coalesced into one callback.
type SlotWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	onChange func(ctx context.Context)
	logger   *slog.Logger
}

// NewSlotWatcher watches path. The parent directory must exist; the file
// itself may come and go.
func NewSlotWatcher(path string, debounce time.Duration, onChange func(ctx context.Context), logger *slog.Logger) (*SlotWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	// Watching the directory survives the rename that replaces the file.
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	return &SlotWatcher{
		watcher:  w,
		path:     filepath.Clean(path),
		debounce: debounce,
		onChange: onChange,
		logger:   logger.With("svc", "watch.SlotWatcher", "path", path),
	}, nil
}

// Run delivers change callbacks until ctx is cancelled. Watcher errors such
// as an event queue overflow are logged and watching continues.
func (w *SlotWatcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path || !relevant(event.Op) {
				continue
			}
			w.logger.Debug("slot file changed", "op", event.Op.String())
			timer.Reset(w.debounce)
		case <-timer.C:
			if w.onChange != nil {
				w.onChange(ctx)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
			// Events may have been dropped; reload once to catch up.
			timer.Reset(w.debounce)
		}
	}
}

func relevant(op fsnotify.Op) bool {
	return op.Has(fsnotify.Create) || op.Has(fsnotify.Write) || op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename)
}
