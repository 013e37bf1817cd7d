// Package filewatcher watches the policy data directory and reports
// changed policy files so the loader can re-index them.
package filewatcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher emits the paths of policy JSON files as they are created or
// rewritten in the watched directory.
type Watcher struct {
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

// New creates a watcher. Call Close when done.
func New(logger *slog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{watcher: w, logger: logger}, nil
}

// Watch monitors dir for created or modified .json files and sends their
// paths on the returned channel until ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context, dir string) (<-chan string, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}

	changed := make(chan string, 16)

	go func() {
		defer close(changed)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !isPolicyFile(event.Name) {
					continue
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
					continue
				}
				select {
				case changed <- event.Name:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watch error", slog.String("error", err.Error()))
			}
		}
	}()

	return changed, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func isPolicyFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}
