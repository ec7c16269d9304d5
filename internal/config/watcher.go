package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceInterval coalesces the burst of fsnotify events a single editor
// save (write + chmod + rename-into-place) tends to produce into one reload.
const debounceInterval = 200 * time.Millisecond

// Watcher watches a single config file for changes and invokes a reload
// callback, debounced, so a long-lived process can pick up rotated
// signing/encryption key paths without restarting.
type Watcher struct {
	path      string
	fsWatcher *fsnotify.Watcher

	mu      sync.Mutex
	timer   *time.Timer
	onFire  func()
	doneCh  chan struct{}
	closeCh chan struct{}
}

// NewWatcher creates a Watcher for the given config file path. The file does
// not need to exist yet; fsnotify watches the containing directory so it
// notices the file being created, removed, and re-created, which editors and
// atomic-rename writers both do.
func NewWatcher(path string) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config file watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fsWatcher.Add(dir); err != nil {
		_ = fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch config directory %s: %w", dir, err)
	}
	return &Watcher{
		path:      path,
		fsWatcher: fsWatcher,
		doneCh:    make(chan struct{}),
		closeCh:   make(chan struct{}),
	}, nil
}

// Watch blocks, invoking onReload (debounced) whenever the watched file
// changes, until ctx is canceled or Stop is called. onReload's error is
// swallowed after being surfaced to the caller is not possible from inside
// the debounce timer, so onReload is responsible for logging its own
// failures; Watch itself only returns the reason it stopped.
func (w *Watcher) Watch(ctx context.Context, onReload func() error) error {
	defer close(w.doneCh)
	defer w.fsWatcher.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.closeCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload(onReload)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("config file watcher error: %w", err)
		}
	}
}

func (w *Watcher) scheduleReload(onReload func() error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceInterval, func() {
		_ = onReload()
	})
}

// Stop ends the watch loop and releases the underlying fsnotify watcher,
// blocking until Watch has returned.
func (w *Watcher) Stop() {
	select {
	case <-w.closeCh:
	default:
		close(w.closeCh)
	}
	<-w.doneCh
}
