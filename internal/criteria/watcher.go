package criteria

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 300 * time.Millisecond

// Watcher reloads a criteria file into a Store when it changes on disk.
// Invalid files are logged and the previous snapshot stays active.
type Watcher struct {
	path     string
	store    *Store
	logger   *zap.Logger
	debounce time.Duration
	onReload func(*Criteria)

	mu    sync.Mutex
	timer *time.Timer
}

// WatcherOption configures a Watcher
type WatcherOption func(*Watcher)

// WithWatchLogger sets the logger for reload events
func WithWatchLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long to wait for writes to settle before reloading
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithOnReload registers a callback invoked after every successful reload
func WithOnReload(fn func(*Criteria)) WatcherOption {
	return func(w *Watcher) { w.onReload = fn }
}

// NewWatcher creates a watcher for path feeding store
func NewWatcher(path string, store *Store, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		path:     filepath.Clean(path),
		store:    store,
		logger:   zap.NewNop(),
		debounce: defaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is cancelled. The parent directory is watched so
// editors that save by rename are picked up.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}
	w.logger.Info("watching criteria", zap.String("path", w.path))

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.schedule()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("criteria watcher error", zap.Error(err))
		}
	}
}

// Reload loads the file now and swaps it in on success
func (w *Watcher) Reload() error {
	c, err := Load(w.path)
	if err != nil {
		w.logger.Warn("criteria reload rejected, keeping previous version",
			zap.String("path", w.path), zap.Error(err))
		return err
	}

	prev := w.store.Swap(c)
	prevVersion := ""
	if prev != nil {
		prevVersion = prev.Version
	}
	w.logger.Info("criteria reloaded",
		zap.String("path", w.path),
		zap.String("version", c.Version),
		zap.String("previous_version", prevVersion))

	if w.onReload != nil {
		w.onReload(c)
	}
	return nil
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { _ = w.Reload() })
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
