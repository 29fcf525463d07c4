package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads a Table's rules when its workflow file changes.
type Watcher struct {
	path     string
	table    *Table
	logger   *zap.Logger
	debounce time.Duration
	onReload func(error)

	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce sets how long the watcher waits for writes to settle.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithWatchLogger sets the logger used for reload messages.
func WithWatchLogger(l *zap.Logger) WatchOption {
	return func(w *Watcher) { w.logger = l }
}

// OnReload registers a callback run after every reload attempt.
// err is nil when the new rules were applied.
func OnReload(fn func(err error)) WatchOption {
	return func(w *Watcher) { w.onReload = fn }
}

// Watch starts watching path and applies its rules to table whenever the file
// is written. A file that fails to parse or validate is logged and the previous
// rules stay active. The watcher stops when ctx is done or Close is called.
func Watch(ctx context.Context, path string, table *Table, opts ...WatchOption) (*Watcher, error) {
	w := &Watcher{
		path:     filepath.Clean(path),
		table:    table,
		logger:   zap.NewNop(),
		debounce: defaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// Editors often replace the file, so watch the directory and filter by name.
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.fsw = fsw

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(ctx)
	return w, nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				// Debounce rapid changes
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("workflow watcher error", zap.String("path", w.path), zap.Error(err))
		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	rules, err := LoadRules(w.path)
	if err == nil {
		err = w.table.SetRules(rules)
	}
	if err != nil {
		w.logger.Warn("workflow reload failed, keeping previous rules",
			zap.String("path", w.path), zap.Error(err))
	} else {
		w.logger.Info("workflow rules reloaded",
			zap.String("path", w.path), zap.Int("rules", len(rules)))
	}
	if w.onReload != nil {
		w.onReload(err)
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}
