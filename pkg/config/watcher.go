// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jllopis/crewsum/pkg/errors"
)

// CrewWatcher polls a crew file and publishes a freshly loaded Store whenever
// it changes. A reload that fails validation keeps the previous Store.
type CrewWatcher struct {
	mu        sync.RWMutex
	path      string
	interval  time.Duration
	lastMod   time.Time
	lastSize  int64
	store     *Store
	lastErr   error
	missing   bool
	listeners []func(*Store)
	stopCh    chan struct{}
	doneCh    chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
	logger    *slog.Logger
}

// WatcherOption configures the watcher.
type WatcherOption func(*CrewWatcher)

// WithWatchInterval sets the polling interval for file changes.
func WithWatchInterval(d time.Duration) WatcherOption {
	return func(w *CrewWatcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatchLogger sets the logger for the watcher.
func WithWatchLogger(logger *slog.Logger) WatcherOption {
	return func(w *CrewWatcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewCrewWatcher loads path once and prepares to watch it. The initial load
// must succeed.
func NewCrewWatcher(path string, opts ...WatcherOption) (*CrewWatcher, error) {
	w := &CrewWatcher{
		path:     path,
		interval: 2 * time.Second,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}

	if info, err := os.Stat(path); err == nil {
		w.lastMod = info.ModTime()
		w.lastSize = info.Size()
	}

	store, err := LoadCrew(path)
	if err != nil {
		return nil, err
	}
	w.store = store
	return w, nil
}

// OnChange registers a callback invoked with each newly loaded Store.
func (w *CrewWatcher) OnChange(fn func(*Store)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Store returns the most recently loaded Store.
func (w *CrewWatcher) Store() *Store {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.store
}

// LastError returns the error of the most recent reload, nil after a
// successful one.
func (w *CrewWatcher) LastError() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastErr
}

// Start begins polling until ctx is done or Stop is called.
func (w *CrewWatcher) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		w.mu.Lock()
		w.started = true
		w.mu.Unlock()
		go w.watch(ctx)
	})
}

// Stop ends polling and waits for the loop to exit.
func (w *CrewWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.mu.RLock()
		started := w.started
		w.mu.RUnlock()
		if started {
			<-w.doneCh
		}
	})
}

func (w *CrewWatcher) watch(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if w.checkForChanges() {
				w.reload()
			}
		}
	}
}

// checkForChanges reports whether the file should be reloaded. A file that
// cannot be stat'ed is recorded in LastError and reloaded once it returns.
func (w *CrewWatcher) checkForChanges() bool {
	info, err := os.Stat(w.path)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		if !w.missing {
			w.logger.Error("crew file unreadable, keeping previous definitions", "path", w.path, "error", err)
		}
		w.missing = true
		w.lastErr = errors.New(errors.CodeConfigNotFound, "crew file not readable", err).
			WithContext("path", w.path)
		return false
	}
	if !w.missing && info.ModTime().Equal(w.lastMod) && info.Size() == w.lastSize {
		return false
	}
	w.missing = false
	w.lastMod = info.ModTime()
	w.lastSize = info.Size()
	return true
}

func (w *CrewWatcher) reload() {
	w.logger.Info("crew file changed, reloading", "path", w.path)

	store, err := LoadCrew(w.path)
	if err != nil {
		w.logger.Error("crew reload failed, keeping previous definitions", "path", w.path, "error", err)
		w.mu.Lock()
		w.lastErr = err
		w.mu.Unlock()
		return
	}

	w.mu.Lock()
	w.store = store
	w.lastErr = nil
	listeners := make([]func(*Store), len(w.listeners))
	copy(listeners, w.listeners)
	w.mu.Unlock()

	w.logger.Info("crew reloaded", "path", w.path)
	for _, fn := range listeners {
		fn(store)
	}
}
