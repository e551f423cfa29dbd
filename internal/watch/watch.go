// Package watch observes a project's .drover state files and notifies
// subscribers when the document or session record changes on disk.
// Observation only: nothing here mutates state.
package watch

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/drover-dev/drover/internal/logger"
	"github.com/drover-dev/drover/pkg/config"
)

// Kind identifies which state file changed.
type Kind string

const (
	KindDocument Kind = "document"
	KindSession  Kind = "session"
)

// Event is one debounced state-file change.
type Event struct {
	Kind Kind
	Path string
}

const defaultDebounce = 250 * time.Millisecond

// Watcher monitors one project's data directory.
type Watcher struct {
	paths    config.Paths
	watcher  *fsnotify.Watcher
	debounce time.Duration
	notify   func(Event)

	running bool
	stopCh  chan struct{}
	mu      sync.RWMutex

	pending   map[string]time.Time
	pendingMu sync.Mutex
}

// New creates a watcher for the project's data directory. notify is
// called from a background goroutine for every debounced change.
func New(paths config.Paths, notify func(Event)) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	return &Watcher{
		paths:    paths,
		watcher:  fsWatcher,
		debounce: defaultDebounce,
		notify:   notify,
		stopCh:   make(chan struct{}),
		pending:  make(map[string]time.Time),
	}, nil
}

// Start begins watching the data directory.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// Watch the directory, not the files: atomic saves replace the file
	// inode on every write.
	if err := w.watcher.Add(w.paths.DataDir()); err != nil {
		return fmt.Errorf("watch %s: %w", w.paths.DataDir(), err)
	}

	go w.processEvents()
	go w.processDebounced()

	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false
	close(w.stopCh)

	return w.watcher.Close()
}

// IsRunning returns whether the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// classify maps a changed path to an event kind.
func (w *Watcher) classify(path string) (Kind, bool) {
	switch filepath.Base(path) {
	case filepath.Base(w.paths.Document()):
		return KindDocument, true
	case filepath.Base(w.paths.SessionFile()):
		return KindSession, true
	}
	return "", false
}

// processEvents records raw fsnotify events into the pending map.
func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if _, relevant := w.classify(event.Name); !relevant {
				continue
			}
			w.pendingMu.Lock()
			w.pending[event.Name] = time.Now()
			w.pendingMu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.GetLogger().Warn().Err(err).Msg("State watcher error")
		}
	}
}

// processDebounced flushes pending changes after the debounce window.
func (w *Watcher) processDebounced() {
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.flushPending()
		}
	}
}

func (w *Watcher) flushPending() {
	now := time.Now()

	w.pendingMu.Lock()
	var ready []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.pendingMu.Unlock()

	for _, path := range ready {
		if kind, ok := w.classify(path); ok && w.notify != nil {
			w.notify(Event{Kind: kind, Path: path})
		}
	}
}
