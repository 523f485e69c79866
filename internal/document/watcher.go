package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/varubogu/flequit-sub003/internal/crdt"
	"github.com/varubogu/flequit-sub003/internal/logging"
)

// WatcherConfig holds configuration for a Watcher.
type WatcherConfig struct {
	// Debounce is how long a file must stay quiet before it is merged.
	// Sync tools often write a file in several steps.
	Debounce time.Duration

	// OnChange is called after a document was merged and something changed.
	OnChange func(ctx context.Context, typ Type)

	Logger *logging.Logger
}

// DefaultWatcherConfig returns sensible defaults.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		Debounce: 200 * time.Millisecond,
	}
}

// Watcher merges document files changed by someone other than the Manager,
// typically another device's replica delivered by a file sync tool.
type Watcher struct {
	m       *Manager
	cfg     WatcherConfig
	log     *logging.Logger
	watcher *fsnotify.Watcher

	pending   map[string]time.Time // path -> last event
	pendingMu sync.Mutex

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWatcher creates a Watcher for the manager's documents directory.
// It must be started with Start before it reacts to changes.
func NewWatcher(m *Manager, cfg WatcherConfig) (*Watcher, error) {
	if m == nil {
		return nil, fmt.Errorf("manager cannot be nil")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultWatcherConfig().Debounce
	}
	if cfg.Logger == nil {
		cfg.Logger = m.log
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		m:       m,
		cfg:     cfg,
		log:     cfg.Logger.With("watcher"),
		watcher: w,
		pending: make(map[string]time.Time),
	}, nil
}

// Start begins watching. It returns once the directory is watched; events are
// processed in the background until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	if err := w.watcher.Add(w.m.Dir()); err != nil {
		return fmt.Errorf("failed to watch documents directory %s: %w", w.m.Dir(), err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true

	w.wg.Add(2)
	go w.watchEvents(ctx)
	go w.processQueue(ctx)

	w.log.Infof("watching %s", w.m.Dir())
	return nil
}

// Stop stops watching and blocks until the background goroutines exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	cancel := w.cancel
	w.mu.Unlock()

	cancel()
	err := w.watcher.Close()
	w.wg.Wait()

	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// IsRunning returns true if the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) watchEvents(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// Atomic writes show up as Create on the final name.
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if filepath.Ext(event.Name) != crdt.Ext {
				continue
			}
			w.queue(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warnf("watcher error: %v", err)
		}
	}
}

func (w *Watcher) queue(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.pending[path] = time.Now()
}

func (w *Watcher) processQueue(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(max(w.cfg.Debounce/2, 10*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, path := range w.due() {
				w.apply(ctx, path)
			}
		}
	}
}

// due removes and returns the paths that have been quiet long enough.
func (w *Watcher) due() []string {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	now := time.Now()
	var paths []string
	for path, at := range w.pending {
		if now.Sub(at) < w.cfg.Debounce {
			continue
		}
		paths = append(paths, path)
		delete(w.pending, path)
	}
	return paths
}

func (w *Watcher) apply(ctx context.Context, path string) {
	typ, err := ParseFileName(filepath.Base(path))
	if err != nil {
		w.log.Debugf("ignoring %s: %v", path, err)
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.log.Warnf("failed to read %s: %v", path, err)
		}
		return
	}
	// A local write may already have folded this change in.
	absorbed := w.m.takeAbsorbed(typ)
	if w.m.isCurrent(typ, data) && !absorbed {
		return
	}

	changed, err := w.m.Merge(ctx, typ, data)
	if err != nil {
		w.log.Errorf("failed to merge %s: %v", typ, err)
		return
	}
	if changed == 0 && !absorbed {
		return
	}

	w.log.Infof("merged external change to %s", typ)
	if w.cfg.OnChange != nil {
		w.cfg.OnChange(ctx, typ)
	}
}
