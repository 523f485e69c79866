package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/varubogu/flequit-sub003/internal/document"
	"github.com/varubogu/flequit-sub003/internal/logging"
	"github.com/varubogu/flequit-sub003/internal/metrics"
)

// DaemonConfig holds configuration for the sync daemon.
type DaemonConfig struct {
	// FullSyncInterval is how often every document is re-projected to catch
	// changes the watcher cannot see, such as a removed project document.
	// Zero disables the periodic sync.
	FullSyncInterval time.Duration

	// Debounce is passed to the document watcher.
	Debounce time.Duration

	// OnSync is called after every sync the daemon performs, failed or not.
	OnSync func(Event)

	Logger  *logging.Logger
	Metrics *metrics.Recorder
}

// Event describes one sync performed by the daemon.
type Event struct {
	// Document is the synced document, or nil for a full sync.
	Document *document.Type
	Stats    Stats
	Err      error
}

// DefaultDaemonConfig returns sensible defaults.
func DefaultDaemonConfig() DaemonConfig {
	return DaemonConfig{
		FullSyncInterval: 5 * time.Minute,
		Debounce:         document.DefaultWatcherConfig().Debounce,
	}
}

// Daemon keeps the relational cache current while it runs: it syncs every
// document once at start, re-syncs each document the watcher merged, and
// runs a full sync periodically.
type Daemon struct {
	docs    *document.Manager
	syncer  Syncer
	config  DaemonConfig
	log     *logging.Logger
	watcher *document.Watcher

	statsMu sync.Mutex
	total   Stats
	syncs   int

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewDaemon creates a daemon. It must be started with Start.
func NewDaemon(docs *document.Manager, syncer Syncer, config DaemonConfig) (*Daemon, error) {
	if docs == nil || syncer == nil {
		return nil, fmt.Errorf("daemon needs a document manager and a syncer")
	}
	if config.Logger == nil {
		config.Logger = logging.Discard()
	}

	d := &Daemon{
		docs:   docs,
		syncer: syncer,
		config: config,
		log:    config.Logger.With("daemon"),
	}

	w, err := document.NewWatcher(docs, document.WatcherConfig{
		Debounce: config.Debounce,
		OnChange: d.onChange,
		Logger:   config.Logger,
	})
	if err != nil {
		return nil, err
	}
	d.watcher = w
	return d, nil
}

// Start performs the initial full sync and begins watching. It returns once
// the watcher is running; ctx bounds the daemon's lifetime.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("daemon already running")
	}

	d.log.Infof("performing initial full sync")
	if err := d.PerformFullSync(ctx); err != nil {
		return fmt.Errorf("initial sync failed: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	if err := d.watcher.Start(ctx); err != nil {
		cancel()
		return err
	}

	d.cancel = cancel
	d.running = true

	if d.config.FullSyncInterval > 0 {
		d.wg.Add(1)
		go d.refresh(ctx)
	}

	d.log.Infof("sync daemon started")
	return nil
}

// Stop stops the watcher and the periodic sync and waits for them to exit.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	cancel := d.cancel
	d.mu.Unlock()

	cancel()
	err := d.watcher.Stop()
	d.wg.Wait()

	d.log.Infof("sync daemon stopped")
	return err
}

// IsRunning returns true if the daemon is currently running.
func (d *Daemon) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Stats returns the accumulated stats and the number of syncs performed.
func (d *Daemon) Stats() (Stats, int) {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	return d.total, d.syncs
}

func (d *Daemon) record(st Stats) {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	d.total.add(st)
	d.total.Duration += st.Duration
	d.syncs++
}

// PerformFullSync re-projects every document into the cache.
func (d *Daemon) PerformFullSync(ctx context.Context) error {
	start := time.Now()
	st, err := d.syncer.FullSync(ctx)
	d.config.Metrics.Observe("full_sync", "documents", metrics.BackendRelational, start, err)
	d.notify(Event{Stats: st, Err: err})
	if err != nil {
		return err
	}
	d.record(st)
	return nil
}

func (d *Daemon) notify(ev Event) {
	if d.config.OnSync != nil {
		d.config.OnSync(ev)
	}
}

func (d *Daemon) onChange(ctx context.Context, typ document.Type) {
	start := time.Now()
	st, err := d.syncer.SyncDocument(ctx, typ)
	d.config.Metrics.Observe("sync_document", typ.String(), metrics.BackendRelational, start, err)
	d.notify(Event{Document: &typ, Stats: st, Err: err})
	if err != nil {
		d.log.Errorf("error syncing %s: %v", typ, err)
		return
	}
	d.record(st)
}

// refresh periodically runs a full sync.
func (d *Daemon) refresh(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.FullSyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.PerformFullSync(ctx); err != nil && ctx.Err() == nil {
				d.log.Errorf("error during periodic full sync: %v", err)
			}
		}
	}
}
