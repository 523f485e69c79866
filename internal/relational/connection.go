package relational

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/varubogu/flequit-sub003/internal/storeerr"
	"golang.org/x/sync/singleflight"
)

// MigrateFunc brings the schema of a freshly opened database up to date.
type MigrateFunc func(ctx context.Context, db *DB) error

// ConnectionManager owns the process-wide pool. The first Get opens the
// database and runs the migration; concurrent first callers share that one
// attempt. A failed attempt is not remembered, so the next Get retries, and no
// caller ever receives a pool whose migration has not succeeded.
type ConnectionManager struct {
	opts    Options
	migrate MigrateFunc
	group   singleflight.Group

	mu     sync.RWMutex
	db     *DB
	closed bool

	// users holding the manager through Shared; guarded by sharedMu
	refs int
	key  string
}

// NewConnectionManager creates a manager. Nothing is opened until Get.
func NewConnectionManager(opts Options, migrate MigrateFunc) *ConnectionManager {
	return &ConnectionManager{opts: opts, migrate: migrate}
}

var (
	sharedMu sync.Mutex
	shared   = make(map[string]*ConnectionManager)
)

// Shared returns the process-wide manager of the database at opts.Path,
// creating it from opts and migrate on first use; later arguments for the same
// path are ignored. Every call must be paired with Release. Once the last user
// releases it the pool is closed and the next Shared call starts over.
func Shared(opts Options, migrate MigrateFunc) *ConnectionManager {
	key := opts.Path
	if abs, err := filepath.Abs(key); err == nil {
		key = abs
	}

	sharedMu.Lock()
	defer sharedMu.Unlock()
	cm, ok := shared[key]
	if !ok {
		cm = NewConnectionManager(opts, migrate)
		cm.key = key
		shared[key] = cm
	}
	cm.refs++
	return cm
}

// Release drops one Shared reference and closes the pool with the last one.
func (cm *ConnectionManager) Release() error {
	sharedMu.Lock()
	if cm.refs > 0 {
		cm.refs--
	}
	last := cm.refs == 0
	if last && shared[cm.key] == cm {
		delete(shared, cm.key)
	}
	sharedMu.Unlock()

	if !last {
		return nil
	}
	return cm.Close()
}

// Get returns the ready pool, opening and migrating it on first use.
func (cm *ConnectionManager) Get(ctx context.Context) (*DB, error) {
	if db, err := cm.current(); db != nil || err != nil {
		return db, err
	}

	// The attempt is shared, so it must not die with the first caller.
	ch := cm.group.DoChan("open", func() (any, error) {
		if db, err := cm.current(); db != nil || err != nil {
			return db, err
		}
		return cm.open(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*DB), nil
	case <-ctx.Done():
		return nil, storeerr.New(storeerr.KindConnection, "connect", ctx.Err())
	}
}

func (cm *ConnectionManager) current() (*DB, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if cm.closed {
		return nil, storeerr.Newf(storeerr.KindConnection, "connect", "connection manager is closed")
	}
	return cm.db, nil
}

func (cm *ConnectionManager) open(ctx context.Context) (*DB, error) {
	db, err := Open(ctx, cm.opts)
	if err != nil {
		return nil, err
	}

	if cm.migrate != nil {
		if err := cm.migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, storeerr.New(storeerr.KindConnection, "migrate", fmt.Errorf("schema migration failed: %w", err))
		}
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.closed {
		_ = db.Close()
		return nil, storeerr.Newf(storeerr.KindConnection, "connect", "connection manager is closed")
	}
	cm.db = db
	db.log.Infof("database ready at %s", db.Path())
	return db, nil
}

// Close closes the pool if it was opened. Get fails afterwards.
func (cm *ConnectionManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.closed = true
	if cm.db == nil {
		return nil
	}
	err := cm.db.Close()
	cm.db = nil
	return err
}
