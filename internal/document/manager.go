// Package document manages the CRDT documents that are the durable source of
// truth for every entity.
//
// There is one global document for app-wide collections and one document per
// project. Each document is a single file under <data_dir>/documents whose
// name is a pure function of its Type. Handles are cached by the Manager and
// every read or write of a document happens under that document's lock.
package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/varubogu/flequit-sub003/internal/crdt"
	"github.com/varubogu/flequit-sub003/internal/logging"
	"github.com/varubogu/flequit-sub003/internal/storeerr"
)

// DirName is the documents directory under the data directory.
const DirName = "documents"

const actorFile = "actor"

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("document manager is closed")
	// ErrLocked means another process holds the data directory.
	ErrLocked = errors.New("data directory is locked by another process")
)

// Options configures a Manager.
type Options struct {
	// DataDir holds the documents directory and the replica's actor id.
	DataDir string

	// Actor overrides the persisted replica id. Mostly useful in tests.
	Actor string

	// NoLock skips the advisory lock on the data directory.
	NoLock bool

	Logger *logging.Logger
}

// Manager creates, caches and persists documents.
type Manager struct {
	root  string
	actor string
	log   *logging.Logger

	docs    *xsync.MapOf[Type, *Document]
	dirLock *dirLock
	closed  atomic.Bool
	closeMu sync.Mutex
}

// NewManager prepares the documents directory and returns a Manager.
// Documents are opened lazily.
func NewManager(opts Options) (*Manager, error) {
	if opts.DataDir == "" {
		return nil, fmt.Errorf("data dir cannot be empty")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	root := filepath.Join(opts.DataDir, DirName)
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, storeerr.New(storeerr.KindStorage, "open_documents", fmt.Errorf("failed to create documents directory: %w", err))
	}

	var lock *dirLock
	if !opts.NoLock {
		l, err := lockDir(opts.DataDir)
		if err != nil {
			return nil, storeerr.New(storeerr.KindStorage, "open_documents", err)
		}
		lock = l
	}

	actor := opts.Actor
	if actor == "" {
		a, err := loadActor(opts.DataDir)
		if err != nil {
			lock.release()
			return nil, storeerr.New(storeerr.KindStorage, "open_documents", err)
		}
		actor = a
	}

	m := &Manager{
		root:    root,
		actor:   actor,
		log:     opts.Logger.With("document"),
		docs:    xsync.NewMapOf[Type, *Document](),
		dirLock: lock,
	}
	m.log.Debugf("documents at %s (actor %s)", root, actor)
	return m, nil
}

// loadActor returns the replica id persisted in dataDir, creating one on first use.
func loadActor(dataDir string) (string, error) {
	path := filepath.Join(dataDir, actorFile)
	data, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to read actor id: %w", err)
	}

	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id+"\n"), 0644); err != nil {
		return "", fmt.Errorf("failed to write actor id: %w", err)
	}
	return id, nil
}

// Dir returns the documents directory.
func (m *Manager) Dir() string {
	return m.root
}

// Actor returns the replica id stamped on local writes.
func (m *Manager) Actor() string {
	return m.actor
}

func (m *Manager) handle(typ Type) *Document {
	d, _ := m.docs.LoadOrCompute(typ, func() *Document {
		return newDocument(typ, filepath.Join(m.root, typ.FileName()), m.actor)
	})
	return d
}

// acquire returns the loaded handle for typ with its lock held. The caller
// must call d.unlock. Unless create is set a missing document is served
// empty without creating its file.
func (m *Manager) acquire(ctx context.Context, op string, typ Type, create bool) (*Document, error) {
	if m.closed.Load() {
		return nil, storeerr.New(storeerr.KindInvalidOperation, op, ErrClosed)
	}
	if err := validateType(typ); err != nil {
		return nil, storeerr.New(storeerr.KindValidation, op, err)
	}

	for {
		d := m.handle(typ)
		if err := d.lock(ctx); err != nil {
			return nil, storeerr.New(storeerr.KindStorage, op, fmt.Errorf("waiting for document %s: %w", typ, err))
		}
		if d.evicted {
			// Replaced in the cache while we waited.
			d.unlock()
			continue
		}
		if m.closed.Load() {
			d.unlock()
			return nil, storeerr.New(storeerr.KindInvalidOperation, op, ErrClosed)
		}
		if err := d.ensureLoaded(create); err != nil {
			d.unlock()
			return nil, storeerr.New(storeerr.KindStorage, op, err)
		}
		return d, nil
	}
}

// GetOrCreate returns the handle for typ, creating empty backing storage the
// first time the document is used.
func (m *Manager) GetOrCreate(ctx context.Context, typ Type) (*Document, error) {
	d, err := m.acquire(ctx, "get_or_create", typ, true)
	if err != nil {
		return nil, err
	}
	d.unlock()
	return d, nil
}

// ListDocuments returns every document that has a backing file, global first.
func (m *Manager) ListDocuments(ctx context.Context) ([]Type, error) {
	if m.closed.Load() {
		return nil, storeerr.New(storeerr.KindInvalidOperation, "list_documents", ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names, err := crdt.List(m.root)
	if err != nil {
		return nil, storeerr.New(storeerr.KindStorage, "list_documents", err)
	}

	seen := make(map[Type]bool)
	for _, name := range names {
		typ, err := ParseFileName(name + crdt.Ext)
		if err != nil {
			m.log.Warnf("skipping %s: %v", name, err)
			continue
		}
		seen[typ] = true
	}

	types := make([]Type, 0, len(seen))
	for typ := range seen {
		types = append(types, typ)
	}
	sort.Slice(types, func(i, j int) bool {
		if types[i].IsGlobal() != types[j].IsGlobal() {
			return types[i].IsGlobal()
		}
		return types[i].projectID < types[j].projectID
	})
	return types, nil
}

// Keys returns the collection keys stored in a document.
func (m *Manager) Keys(ctx context.Context, typ Type) ([]string, error) {
	d, err := m.acquire(ctx, "keys", typ, false)
	if err != nil {
		return nil, err
	}
	defer d.unlock()
	return d.doc.Keys(), nil
}

// Snapshot returns the encoded state of a document, suitable for Merge on
// another replica.
func (m *Manager) Snapshot(ctx context.Context, typ Type) ([]byte, error) {
	d, err := m.acquire(ctx, "snapshot", typ, false)
	if err != nil {
		return nil, err
	}
	defer d.unlock()

	data, err := d.doc.Save()
	if err != nil {
		return nil, storeerr.New(storeerr.KindStorage, "snapshot", err)
	}
	return data, nil
}

// Merge folds a snapshot from another replica into typ and persists the
// result. It returns the number of registers that changed.
func (m *Manager) Merge(ctx context.Context, typ Type, snapshot []byte) (int, error) {
	d, err := m.acquire(ctx, "merge", typ, true)
	if err != nil {
		return 0, err
	}
	defer d.unlock()

	other, err := crdt.Load(snapshot, m.actor)
	if err != nil {
		return 0, storeerr.New(storeerr.KindStorage, "merge", err)
	}

	changed, err := d.refresh()
	if err != nil {
		return 0, storeerr.New(storeerr.KindStorage, "merge", err)
	}
	changed += d.doc.Merge(other)
	if changed == 0 {
		return 0, nil
	}
	if err := d.persist(); err != nil {
		return 0, storeerr.New(storeerr.KindStorage, "merge", err)
	}
	m.log.Infof("merged %d collection(s) into %s", changed, typ)
	return changed, nil
}

// Reload merges the on-disk snapshot of typ, as written by another replica or
// a file sync tool, into the cached document.
func (m *Manager) Reload(ctx context.Context, typ Type) (int, error) {
	data, err := os.ReadFile(filepath.Join(m.root, typ.FileName()))
	if err != nil {
		return 0, storeerr.New(storeerr.KindStorage, "reload", fmt.Errorf("failed to read document %s: %w", typ, err))
	}
	return m.Merge(ctx, typ, data)
}

// isCurrent reports whether data is what this manager last wrote or read for typ.
func (m *Manager) isCurrent(typ Type, data []byte) bool {
	d, ok := m.docs.Load(typ)
	return ok && d.isCurrent(data)
}

// takeAbsorbed reports and clears whether a local write of typ merged another
// replica's changes since the last call.
func (m *Manager) takeAbsorbed(typ Type) bool {
	d, ok := m.docs.Load(typ)
	return ok && d.absorbed.Swap(false)
}

// Evict drops the cached handle for typ. The next access reloads from disk.
func (m *Manager) Evict(ctx context.Context, typ Type) error {
	d, ok := m.docs.Load(typ)
	if !ok {
		return nil
	}
	if err := d.lock(ctx); err != nil {
		return storeerr.New(storeerr.KindStorage, "evict", err)
	}
	defer d.unlock()

	d.evicted = true
	d.doc = nil
	m.docs.Delete(typ)
	return nil
}

// Remove deletes a project document and its backing file.
func (m *Manager) Remove(ctx context.Context, typ Type) error {
	if typ.IsGlobal() {
		return storeerr.Newf(storeerr.KindInvalidOperation, "remove_document", "the global document cannot be removed")
	}
	d, err := m.acquire(ctx, "remove_document", typ, false)
	if err != nil {
		return err
	}
	defer d.unlock()

	if err := os.Remove(d.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return storeerr.New(storeerr.KindStorage, "remove_document", err)
	}
	d.evicted = true
	d.doc = nil
	m.docs.Delete(typ)
	m.log.Infof("removed document %s", typ)
	return nil
}

// Close waits for in-flight operations, drops every handle and releases the
// data directory. Further calls fail with ErrClosed.
func (m *Manager) Close() error {
	m.closeMu.Lock()
	defer m.closeMu.Unlock()

	if m.closed.Swap(true) {
		return nil
	}

	ctx := context.Background()
	m.docs.Range(func(typ Type, d *Document) bool {
		if err := d.lock(ctx); err == nil {
			d.evicted = true
			d.doc = nil
			d.unlock()
		}
		m.docs.Delete(typ)
		return true
	})

	if err := m.dirLock.release(); err != nil {
		return fmt.Errorf("failed to release data directory: %w", err)
	}
	return nil
}
