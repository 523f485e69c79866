package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/varubogu/flequit-sub003/internal/crdt"
)

// Document is the cached handle of one CRDT document.
//
// All access to doc goes through the handle's lock, a one-slot channel so that
// waiting for it can be abandoned when the caller's context ends.
type Document struct {
	typ   Type
	path  string
	actor string

	sem     chan struct{}
	doc     *crdt.Doc // nil until loaded
	onDisk  bool      // doc came from or was written to the backing file
	evicted bool

	// hash of the snapshot last read from or written to disk
	lastHash atomic.Uint64

	// set when a local write folded in another replica's snapshot that the
	// watcher has not reported yet
	absorbed atomic.Bool
}

func newDocument(typ Type, path, actor string) *Document {
	return &Document{
		typ:   typ,
		path:  path,
		actor: actor,
		sem:   make(chan struct{}, 1),
	}
}

// Type returns the document's type.
func (d *Document) Type() Type {
	return d.typ
}

// Path returns the backing file.
func (d *Document) Path() string {
	return d.path
}

func (d *Document) lock(ctx context.Context) error {
	select {
	case d.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Document) unlock() {
	<-d.sem
}

// ensureLoaded reads the backing file. A missing file yields an empty
// document, written out only when create is set. Caller holds the lock.
func (d *Document) ensureLoaded(create bool) error {
	if d.doc != nil && d.onDisk {
		return nil
	}

	data, err := os.ReadFile(d.path)
	if errors.Is(err, os.ErrNotExist) {
		if d.doc == nil {
			d.doc = crdt.New(d.actor)
		}
		if !create {
			return nil
		}
		return d.persist()
	}
	if err != nil {
		return fmt.Errorf("failed to read document %s: %w", d.typ, err)
	}

	doc, err := crdt.Load(data, d.actor)
	if err != nil {
		return fmt.Errorf("failed to load document %s: %w", d.typ, err)
	}
	d.doc = doc
	d.onDisk = true
	d.lastHash.Store(xxhash.Sum64(data))
	return nil
}

// refresh merges the backing file into doc when it holds a snapshot this
// process has not seen, so a following persist cannot drop another replica's
// registers. It returns the number of registers that changed. Caller holds
// the lock.
func (d *Document) refresh() (int, error) {
	data, err := os.ReadFile(d.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read document %s: %w", d.typ, err)
	}
	if d.isCurrent(data) {
		return 0, nil
	}

	other, err := crdt.Load(data, d.actor)
	if err != nil {
		return 0, fmt.Errorf("failed to load document %s: %w", d.typ, err)
	}
	return d.doc.Merge(other), nil
}

// persist writes the full snapshot. On failure the in-memory state is dropped
// so the next access reloads what is actually on disk. Caller holds the lock.
func (d *Document) persist() error {
	written, err := crdt.WriteFile(d.path, d.doc)
	if err != nil {
		d.doc = nil
		d.onDisk = false
		return err
	}
	d.onDisk = true
	d.lastHash.Store(xxhash.Sum64(written))
	return nil
}

// prepareWrite folds unseen on-disk changes into doc before a local write.
// Caller holds the lock.
func (d *Document) prepareWrite() error {
	n, err := d.refresh()
	if err != nil {
		return err
	}
	if n > 0 {
		d.absorbed.Store(true)
	}
	return nil
}

// isCurrent reports whether data is the snapshot this process last saw.
func (d *Document) isCurrent(data []byte) bool {
	return d.lastHash.Load() == xxhash.Sum64(data)
}
