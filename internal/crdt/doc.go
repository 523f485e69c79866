// Package crdt is the document engine consumed by the document manager.
//
// A Doc is a map of named last-writer-wins registers. Every Put stamps the
// register with the document's Lamport clock and the local actor id; Merge
// keeps, per key, the register with the higher clock (ties broken by actor
// id), so two replicas that exchange snapshots converge regardless of order.
//
// Snapshots are CBOR with canonical encoding, so an unchanged document always
// produces identical bytes.
//
// A Doc is not safe for concurrent use. The document manager serializes
// access to each Doc.
package crdt

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

// formatVersion is bumped when the snapshot layout changes.
const formatVersion = 1

// Register is one named value with its causal stamp.
type Register struct {
	Value []byte `cbor:"1,keyasint"`
	Clock uint64 `cbor:"2,keyasint"`
	Actor string `cbor:"3,keyasint"`
}

// wins reports whether r should replace other during a merge.
func (r Register) wins(other Register) bool {
	if r.Clock != other.Clock {
		return r.Clock > other.Clock
	}
	return r.Actor > other.Actor
}

type snapshot struct {
	Version   int                 `cbor:"1,keyasint"`
	Clock     uint64              `cbor:"2,keyasint"`
	Registers map[string]Register `cbor:"3,keyasint"`
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("crdt: invalid cbor options: %v", err))
	}
	encMode = em
}

// Doc is an in-memory CRDT document.
type Doc struct {
	actor string
	clock uint64
	regs  map[string]Register
}

// New creates an empty document owned by actor.
func New(actor string) *Doc {
	return &Doc{
		actor: actor,
		regs:  make(map[string]Register),
	}
}

// Load decodes a snapshot produced by Save. Empty input yields an empty
// document.
func Load(data []byte, actor string) (*Doc, error) {
	d := New(actor)
	if len(data) == 0 {
		return d, nil
	}

	var snap snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode document snapshot: %w", err)
	}
	if snap.Version > formatVersion {
		return nil, fmt.Errorf("unsupported document format version %d", snap.Version)
	}

	d.clock = snap.Clock
	for k, r := range snap.Registers {
		d.regs[k] = r
		if r.Clock > d.clock {
			d.clock = r.Clock
		}
	}
	return d, nil
}

// Save encodes the full document snapshot.
func (d *Doc) Save() ([]byte, error) {
	data, err := encMode.Marshal(snapshot{
		Version:   formatVersion,
		Clock:     d.clock,
		Registers: d.regs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode document snapshot: %w", err)
	}
	return data, nil
}

// Actor returns the replica id stamped on local writes.
func (d *Doc) Actor() string {
	return d.actor
}

// Clock returns the current Lamport clock.
func (d *Doc) Clock() uint64 {
	return d.clock
}

// Get returns a copy of the value stored at key.
func (d *Doc) Get(key string) ([]byte, bool) {
	r, ok := d.regs[key]
	if !ok {
		return nil, false
	}
	return bytes.Clone(r.Value), true
}

// Put stores a copy of value at key.
func (d *Doc) Put(key string, value []byte) {
	d.clock++
	d.regs[key] = Register{
		Value: bytes.Clone(value),
		Clock: d.clock,
		Actor: d.actor,
	}
}

// Merge folds other into d and returns the number of registers that changed.
func (d *Doc) Merge(other *Doc) int {
	changed := 0
	for k, theirs := range other.regs {
		ours, ok := d.regs[k]
		if !ok || theirs.wins(ours) {
			if ok && bytes.Equal(ours.Value, theirs.Value) && ours.Clock == theirs.Clock && ours.Actor == theirs.Actor {
				continue
			}
			d.regs[k] = Register{
				Value: bytes.Clone(theirs.Value),
				Clock: theirs.Clock,
				Actor: theirs.Actor,
			}
			changed++
		}
	}
	if other.clock > d.clock {
		d.clock = other.clock
	}
	return changed
}

// Keys returns the register names in sorted order.
func (d *Doc) Keys() []string {
	keys := make([]string, 0, len(d.regs))
	for k := range d.regs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of registers.
func (d *Doc) Len() int {
	return len(d.regs)
}
