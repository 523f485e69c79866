package document

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/varubogu/flequit-sub003/internal/storeerr"
)

// LoadData decodes the value stored under key in the document typ. The bool is
// false when the key has never been written.
func LoadData[T any](ctx context.Context, m *Manager, typ Type, key string) (T, bool, error) {
	var zero T

	d, err := m.acquire(ctx, "load_data", typ, false)
	if err != nil {
		return zero, false, err
	}
	defer d.unlock()

	return decode[T](d, "load_data", key)
}

// SaveData stores value under key and persists the full document snapshot.
func SaveData[T any](ctx context.Context, m *Manager, typ Type, key string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return storeerr.New(storeerr.KindStorage, "save_data", fmt.Errorf("failed to encode %s: %w", key, err)).WithEntity(key, "")
	}

	d, err := m.acquire(ctx, "save_data", typ, true)
	if err != nil {
		return err
	}
	defer d.unlock()

	if err := d.prepareWrite(); err != nil {
		return storeerr.New(storeerr.KindStorage, "save_data", err).WithEntity(key, "")
	}
	d.doc.Put(key, data)
	if err := d.persist(); err != nil {
		return storeerr.New(storeerr.KindStorage, "save_data", err).WithEntity(key, "")
	}
	return nil
}

// UpdateData runs a read-modify-write of key under a single hold of the
// document lock. If fn returns an error nothing is written and the error is
// returned unchanged.
func UpdateData[T any](ctx context.Context, m *Manager, typ Type, key string, fn func(cur T, found bool) (T, error)) error {
	d, err := m.acquire(ctx, "update_data", typ, true)
	if err != nil {
		return err
	}
	defer d.unlock()

	if err := d.prepareWrite(); err != nil {
		return storeerr.New(storeerr.KindStorage, "update_data", err).WithEntity(key, "")
	}
	cur, found, err := decode[T](d, "update_data", key)
	if err != nil {
		return err
	}

	next, err := fn(cur, found)
	if err != nil {
		return err
	}

	data, err := json.Marshal(next)
	if err != nil {
		return storeerr.New(storeerr.KindStorage, "update_data", fmt.Errorf("failed to encode %s: %w", key, err)).WithEntity(key, "")
	}

	d.doc.Put(key, data)
	if err := d.persist(); err != nil {
		return storeerr.New(storeerr.KindStorage, "update_data", err).WithEntity(key, "")
	}
	return nil
}

func decode[T any](d *Document, op, key string) (T, bool, error) {
	var v T
	raw, ok := d.doc.Get(key)
	if !ok {
		return v, false, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, storeerr.New(storeerr.KindStorage, op, fmt.Errorf("failed to decode %s in %s: %w", key, d.typ, err)).WithEntity(key, "")
	}
	return v, true, nil
}
