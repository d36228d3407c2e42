package storage

import (
	"fmt"
	"time"
)

// Tx is the store view inside Client.Transact. All server timestamps written
// by one transaction resolve to the same instant.
type Tx struct {
	recs Records
	now  time.Time
}

func (tx *Tx) Get(path string) (Snapshot, error) {
	p, err := cleanPath(path)
	if err != nil {
		return Snapshot{}, err
	}
	v, err := read(tx.recs, p)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{path: p, value: v}, nil
}

func (tx *Tx) Set(path string, value any) error {
	p, err := cleanPath(path)
	if err != nil {
		return err
	}
	v, err := prepare(value, tx.now)
	if err != nil {
		return fmt.Errorf("encode %s: %w", p, err)
	}
	return write(tx.recs, p, v)
}

func (tx *Tx) Update(path string, patch map[string]any) error {
	base, err := cleanPath(path)
	if err != nil {
		return err
	}
	for rel, value := range patch {
		if err := tx.Set(Join(base, rel), value); err != nil {
			return err
		}
	}
	return nil
}

func (tx *Tx) Push(path string) (Ref, error) {
	return push(path)
}

// Create writes value at path only when nothing is stored there yet, and
// reports whether it did. A concurrent creator of the same path makes it
// return false instead of overwriting.
func (tx *Tx) Create(path string, value any) (bool, error) {
	p, err := cleanPath(path)
	if err != nil {
		return false, err
	}
	existing, err := read(tx.recs, p)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}
	v, err := prepare(value, tx.now)
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", p, err)
	}
	return create(tx.recs, p, v)
}
