package inmemory

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/mathclub/festival-bbs/internal/storage"
)

// Store implements storage.Backend in process memory. Transactions are
// serialized by a single mutex and rolled back from an undo log on error.
type Store struct {
	mu      sync.Mutex
	records map[string]json.RawMessage
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		records: make(map[string]json.RawMessage),
	}
}

func (s *Store) Atomic(ctx context.Context, fn func(storage.Records) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &recordTx{
		store:   s,
		undo:    make(map[string]json.RawMessage),
		touched: make(map[string]struct{}),
	}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// recordTx operates on the live map while the store lock is held.
type recordTx struct {
	store   *Store
	undo    map[string]json.RawMessage
	touched map[string]struct{}
}

func (t *recordTx) Load(path string) (json.RawMessage, bool, error) {
	v, ok := t.store.records[path]
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

func (t *recordTx) Scan(path string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage)
	for k, v := range t.store.records {
		if isBelow(k, path) {
			out[k] = clone(v)
		}
	}
	return out, nil
}

func (t *recordTx) Put(path string, value json.RawMessage) error {
	t.remember(path)
	t.store.records[path] = clone(value)
	return nil
}

func (t *recordTx) Insert(path string, value json.RawMessage) (bool, error) {
	if _, ok := t.store.records[path]; ok {
		return false, nil
	}
	return true, t.Put(path, value)
}

func (t *recordTx) Delete(path string) error {
	for k := range t.store.records {
		if k == path || isBelow(k, path) {
			t.remember(k)
			delete(t.store.records, k)
		}
	}
	return nil
}

func (t *recordTx) remember(path string) {
	if _, ok := t.touched[path]; ok {
		return
	}
	t.touched[path] = struct{}{}
	if v, ok := t.store.records[path]; ok {
		t.undo[path] = v
	}
}

func (t *recordTx) rollback() {
	for k := range t.touched {
		if v, ok := t.undo[k]; ok {
			t.store.records[k] = v
		} else {
			delete(t.store.records, k)
		}
	}
}

func isBelow(key, path string) bool {
	if path == "" {
		return true
	}
	return strings.HasPrefix(key, path+"/")
}

func clone(v json.RawMessage) json.RawMessage {
	out := make(json.RawMessage, len(v))
	copy(out, v)
	return out
}
