package storage

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Snapshot is the value found at a path at read time.
type Snapshot struct {
	path  string
	value any
}

// Exists reports whether any data was found.
func (s Snapshot) Exists() bool {
	return s.value != nil
}

// Key is the last segment of the snapshot path.
func (s Snapshot) Key() string {
	return lastSegment(s.path)
}

func (s Snapshot) Path() string {
	return s.path
}

// Val returns the raw decoded value: map[string]any, []any, string, bool or json.Number.
func (s Snapshot) Val() any {
	return s.value
}

// Decode unmarshals the snapshot into v.
func (s Snapshot) Decode(v any) error {
	if s.value == nil {
		return fmt.Errorf("decode %s: %w", s.path, ErrNoData)
	}
	raw, err := json.Marshal(s.value)
	if err != nil {
		return fmt.Errorf("decode %s: %w", s.path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", s.path, err)
	}
	return nil
}

// Children returns the child snapshots ordered by key. A leaf has no children.
func (s Snapshot) Children() []Snapshot {
	m, ok := s.value.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Snapshot, 0, len(keys))
	for _, k := range keys {
		out = append(out, Snapshot{path: Join(s.path, k), value: m[k]})
	}
	return out
}

// NumChildren returns the number of direct children.
func (s Snapshot) NumChildren() int {
	m, ok := s.value.(map[string]any)
	if !ok {
		return 0
	}
	return len(m)
}
