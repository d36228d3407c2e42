package storage

import (
	"context"
	"encoding/json"
)

// Backend is the persistence primitive a Client runs on. Records are whole JSON
// documents keyed by their full slash-separated path; the Client keeps the
// invariant that no record is stored below another record.
type Backend interface {
	// Atomic runs fn against the records. Writes made by fn are applied
	// together, or not at all when fn returns an error.
	Atomic(ctx context.Context, fn func(Records) error) error
	Close() error
}

// Records is the view of the backend available inside Atomic.
type Records interface {
	// Load returns the record stored exactly at path.
	Load(path string) (json.RawMessage, bool, error)
	// Scan returns every record stored strictly below path, keyed by full path.
	// An empty path scans everything.
	Scan(path string) (map[string]json.RawMessage, error)
	Put(path string, value json.RawMessage) error
	// Insert stores value only when no record exists at path and reports
	// whether it did.
	Insert(path string, value json.RawMessage) (bool, error)
	// Delete removes the record at path and every record below it.
	Delete(path string) error
}
