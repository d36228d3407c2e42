package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/mathclub/festival-bbs/internal/storage"
)

// Store implements storage.Backend on a single SQLite file. One connection is
// kept open, so transactions never interleave.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS records (
			path TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Atomic(ctx context.Context, fn func(storage.Records) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(&recordTx{ctx: ctx, tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type recordTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *recordTx) Load(path string) (json.RawMessage, bool, error) {
	var value string
	err := t.tx.QueryRowContext(t.ctx, `SELECT value FROM records WHERE path = ?`, path).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return json.RawMessage(value), true, nil
}

func (t *recordTx) Scan(path string) (map[string]json.RawMessage, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if path == "" {
		rows, err = t.tx.QueryContext(t.ctx, `SELECT path, value FROM records`)
	} else {
		lo, hi := childRange(path)
		rows, err = t.tx.QueryContext(t.ctx, `SELECT path, value FROM records WHERE path >= ? AND path < ?`, lo, hi)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var p, v string
		if err := rows.Scan(&p, &v); err != nil {
			return nil, err
		}
		out[p] = json.RawMessage(v)
	}
	return out, rows.Err()
}

func (t *recordTx) Put(path string, value json.RawMessage) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO records (path, value) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET value = excluded.value`,
		path, string(value))
	return err
}

func (t *recordTx) Insert(path string, value json.RawMessage) (bool, error) {
	res, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO records (path, value) VALUES (?, ?) ON CONFLICT(path) DO NOTHING`,
		path, string(value))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (t *recordTx) Delete(path string) error {
	lo, hi := childRange(path)
	_, err := t.tx.ExecContext(t.ctx,
		`DELETE FROM records WHERE path = ? OR (path >= ? AND path < ?)`,
		path, lo, hi)
	return err
}

// childRange bounds every key below path under binary collation: '0' sorts
// right after '/'.
func childRange(path string) (string, string) {
	return path + "/", path + "0"
}
