package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const DefaultTimeout = 10 * time.Second

var (
	// ErrTimeout means the store did not answer within the client timeout.
	// The server may be down; the abandoned call can still complete later.
	ErrTimeout     = errors.New("store did not respond in time, the server may be down")
	ErrInvalidPath = errors.New("invalid path")
	ErrNoData      = errors.New("no data at path")
)

// Observer is told about every finished store call.
type Observer func(op string, elapsed time.Duration, err error)

// Client is the key-path store used by the repositories. Every call is bounded
// by the client timeout.
type Client struct {
	backend  Backend
	timeout  time.Duration
	now      func() time.Time
	observer Observer
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithClock overrides the time source used for ServerTimestamp.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

func NewClient(b Backend, opts ...Option) *Client {
	c := &Client{
		backend: b,
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get reads the data at path.
func (c *Client) Get(ctx context.Context, path string) (Snapshot, error) {
	return TransactResult(ctx, c, func(tx *Tx) (Snapshot, error) {
		return tx.Get(path)
	})
}

// Set overwrites the data at path. A nil value removes it.
func (c *Client) Set(ctx context.Context, path string, value any) error {
	return c.Transact(ctx, func(tx *Tx) error {
		return tx.Set(path, value)
	})
}

// Update writes every entry of patch, keyed by path relative to path, in one
// atomic step. Nil entries are removed.
func (c *Client) Update(ctx context.Context, path string, patch map[string]any) error {
	return c.Transact(ctx, func(tx *Tx) error {
		return tx.Update(path, patch)
	})
}

// Remove deletes the data at path.
func (c *Client) Remove(ctx context.Context, path string) error {
	return c.Set(ctx, path, nil)
}

// Push allocates a fresh, time-ordered child key under path without writing.
func (c *Client) Push(ctx context.Context, path string) (Ref, error) {
	if err := ctx.Err(); err != nil {
		return Ref{}, err
	}
	return push(path)
}

// Transact runs fn atomically against the store. The whole transaction shares
// one timeout.
func (c *Client) Transact(ctx context.Context, fn func(tx *Tx) error) error {
	return c.run(ctx, "transact", func(ctx context.Context) error {
		return c.backend.Atomic(ctx, func(recs Records) error {
			return fn(&Tx{recs: recs, now: c.now()})
		})
	})
}

// TransactResult runs fn like Transact and returns its value once the
// transaction has committed. The value travels over a channel, so a call
// abandoned on timeout never shares memory with the caller.
func TransactResult[T any](ctx context.Context, c *Client, fn func(tx *Tx) (T, error)) (T, error) {
	results := make(chan T, 1)
	err := c.Transact(ctx, func(tx *Tx) error {
		v, err := fn(tx)
		if err != nil {
			return err
		}
		results <- v
		return nil
	})
	var zero T
	if err != nil {
		return zero, err
	}
	select {
	case v := <-results:
		return v, nil
	default:
		return zero, nil
	}
}

func (c *Client) Close() error {
	return c.backend.Close()
}

// run abandons fn once the timeout passes; fn keeps its own context and may
// still finish in the background.
func (c *Client) run(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%s: %w", op, ErrTimeout)
		}
	}
	if c.observer != nil {
		c.observer(op, time.Since(start), err)
	}
	return err
}

// Ref points at a pushed child.
type Ref struct {
	Path string
	Key  string
}

func push(path string) (Ref, error) {
	p, err := cleanPath(path)
	if err != nil {
		return Ref{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return Ref{}, fmt.Errorf("allocate key: %w", err)
	}
	key := id.String()
	return Ref{Path: Join(p, key), Key: key}, nil
}
