package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mathclub/festival-bbs/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Title string `json:"title"`
	Count int64  `json:"count"`
	At    int64  `json:"at"`
}

// newTestClient creates a client over a fresh store with a fixed clock.
func newTestClient(t *testing.T) (*storage.Client, *Store) {
	t.Helper()
	store := New()
	clock := func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return storage.NewClient(store, storage.WithClock(clock)), store
}

func TestStore_SetAndGet(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "a/b", record{Title: "hello", Count: 1}))

	snap, err := client.Get(ctx, "a/b")
	require.NoError(t, err)
	require.True(t, snap.Exists())
	assert.Equal(t, "b", snap.Key())

	var got record
	require.NoError(t, snap.Decode(&got))
	assert.Equal(t, "hello", got.Title)
	assert.EqualValues(t, 1, got.Count)

	missing, err := client.Get(ctx, "a/zzz")
	require.NoError(t, err)
	assert.False(t, missing.Exists())
}

func TestStore_GetAssemblesChildren(t *testing.T) {
	client, store := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "posts/b1/p1", record{Title: "one"}))
	require.NoError(t, client.Set(ctx, "posts/b1/p2", record{Title: "two"}))
	require.NoError(t, client.Set(ctx, "posts/b2/p3", record{Title: "three"}))
	assert.Equal(t, 3, store.Len())

	snap, err := client.Get(ctx, "posts")
	require.NoError(t, err)
	boards := snap.Children()
	require.Len(t, boards, 2)
	assert.Equal(t, "b1", boards[0].Key())
	assert.Equal(t, 2, boards[0].NumChildren())
	assert.Equal(t, 1, boards[1].NumChildren())

	leaf, err := client.Get(ctx, "posts/b1/p2/title")
	require.NoError(t, err)
	assert.Equal(t, "two", leaf.Val())
}

func TestStore_UpdateFoldsIntoRecord(t *testing.T) {
	client, store := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "boards/classroom", record{Title: "Classroom"}))
	require.NoError(t, client.Update(ctx, "", map[string]any{
		"boards/classroom/count": 5,
		"posts/classroom/p1":     record{Title: "first"},
	}))
	assert.Equal(t, 2, store.Len(), "the counter must not become its own record")

	var got record
	snap, err := client.Get(ctx, "boards/classroom")
	require.NoError(t, err)
	require.NoError(t, snap.Decode(&got))
	assert.Equal(t, "Classroom", got.Title)
	assert.EqualValues(t, 5, got.Count)
}

func TestStore_RemoveAndEmptyMaps(t *testing.T) {
	client, store := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "posts/b1/p1", record{Title: "x"}))
	require.NoError(t, client.Set(ctx, "posts/b1/p2", record{Title: "y"}))
	require.NoError(t, client.Remove(ctx, "posts/b1/p1"))

	snap, err := client.Get(ctx, "posts/b1")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.NumChildren())

	require.NoError(t, client.Set(ctx, "empty", map[string]any{}))
	empty, err := client.Get(ctx, "empty")
	require.NoError(t, err)
	assert.False(t, empty.Exists())
	assert.Equal(t, 1, store.Len())
}

func TestStore_ServerTimestamp(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "m", map[string]any{"title": "t", "at": storage.ServerTimestamp}))

	var got record
	snap, err := client.Get(ctx, "m")
	require.NoError(t, err)
	require.NoError(t, snap.Decode(&got))
	assert.EqualValues(t, 1_700_000_000_000, got.At)
}

func TestStore_TransactionRollback(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, client.Set(ctx, "boards/b", record{Title: "before"}))

	boom := errors.New("boom")
	err := client.Transact(ctx, func(tx *storage.Tx) error {
		if err := tx.Set("boards/b/title", "after"); err != nil {
			return err
		}
		if err := tx.Set("posts/b/p", record{Title: "p"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	snap, err := client.Get(ctx, "boards/b/title")
	require.NoError(t, err)
	assert.Equal(t, "before", snap.Val())

	posts, err := client.Get(ctx, "posts")
	require.NoError(t, err)
	assert.False(t, posts.Exists())
}

func TestStore_PushKeysAreUniqueAndOrdered(t *testing.T) {
	client, store := newTestClient(t)
	ctx := context.Background()

	first, err := client.Push(ctx, "posts/b1")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := client.Push(ctx, "posts/b1")
	require.NoError(t, err)

	assert.NotEqual(t, first.Key, second.Key)
	assert.Less(t, first.Key, second.Key)
	assert.Equal(t, "posts/b1/"+first.Key, first.Path)
	assert.Equal(t, 0, store.Len(), "push must not write")
}

func TestStore_InvalidPath(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	err := client.Set(ctx, "boards/a.b", "x")
	assert.ErrorIs(t, err, storage.ErrInvalidPath)

	err = client.Set(ctx, "", "x")
	assert.ErrorIs(t, err, storage.ErrInvalidPath)
}

func TestStore_CreateKeepsExisting(t *testing.T) {
	client, store := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "boards/classroom", record{Title: "Renamed", Count: 7}))

	var created []bool
	require.NoError(t, client.Transact(ctx, func(tx *storage.Tx) error {
		for _, p := range []string{"boards/classroom", "boards/puzzles"} {
			ok, err := tx.Create(p, record{Title: "default"})
			if err != nil {
				return err
			}
			created = append(created, ok)
		}
		return nil
	}))
	assert.Equal(t, []bool{false, true}, created)

	var got record
	snap, err := client.Get(ctx, "boards/classroom")
	require.NoError(t, err)
	require.NoError(t, snap.Decode(&got))
	assert.Equal(t, "Renamed", got.Title)
	assert.EqualValues(t, 7, got.Count)

	boom := errors.New("boom")
	err = client.Transact(ctx, func(tx *storage.Tx) error {
		if _, err := tx.Create("boards/festival", record{Title: "x"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, store.Len())
}
