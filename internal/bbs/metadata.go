package bbs

import (
	"context"
	"log/slog"

	"github.com/mathclub/festival-bbs/internal/domain"
	"github.com/mathclub/festival-bbs/internal/storage"
)

// MetadataAggregator keeps the dashboard totals in bulletin_board/metadata.
// The totals are advisory; a failed recompute only leaves them stale.
type MetadataAggregator struct {
	store *storage.Client
	log   *slog.Logger
}

func NewMetadataAggregator(store *storage.Client, log *slog.Logger) *MetadataAggregator {
	return &MetadataAggregator{
		store: store,
		log:   log.With("component", "metadata"),
	}
}

// Recompute counts boards and posts and overwrites the metadata record.
// Errors are logged and swallowed.
func (m *MetadataAggregator) Recompute(ctx context.Context) {
	if err := m.recompute(ctx); err != nil {
		m.log.Warn("metadata recompute failed", "error", err)
	}
}

func (m *MetadataAggregator) recompute(ctx context.Context) error {
	return m.store.Transact(ctx, func(tx *storage.Tx) error {
		boards, err := tx.Get(boardsPath)
		if err != nil {
			return err
		}
		posts, err := tx.Get(postsRoot)
		if err != nil {
			return err
		}
		total := 0
		for _, board := range posts.Children() {
			total += board.NumChildren()
		}
		return tx.Set(metadataPath, map[string]any{
			"total_boards": boards.NumChildren(),
			"total_posts":  total,
			"last_updated": storage.ServerTimestamp,
		})
	})
}

// Get returns nil without an error before the first recompute.
func (m *MetadataAggregator) Get(ctx context.Context) (*domain.Metadata, error) {
	snap, err := m.store.Get(ctx, metadataPath)
	if err != nil {
		m.log.Error("read metadata failed", "error", err)
		return nil, err
	}
	if !snap.Exists() {
		return nil, nil
	}
	var md domain.Metadata
	if err := snap.Decode(&md); err != nil {
		return nil, err
	}
	return &md, nil
}
