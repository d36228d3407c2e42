// Package bbs implements the bulletin board data-access layer: boards, posts
// and the derived dashboard metadata, all kept in the key-path store under
// bulletin_board/.
package bbs

import (
	"log/slog"

	"github.com/mathclub/festival-bbs/internal/domain"
	"github.com/mathclub/festival-bbs/internal/storage"
)

// Notifier receives every post created through the repository.
type Notifier interface {
	PublishPost(post domain.Post)
}

// Repositories bundles the three repositories sharing one store.
type Repositories struct {
	Boards   *BoardRepository
	Posts    *PostRepository
	Metadata *MetadataAggregator
}

// New wires the repositories. notifier may be nil.
func New(store *storage.Client, seeds []BoardSeed, notifier Notifier, log *slog.Logger) *Repositories {
	meta := NewMetadataAggregator(store, log)
	return &Repositories{
		Boards:   NewBoardRepository(store, seeds, meta, log),
		Posts:    NewPostRepository(store, meta, notifier, log),
		Metadata: meta,
	}
}
