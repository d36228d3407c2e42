package bbs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mathclub/festival-bbs/internal/domain"
	"github.com/mathclub/festival-bbs/internal/metrics"
	"github.com/mathclub/festival-bbs/internal/storage"
)

// SortOrder selects the direction of post_number ordering.
type SortOrder int

const (
	Ascending SortOrder = iota
	Descending
)

// PostRepository reads, creates and deletes the posts of a board.
type PostRepository struct {
	store     *storage.Client
	meta      *MetadataAggregator
	sanitizer *Sanitizer
	notifier  Notifier
	log       *slog.Logger
}

// NewPostRepository creates a repository; notifier may be nil.
func NewPostRepository(store *storage.Client, meta *MetadataAggregator, notifier Notifier, log *slog.Logger) *PostRepository {
	return &PostRepository{
		store:     store,
		meta:      meta,
		sanitizer: NewSanitizer(),
		notifier:  notifier,
		log:       log.With("component", "posts"),
	}
}

// ListPosts returns all posts of a board in a stable order on post_number.
func (r *PostRepository) ListPosts(ctx context.Context, boardID string, order SortOrder) ([]domain.Post, error) {
	posts, err := r.readPosts(ctx, boardID)
	if err != nil {
		r.log.Error("list posts failed", "board", boardID, "error", err)
		return nil, err
	}
	sortPosts(posts, order)
	return posts, nil
}

// ListPostsPaged returns the newest-first slice [offset, offset+limit). The
// whole board is fetched and sliced in memory.
func (r *PostRepository) ListPostsPaged(ctx context.Context, boardID string, offset, limit int) (domain.PostPage, error) {
	posts, err := r.readPosts(ctx, boardID)
	if err != nil {
		r.log.Error("list posts page failed", "board", boardID, "offset", offset, "limit", limit, "error", err)
		return domain.PostPage{Posts: []domain.Post{}}, err
	}
	sortPosts(posts, Descending)

	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	total := len(posts)
	out := domain.PostPage{Posts: []domain.Post{}, TotalCount: total}
	if offset >= total {
		return out, nil
	}
	// offset+limit may overflow for huge limits; compare against what is left.
	left := total - offset
	n := min(limit, left)
	out.Posts = make([]domain.Post, n)
	copy(out.Posts, posts[offset:offset+n])
	out.HasMore = limit < left
	return out, nil
}

// GetPost returns nil without an error when the post does not exist.
func (r *PostRepository) GetPost(ctx context.Context, boardID, postID string) (*domain.Post, error) {
	if !validID(boardID) || !validID(postID) {
		return nil, nil
	}
	snap, err := r.store.Get(ctx, postPath(boardID, postID))
	if err != nil {
		r.log.Error("get post failed", "board", boardID, "post", postID, "error", err)
		return nil, err
	}
	if !snap.Exists() {
		return nil, nil
	}
	return decodePost(snap, boardID)
}

// CreatePost validates the submission and appends it to the board with the
// next post number. Reading the counter and writing the post happen in one
// store transaction, so concurrent submissions never share a number.
func (r *PostRepository) CreatePost(ctx context.Context, in domain.NewPost) (*domain.Post, error) {
	in, err := r.sanitizer.Normalize(in)
	if err != nil {
		r.log.Debug("post rejected", "board", in.BoardID, "error", err)
		return nil, err
	}
	if !validID(in.BoardID) {
		return nil, domain.ErrBoardNotFound
	}

	created, err := storage.TransactResult(ctx, r.store, func(tx *storage.Tx) (*domain.Post, error) {
		snap, err := tx.Get(boardPath(in.BoardID))
		if err != nil {
			return nil, err
		}
		if !snap.Exists() {
			return nil, domain.ErrBoardNotFound
		}
		board, err := decodeBoard(snap)
		if err != nil {
			return nil, err
		}

		ref, err := tx.Push(postsPath(in.BoardID))
		if err != nil {
			return nil, err
		}
		next := board.PostCount + 1
		err = tx.Update("", map[string]any{
			ref.Path: map[string]any{
				"id":          ref.Key,
				"board_id":    in.BoardID,
				"author":      in.Author,
				"content":     in.Content,
				"created_at":  storage.ServerTimestamp,
				"post_number": next,
			},
			storage.Join(boardPath(in.BoardID), "post_count"): next,
		})
		if err != nil {
			return nil, err
		}

		saved, err := tx.Get(ref.Path)
		if err != nil {
			return nil, err
		}
		return decodePost(saved, in.BoardID)
	})
	if err != nil {
		if errors.Is(err, domain.ErrBoardNotFound) {
			r.log.Warn("post to unknown board", "board", in.BoardID)
		} else {
			r.log.Error("create post failed", "board", in.BoardID, "error", err)
		}
		return nil, err
	}

	r.log.Info("post created", "board", created.BoardID, "post", created.ID, "number", created.PostNumber)
	metrics.PostCreated(created.BoardID)
	r.meta.Recompute(ctx)
	if r.notifier != nil {
		r.notifier.PublishPost(*created)
	}
	return created, nil
}

// DeletePost removes a post. The board counter is left as is, so the number
// of a deleted post is never handed out again.
func (r *PostRepository) DeletePost(ctx context.Context, boardID, postID string) error {
	if !validID(boardID) || !validID(postID) {
		return domain.ErrPostNotFound
	}
	err := r.store.Transact(ctx, func(tx *storage.Tx) error {
		snap, err := tx.Get(postPath(boardID, postID))
		if err != nil {
			return err
		}
		if !snap.Exists() {
			return domain.ErrPostNotFound
		}
		return tx.Set(postPath(boardID, postID), nil)
	})
	if err != nil {
		r.log.Error("delete post failed", "board", boardID, "post", postID, "error", err)
		return err
	}

	r.log.Info("post deleted", "board", boardID, "post", postID)
	metrics.PostDeleted(boardID)
	r.meta.Recompute(ctx)
	return nil
}

func (r *PostRepository) readPosts(ctx context.Context, boardID string) ([]domain.Post, error) {
	if !validID(boardID) {
		return []domain.Post{}, nil
	}
	snap, err := r.store.Get(ctx, postsPath(boardID))
	if err != nil {
		return nil, err
	}
	children := snap.Children()
	posts := make([]domain.Post, 0, len(children))
	for _, child := range children {
		p, err := decodePost(child, boardID)
		if err != nil {
			return nil, fmt.Errorf("board %s: %w", boardID, err)
		}
		posts = append(posts, *p)
	}
	return posts, nil
}

func decodePost(snap storage.Snapshot, boardID string) (*domain.Post, error) {
	var p domain.Post
	if err := snap.Decode(&p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = snap.Key()
	}
	if p.BoardID == "" {
		p.BoardID = boardID
	}
	return &p, nil
}

// sortPosts orders by post_number, falling back to the id for numbers
// duplicated by older writers.
func sortPosts(posts []domain.Post, order SortOrder) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i], posts[j]
		if order == Descending {
			a, b = b, a
		}
		if a.PostNumber != b.PostNumber {
			return a.PostNumber < b.PostNumber
		}
		return a.ID < b.ID
	})
}
