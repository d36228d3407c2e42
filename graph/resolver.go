package graph

import (
	"context"
	"log/slog"

	"github.com/mathclub/festival-bbs/internal/bbs"
	"github.com/mathclub/festival-bbs/internal/domain"
)

// Resolver holds everything the GraphQL resolvers need.
type Resolver struct {
	Repos       *bbs.Repositories
	DefaultPage int
	Log         *slog.Logger
}

// submitPost applies the submission form rules on top of the repository:
// only open boards take new posts.
func (r *Resolver) submitPost(ctx context.Context, in domain.NewPost) (*domain.Post, error) {
	board, err := r.Repos.Boards.GetBoard(ctx, in.BoardID)
	if err != nil {
		return nil, err
	}
	if board == nil {
		return nil, domain.ErrBoardNotFound
	}
	if !board.Status.AcceptsPosts() {
		return nil, domain.ErrBoardNotAccepting
	}
	return r.Repos.Posts.CreatePost(ctx, in)
}
