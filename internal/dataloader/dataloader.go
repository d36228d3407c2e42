// Package dataloader batches board lookups made while resolving one GraphQL
// request.
package dataloader

import (
	"context"
	"net/http"
	"time"

	"github.com/graph-gophers/dataloader"

	"github.com/mathclub/festival-bbs/internal/domain"
)

type contextKey string

const key = contextKey("dataloaders")

// BoardBatcher loads many boards with one store read.
type BoardBatcher interface {
	GetBoardsByIDs(ctx context.Context, ids []string) (map[string]*domain.Board, error)
}

// Loaders holds the per-request loaders.
type Loaders struct {
	BoardByID *dataloader.Loader
}

// NewLoaders creates a fresh set of loaders. Loaders cache results, so they
// must not outlive a request.
func NewLoaders(boards BoardBatcher) *Loaders {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := keys.Keys()

		found, err := boards.GetBoardsByIDs(ctx, ids)
		results := make([]*dataloader.Result, len(keys))
		if err != nil {
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		// Results must line up with keys.
		for i, id := range ids {
			results[i] = &dataloader.Result{Data: found[id]}
		}
		return results
	}

	return &Loaders{
		BoardByID: dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(time.Millisecond)),
	}
}

// Middleware puts fresh loaders into every request context.
func Middleware(boards BoardBatcher, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), key, NewLoaders(boards))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// For returns the loaders of the request, or nil outside Middleware.
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(key).(*Loaders)
	return l
}

// LoadBoard resolves a board through the request loader. A missing board
// yields nil.
func LoadBoard(ctx context.Context, id string) (*domain.Board, error) {
	loaders := For(ctx)
	if loaders == nil {
		return nil, nil
	}
	v, err := loaders.BoardByID.Load(ctx, dataloader.StringKey(id))()
	if err != nil {
		return nil, err
	}
	board, _ := v.(*domain.Board)
	return board, nil
}
