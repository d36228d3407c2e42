package graph

import (
	"github.com/graphql-go/graphql"

	"github.com/mathclub/festival-bbs/internal/dataloader"
	"github.com/mathclub/festival-bbs/internal/domain"
)

// === Board fields ===

func boardStatusField(p graphql.ResolveParams) (interface{}, error) {
	if b, ok := p.Source.(*domain.Board); ok {
		return string(b.Status), nil
	}
	return nil, nil
}

func boardCreatedAt(p graphql.ResolveParams) (interface{}, error) {
	if b, ok := p.Source.(*domain.Board); ok && b.CreatedAt > 0 {
		return b.Created(), nil
	}
	return nil, nil
}

// boardPostsField pages through the posts of the parent board.
func boardPostsField(r *Resolver, pageType *graphql.Object) *graphql.Field {
	return &graphql.Field{
		Type: graphql.NewNonNull(pageType),
		Args: pageArgs(r),
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			b, ok := p.Source.(*domain.Board)
			if !ok {
				return nil, nil
			}
			return r.Repos.Posts.ListPostsPaged(p.Context, b.ID, p.Args["offset"].(int), p.Args["limit"].(int))
		},
	}
}

// === Post fields ===

func postCreatedAt(p graphql.ResolveParams) (interface{}, error) {
	if post, ok := sourcePost(p.Source); ok && post.CreatedAt > 0 {
		return post.Created(), nil
	}
	return nil, nil
}

// postBoardField goes through the request dataloader so a page of posts
// costs one board read.
func postBoardField(boardType *graphql.Object) *graphql.Field {
	return &graphql.Field{
		Type: boardType,
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			post, ok := sourcePost(p.Source)
			if !ok {
				return nil, nil
			}
			board, err := dataloader.LoadBoard(p.Context, post.BoardID)
			if err != nil || board == nil {
				return nil, err
			}
			return board, nil
		},
	}
}

// sourcePost accepts both list elements and single posts.
func sourcePost(src interface{}) (*domain.Post, bool) {
	switch v := src.(type) {
	case domain.Post:
		return &v, true
	case *domain.Post:
		return v, v != nil
	}
	return nil, false
}

func metadataUpdated(p graphql.ResolveParams) (interface{}, error) {
	if md, ok := p.Source.(*domain.Metadata); ok && md.LastUpdated > 0 {
		return md.Updated(), nil
	}
	return nil, nil
}

// === Queries ===

func getBoardsQuery(r *Resolver, boardType *graphql.Object) *graphql.Field {
	return &graphql.Field{
		Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(boardType))),
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			boards, err := r.Repos.Boards.ListBoards(p.Context)
			if err != nil {
				return nil, err
			}
			out := make([]*domain.Board, len(boards))
			for i := range boards {
				out[i] = &boards[i]
			}
			return out, nil
		},
	}
}

func getBoardQuery(r *Resolver, boardType *graphql.Object) *graphql.Field {
	return &graphql.Field{
		Type: boardType,
		Args: graphql.FieldConfigArgument{
			"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
		},
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			board, err := r.Repos.Boards.GetBoard(p.Context, p.Args["id"].(string))
			if err != nil || board == nil {
				return nil, err
			}
			return board, nil
		},
	}
}

func getPostsQuery(r *Resolver, pageType *graphql.Object) *graphql.Field {
	args := pageArgs(r)
	args["boardId"] = &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)}
	return &graphql.Field{
		Type: graphql.NewNonNull(pageType),
		Args: args,
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			return r.Repos.Posts.ListPostsPaged(
				p.Context,
				p.Args["boardId"].(string),
				p.Args["offset"].(int),
				p.Args["limit"].(int),
			)
		},
	}
}

func getPostQuery(r *Resolver, postType *graphql.Object) *graphql.Field {
	return &graphql.Field{
		Type: postType,
		Args: graphql.FieldConfigArgument{
			"boardId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
			"id":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
		},
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			post, err := r.Repos.Posts.GetPost(p.Context, p.Args["boardId"].(string), p.Args["id"].(string))
			if err != nil || post == nil {
				return nil, err
			}
			return post, nil
		},
	}
}

func getMetadataQuery(r *Resolver, metadataType *graphql.Object) *graphql.Field {
	return &graphql.Field{
		Type: metadataType,
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			md, err := r.Repos.Metadata.Get(p.Context)
			if err != nil || md == nil {
				return nil, err
			}
			return md, nil
		},
	}
}

func pageArgs(r *Resolver) graphql.FieldConfigArgument {
	limit := r.DefaultPage
	if limit <= 0 {
		limit = 20
	}
	return graphql.FieldConfigArgument{
		"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
		"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: limit},
	}
}

// === Mutations ===

func createPostMutation(r *Resolver, postType *graphql.Object) *graphql.Field {
	return &graphql.Field{
		Type: postType,
		Args: graphql.FieldConfigArgument{
			"boardId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
			"author":  &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
			"content": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
		},
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			author, _ := p.Args["author"].(string)
			return r.submitPost(p.Context, domain.NewPost{
				BoardID: p.Args["boardId"].(string),
				Author:  author,
				Content: p.Args["content"].(string),
			})
		},
	}
}
