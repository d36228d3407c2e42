package graph

import (
	"time"

	"github.com/graphql-go/graphql"
)

var DateTime = graphql.NewScalar(
	graphql.ScalarConfig{
		Name:        "DateTime",
		Description: "DateTime scalar type",
		Serialize: func(value interface{}) interface{} {
			switch v := value.(type) {
			case time.Time:
				return v.Format(time.RFC3339)
			case *time.Time:
				return v.Format(time.RFC3339)
			default:
				return nil
			}
		},
	},
)

var boardStatus = graphql.NewEnum(graphql.EnumConfig{
	Name: "BoardStatus",
	Values: graphql.EnumValueConfigMap{
		"OPEN":     &graphql.EnumValueConfig{Value: "open"},
		"CLOSED":   &graphql.EnumValueConfig{Value: "closed"},
		"ARCHIVED": &graphql.EnumValueConfig{Value: "archived"},
	},
})

// NewSchema builds the executable schema over r.
func NewSchema(r *Resolver) (graphql.Schema, error) {
	postType := graphql.NewObject(
		graphql.ObjectConfig{
			Name: "Post",
			Fields: graphql.Fields{
				"id":         &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
				"boardId":    &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
				"author":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
				"content":    &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
				"postNumber": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
				"createdAt":  &graphql.Field{Type: DateTime, Resolve: postCreatedAt},
			},
		},
	)

	pageType := graphql.NewObject(
		graphql.ObjectConfig{
			Name: "PostPage",
			Fields: graphql.Fields{
				"posts":      &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(postType)))},
				"hasMore":    &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
				"totalCount": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			},
		},
	)

	boardType := graphql.NewObject(
		graphql.ObjectConfig{
			Name: "Board",
			Fields: graphql.Fields{
				"id":          &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
				"title":       &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
				"description": &graphql.Field{Type: graphql.String},
				"status":      &graphql.Field{Type: graphql.NewNonNull(boardStatus), Resolve: boardStatusField},
				"postCount":   &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
				"order":       &graphql.Field{Type: graphql.Int},
				"createdAt":   &graphql.Field{Type: DateTime, Resolve: boardCreatedAt},
				"createdBy":   &graphql.Field{Type: graphql.String},
				"posts":       boardPostsField(r, pageType),
			},
		},
	)

	// Post.board refers back to Board, so it is added once both exist.
	postType.AddFieldConfig("board", postBoardField(boardType))

	metadataType := graphql.NewObject(
		graphql.ObjectConfig{
			Name: "Metadata",
			Fields: graphql.Fields{
				"totalBoards": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
				"totalPosts":  &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
				"lastUpdated": &graphql.Field{Type: DateTime, Resolve: metadataUpdated},
			},
		},
	)

	queryType := graphql.NewObject(
		graphql.ObjectConfig{
			Name: "Query",
			Fields: graphql.Fields{
				"boards":   getBoardsQuery(r, boardType),
				"board":    getBoardQuery(r, boardType),
				"posts":    getPostsQuery(r, pageType),
				"post":     getPostQuery(r, postType),
				"metadata": getMetadataQuery(r, metadataType),
			},
		},
	)

	mutationType := graphql.NewObject(
		graphql.ObjectConfig{
			Name: "Mutation",
			Fields: graphql.Fields{
				"createPost": createPostMutation(r, postType),
			},
		},
	)

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}
