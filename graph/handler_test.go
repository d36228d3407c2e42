package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathclub/festival-bbs/internal/bbs"
	"github.com/mathclub/festival-bbs/internal/dataloader"
	"github.com/mathclub/festival-bbs/internal/domain"
	"github.com/mathclub/festival-bbs/internal/storage"
	"github.com/mathclub/festival-bbs/internal/storage/inmemory"
)

type gqlResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func newTestServer(t *testing.T) (*httptest.Server, *bbs.Repositories) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	repos := bbs.New(storage.NewClient(inmemory.New()), bbs.DefaultSeeds(), nil, log)
	_, err := repos.Boards.Seed(context.Background())
	require.NoError(t, err)

	h, err := NewHandler(&Resolver{Repos: repos, DefaultPage: 2, Log: log})
	require.NoError(t, err)
	srv := httptest.NewServer(dataloader.Middleware(repos.Boards, h))
	t.Cleanup(srv.Close)
	return srv, repos
}

func do(t *testing.T, srv *httptest.Server, query string, vars map[string]any) gqlResponse {
	t.Helper()
	body, err := json.Marshal(map[string]any{"query": query, "variables": vars})
	require.NoError(t, err)
	resp, err := http.Post(srv.URL, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out gqlResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestQuery_Boards(t *testing.T) {
	srv, _ := newTestServer(t)

	res := do(t, srv, `{ boards { id title status postCount createdAt } }`, nil)
	require.Empty(t, res.Errors)

	var boards []struct {
		ID        string `json:"id"`
		Status    string `json:"status"`
		PostCount int    `json:"postCount"`
		CreatedAt string `json:"createdAt"`
	}
	require.NoError(t, json.Unmarshal(res.Data["boards"], &boards))
	require.Len(t, boards, len(bbs.DefaultSeeds()))
	assert.Equal(t, "classroom", boards[0].ID)
	assert.Equal(t, "OPEN", boards[0].Status)
	assert.NotEmpty(t, boards[0].CreatedAt)
}

func TestQuery_MissingBoardIsNull(t *testing.T) {
	srv, _ := newTestServer(t)

	res := do(t, srv, `query($id: ID!) { board(id: $id) { id } }`, map[string]any{"id": "nonexistent-id"})
	require.Empty(t, res.Errors)
	assert.JSONEq(t, "null", string(res.Data["board"]))
}

func TestMutation_CreatePostAndPage(t *testing.T) {
	srv, _ := newTestServer(t)

	create := `mutation($b: ID!, $c: String!) { createPost(boardId: $b, content: $c) { postNumber author board { id } } }`
	for i := 0; i < 3; i++ {
		res := do(t, srv, create, map[string]any{"b": "classroom", "c": "hello"})
		require.Empty(t, res.Errors)
	}

	res := do(t, srv, create, map[string]any{"b": "classroom", "c": "again"})
	var post struct {
		PostNumber int    `json:"postNumber"`
		Author     string `json:"author"`
		Board      struct {
			ID string `json:"id"`
		} `json:"board"`
	}
	require.NoError(t, json.Unmarshal(res.Data["createPost"], &post))
	assert.Equal(t, 4, post.PostNumber)
	assert.Equal(t, bbs.DefaultAuthor, post.Author)
	assert.Equal(t, "classroom", post.Board.ID)

	res = do(t, srv, `{ posts(boardId: "classroom") { hasMore totalCount posts { postNumber } } }`, nil)
	require.Empty(t, res.Errors)
	var page struct {
		HasMore    bool `json:"hasMore"`
		TotalCount int  `json:"totalCount"`
		Posts      []struct {
			PostNumber int `json:"postNumber"`
		} `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(res.Data["posts"], &page))
	assert.True(t, page.HasMore)
	assert.Equal(t, 4, page.TotalCount)
	require.Len(t, page.Posts, 2)
	assert.Equal(t, 4, page.Posts[0].PostNumber)
}

func TestMutation_ClosedBoardRejectsPosts(t *testing.T) {
	srv, repos := newTestServer(t)
	require.NoError(t, repos.Boards.UpdateBoardStatus(context.Background(), "guestbook", domain.BoardClosed))

	res := do(t, srv, `mutation { createPost(boardId: "guestbook", content: "hi") { id } }`, nil)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0].Message, "not accepting posts")
}

func TestMutation_EmptyContentRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	res := do(t, srv, `mutation { createPost(boardId: "classroom", content: "   ") { id } }`, nil)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0].Message, "content")
}

func TestHandler_RejectsBadRequests(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Post(srv.URL, "application/json", bytes.NewBufferString("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
