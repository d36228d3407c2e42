package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathclub/festival-bbs/internal/auth"
	"github.com/mathclub/festival-bbs/internal/bbs"
	"github.com/mathclub/festival-bbs/internal/domain"
	"github.com/mathclub/festival-bbs/internal/export"
	"github.com/mathclub/festival-bbs/internal/storage"
	"github.com/mathclub/festival-bbs/internal/storage/inmemory"
)

const testSecret = "test-secret"

type testEnv struct {
	router http.Handler
	repos  *bbs.Repositories
	token  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	repos := bbs.New(storage.NewClient(inmemory.New()), bbs.DefaultSeeds(), nil, log)
	jwt := auth.New(testSecret)
	token, err := jwt.NewToken("moderator", time.Hour)
	require.NoError(t, err)

	router := NewRouter(Dependencies{
		Handler:        NewHandler(repos, 3, log),
		Admin:          jwt,
		AllowedOrigins: []string{"http://localhost:5173"},
		Log:            log,
	})
	return &testEnv{router: router, repos: repos, token: token}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

type postResult struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Post    domain.Post `json:"post"`
}

func TestListAndGetBoards(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/boards", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	boards := decode[struct {
		Boards []domain.Board `json:"boards"`
	}](t, rec)
	assert.Len(t, boards.Boards, len(bbs.DefaultSeeds()))

	rec = env.do(t, http.MethodGet, "/api/v1/boards/classroom", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "classroom", decode[domain.Board](t, rec).ID)

	rec = env.do(t, http.MethodGet, "/api/v1/boards/nonexistent-id", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePostAndPaging(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/v1/boards", nil, "")

	rec := env.do(t, http.MethodPost, "/api/v1/boards/classroom/posts", map[string]string{"author": "", "content": "hello"}, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	res := decode[postResult](t, rec)
	assert.True(t, res.Success)
	assert.Equal(t, bbs.DefaultAuthor, res.Post.Author)
	assert.EqualValues(t, 1, res.Post.PostNumber)

	for i := 0; i < 4; i++ {
		rec = env.do(t, http.MethodPost, "/api/v1/boards/classroom/posts", map[string]string{"content": "more"}, "")
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/boards/classroom/posts", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[domain.PostPage](t, rec)
	assert.Len(t, page.Posts, 3)
	assert.True(t, page.HasMore)
	assert.Equal(t, 5, page.TotalCount)
	assert.EqualValues(t, 5, page.Posts[0].PostNumber)

	rec = env.do(t, http.MethodGet, "/api/v1/boards/classroom/posts?offset=3&limit=3", nil, "")
	page = decode[domain.PostPage](t, rec)
	assert.Len(t, page.Posts, 2)
	assert.False(t, page.HasMore)

	rec = env.do(t, http.MethodGet, "/api/v1/boards/classroom/posts?offset=1&limit=9223372036854775807", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[domain.PostPage](t, rec)
	assert.Len(t, page.Posts, 4)
	assert.False(t, page.HasMore)

	rec = env.do(t, http.MethodGet, "/api/v1/boards/classroom/posts?offset=-1", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/boards/classroom/posts/all?order=desc", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[struct {
		Posts []domain.Post `json:"posts"`
	}](t, rec)
	require.Len(t, all.Posts, 5)
	assert.EqualValues(t, 5, all.Posts[0].PostNumber)

	rec = env.do(t, http.MethodGet, "/api/v1/metadata", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, decode[domain.Metadata](t, rec).TotalPosts)
}

func TestCreatePost_Failures(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/v1/boards", nil, "")
	require.NoError(t, env.repos.Boards.UpdateBoardStatus(context.Background(), "guestbook", domain.BoardArchived))

	tests := []struct {
		name  string
		board string
		body  any
		code  int
	}{
		{"empty content", "classroom", map[string]string{"content": ""}, http.StatusBadRequest},
		{"blank content", "classroom", map[string]string{"content": "   "}, http.StatusBadRequest},
		{"unknown board", "nope", map[string]string{"content": "x"}, http.StatusNotFound},
		{"archived board", "guestbook", map[string]string{"content": "x"}, http.StatusForbidden},
		{"bad json", "classroom", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/boards/"+tt.board+"/posts", tt.body, "")
			assert.Equal(t, tt.code, rec.Code)
			res := decode[postResult](t, rec)
			assert.False(t, res.Success)
			assert.NotEmpty(t, res.Error)
		})
	}
}

func TestAdmin_RequiresToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/admin/metadata/recompute", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/admin/metadata/recompute", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/admin/metadata/recompute", nil, env.token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdmin_UpdateBoardAndDeletePost(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/v1/boards", nil, "")

	rec := env.do(t, http.MethodPatch, "/api/v1/admin/boards/puzzles",
		map[string]string{"title": "Puzzles", "description": "New puzzles daily", "status": "closed"}, env.token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	board, err := env.repos.Boards.GetBoard(context.Background(), "puzzles")
	require.NoError(t, err)
	assert.Equal(t, "Puzzles", board.Title)
	assert.Equal(t, domain.BoardClosed, board.Status)

	rec = env.do(t, http.MethodPatch, "/api/v1/admin/boards/puzzles", map[string]string{"status": "frozen"}, env.token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPatch, "/api/v1/admin/boards/puzzles", map[string]string{}, env.token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPatch, "/api/v1/admin/boards/nope", map[string]string{"title": "x"}, env.token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	post, err := env.repos.Posts.CreatePost(context.Background(), domain.NewPost{BoardID: "classroom", Content: "bye"})
	require.NoError(t, err)

	rec = env.do(t, http.MethodDelete, "/api/v1/admin/boards/classroom/posts/"+post.ID, nil, env.token)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/v1/admin/boards/classroom/posts/"+post.ID, nil, env.token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin_UpdateBoardRejectsPartialPatch(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/v1/boards", nil, "")

	before, err := env.repos.Boards.GetBoard(context.Background(), "puzzles")
	require.NoError(t, err)
	require.NotNil(t, before)

	rec := env.do(t, http.MethodPatch, "/api/v1/admin/boards/puzzles",
		map[string]string{"title": "Half applied", "description": strings.Repeat("d", 600)}, env.token)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	after, err := env.repos.Boards.GetBoard(context.Background(), "puzzles")
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.Equal(t, before.Title, after.Title)
	assert.Equal(t, before.Description, after.Description)
}

func TestAdmin_Export(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/v1/boards", nil, "")
	_, err := env.repos.Posts.CreatePost(context.Background(), domain.NewPost{BoardID: "festival", Content: "see you"})
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/v1/admin/export", nil, env.token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))

	entries, err := export.Read(rec.Body)
	require.NoError(t, err)
	assert.Len(t, entries, len(bbs.DefaultSeeds())+1)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{storage.ErrTimeout, http.StatusServiceUnavailable},
		{&domain.ValidationError{Field: "content", Message: "must not be empty"}, http.StatusBadRequest},
		{domain.ErrPostNotFound, http.StatusNotFound},
		{auth.ErrNotAdmin, http.StatusForbidden},
		{io.EOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		code, msg := statusOf(tt.err)
		assert.Equal(t, tt.code, code, tt.err.Error())
		assert.NotEmpty(t, msg)
	}
}
