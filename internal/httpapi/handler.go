package httpapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mathclub/festival-bbs/internal/bbs"
	"github.com/mathclub/festival-bbs/internal/domain"
	"github.com/mathclub/festival-bbs/internal/export"
)

type Handler struct {
	repos    *bbs.Repositories
	pageSize int
	log      *slog.Logger
}

func NewHandler(repos *bbs.Repositories, pageSize int, log *slog.Logger) *Handler {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Handler{repos: repos, pageSize: pageSize, log: log.With("component", "httpapi")}
}

type createPostRequest struct {
	Author  string `json:"author" validate:"max=200"`
	Content string `json:"content" validate:"required"`
}

type updateBoardRequest struct {
	Title       *string             `json:"title" validate:"omitnil,min=1,max=200"`
	Description *string             `json:"description" validate:"omitnil,max=1000"`
	Status      *domain.BoardStatus `json:"status" validate:"omitnil,oneof=open closed archived"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handler) ListBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := h.repos.Boards.ListBoards(r.Context())
	if err != nil {
		WriteErrorAndStatusCode(w, err)
		return
	}
	writeJSON(w, map[string]any{"boards": boards})
}

func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	board, err := h.repos.Boards.GetBoard(r.Context(), chi.URLParam(r, "boardID"))
	if err != nil {
		WriteErrorAndStatusCode(w, err)
		return
	}
	if board == nil {
		WriteErrorAndStatusCode(w, domain.ErrBoardNotFound)
		return
	}
	writeJSON(w, board)
}

// ListPostsPaged serves ?offset=&limit=, newest first.
func (h *Handler) ListPostsPaged(w http.ResponseWriter, r *http.Request) {
	offset, err := parseIntParam(r.URL.Query().Get("offset"), "offset", 0)
	if err != nil {
		WriteErrorAndStatusCode(w, err)
		return
	}
	limit, err := parseIntParam(r.URL.Query().Get("limit"), "limit", h.pageSize)
	if err != nil {
		WriteErrorAndStatusCode(w, err)
		return
	}

	page, err := h.repos.Posts.ListPostsPaged(r.Context(), chi.URLParam(r, "boardID"), offset, limit)
	if err != nil {
		WriteErrorAndStatusCode(w, err)
		return
	}
	writeJSON(w, page)
}

// ListAllPosts serves every post of a board; ?order=asc|desc, ascending by default.
func (h *Handler) ListAllPosts(w http.ResponseWriter, r *http.Request) {
	order := bbs.Ascending
	switch r.URL.Query().Get("order") {
	case "", "asc":
	case "desc":
		order = bbs.Descending
	default:
		WriteErrorAndStatusCode(w, &ErrorWithStatusCode{Message: "order must be asc or desc", StatusCode: http.StatusBadRequest})
		return
	}

	posts, err := h.repos.Posts.ListPosts(r.Context(), chi.URLParam(r, "boardID"), order)
	if err != nil {
		WriteErrorAndStatusCode(w, err)
		return
	}
	writeJSON(w, map[string]any{"posts": posts})
}

// CreatePost is the submission form endpoint. Closed and archived boards are
// refused here; the repository itself does not look at the status.
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var body createPostRequest
	if err := DecodeValidate(r.Body, &body); err != nil {
		writeMutationError(w, err)
		return
	}

	boardID := chi.URLParam(r, "boardID")
	board, err := h.repos.Boards.GetBoard(r.Context(), boardID)
	if err != nil {
		writeMutationError(w, err)
		return
	}
	if board == nil {
		writeMutationError(w, domain.ErrBoardNotFound)
		return
	}
	if !board.Status.AcceptsPosts() {
		writeMutationError(w, domain.ErrBoardNotAccepting)
		return
	}

	post, err := h.repos.Posts.CreatePost(r.Context(), domain.NewPost{
		BoardID: boardID,
		Author:  body.Author,
		Content: body.Content,
	})
	if err != nil {
		writeMutationError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, mutationResult{Success: true, Post: post})
}

func (h *Handler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	md, err := h.repos.Metadata.Get(r.Context())
	if err != nil {
		WriteErrorAndStatusCode(w, err)
		return
	}
	if md == nil {
		md = &domain.Metadata{}
	}
	writeJSON(w, md)
}

// === Admin ===

func (h *Handler) UpdateBoard(w http.ResponseWriter, r *http.Request) {
	var body updateBoardRequest
	if err := DecodeValidate(r.Body, &body); err != nil {
		writeMutationError(w, err)
		return
	}
	if body.Title == nil && body.Description == nil && body.Status == nil {
		writeMutationError(w, &ErrorWithStatusCode{Message: "nothing to update", StatusCode: http.StatusBadRequest})
		return
	}

	ctx := r.Context()
	boardID := chi.URLParam(r, "boardID")
	patch := bbs.BoardPatch{Title: body.Title, Description: body.Description, Status: body.Status}
	if err := h.repos.Boards.UpdateBoard(ctx, boardID, patch); err != nil {
		writeMutationError(w, err)
		return
	}

	if admin := AdminFromContext(ctx); admin != nil {
		h.log.Info("board updated", "board", boardID, "admin", admin.Subject)
	}
	writeJSON(w, mutationResult{Success: true})
}

func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	boardID, postID := chi.URLParam(r, "boardID"), chi.URLParam(r, "postID")
	if err := h.repos.Posts.DeletePost(r.Context(), boardID, postID); err != nil {
		writeMutationError(w, err)
		return
	}
	if admin := AdminFromContext(r.Context()); admin != nil {
		h.log.Info("post deleted by admin", "board", boardID, "post", postID, "admin", admin.Subject)
	}
	writeJSON(w, mutationResult{Success: true})
}

func (h *Handler) RecomputeMetadata(w http.ResponseWriter, r *http.Request) {
	h.repos.Metadata.Recompute(r.Context())
	h.GetMetadata(w, r)
}

// Export streams every board and post as zstd-compressed JSON lines.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	name := fmt.Sprintf("bbs-%s.jsonl.zst", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))

	lines, err := export.Boards(r.Context(), h.repos.Boards, h.repos.Posts, w)
	if err != nil {
		// Headers are gone by now; the truncated body is all the client gets.
		h.log.Error("export failed", "lines", lines, "error", err)
		return
	}
	h.log.Info("export written", "lines", lines)
}

func parseIntParam(raw, name string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, &ErrorWithStatusCode{Message: fmt.Sprintf("%s must be a non-negative integer", name), StatusCode: http.StatusBadRequest}
	}
	return v, nil
}
