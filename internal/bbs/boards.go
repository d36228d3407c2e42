package bbs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/mathclub/festival-bbs/internal/domain"
	"github.com/mathclub/festival-bbs/internal/storage"
)

const (
	systemUser           = "system"
	maxTitleLength       = 100
	maxDescriptionLength = 500
)

// BoardRepository reads and edits the board records.
type BoardRepository struct {
	store *storage.Client
	seeds []BoardSeed
	meta  *MetadataAggregator
	log   *slog.Logger
}

// NewBoardRepository creates a repository that bootstraps an empty store from seeds.
func NewBoardRepository(store *storage.Client, seeds []BoardSeed, meta *MetadataAggregator, log *slog.Logger) *BoardRepository {
	return &BoardRepository{
		store: store,
		seeds: seeds,
		meta:  meta,
		log:   log.With("component", "boards"),
	}
}

// ListBoards returns every board ordered for display. An empty store is
// seeded with the default boards first.
func (r *BoardRepository) ListBoards(ctx context.Context) ([]domain.Board, error) {
	boards, err := r.readBoards(ctx)
	if err != nil {
		r.log.Error("list boards failed", "error", err)
		return nil, err
	}
	if len(boards) == 0 {
		if _, err := r.Seed(ctx); err != nil {
			return nil, err
		}
		if boards, err = r.readBoards(ctx); err != nil {
			r.log.Error("list boards after seeding failed", "error", err)
			return nil, err
		}
	}
	sort.SliceStable(boards, func(i, j int) bool {
		if boards[i].Order != boards[j].Order {
			return boards[i].Order < boards[j].Order
		}
		return boards[i].ID < boards[j].ID
	})
	return boards, nil
}

// GetBoard returns nil without an error when the board does not exist.
func (r *BoardRepository) GetBoard(ctx context.Context, id string) (*domain.Board, error) {
	if !validID(id) {
		return nil, nil
	}
	snap, err := r.store.Get(ctx, boardPath(id))
	if err != nil {
		r.log.Error("get board failed", "board", id, "error", err)
		return nil, err
	}
	if !snap.Exists() {
		return nil, nil
	}
	return decodeBoard(snap)
}

// GetBoardsByIDs returns the boards found among ids, keyed by id.
func (r *BoardRepository) GetBoardsByIDs(ctx context.Context, ids []string) (map[string]*domain.Board, error) {
	boards, err := r.readBoards(ctx)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	out := make(map[string]*domain.Board, len(ids))
	for i := range boards {
		if _, ok := wanted[boards[i].ID]; ok {
			out[boards[i].ID] = &boards[i]
		}
	}
	return out, nil
}

// Seed creates every default board missing from the store and leaves existing
// ones untouched, also when another process seeds at the same time. It returns
// the number of boards created.
func (r *BoardRepository) Seed(ctx context.Context) (int, error) {
	created, err := storage.TransactResult(ctx, r.store, func(tx *storage.Tx) (int, error) {
		n := 0
		for _, s := range r.seeds {
			ok, err := tx.Create(boardPath(s.ID), map[string]any{
				"id":          s.ID,
				"title":       s.Title,
				"description": s.Description,
				"status":      domain.BoardOpen,
				"post_count":  0,
				"order":       s.Order,
				"created_at":  storage.ServerTimestamp,
				"created_by":  systemUser,
			})
			if err != nil {
				return 0, err
			}
			if ok {
				n++
			}
		}
		return n, nil
	})
	if err != nil {
		r.log.Error("seeding boards failed", "error", err)
		return 0, err
	}
	if created > 0 {
		r.log.Info("seeded default boards", "created", created)
		r.meta.Recompute(ctx)
	}
	return created, nil
}

// BoardPatch lists the board fields to change. Nil fields are left as they are.
type BoardPatch struct {
	Title       *string
	Description *string
	Status      *domain.BoardStatus
}

// fields validates every set field and returns them keyed by record field.
func (p BoardPatch) fields() (map[string]any, error) {
	out := make(map[string]any, 3)
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return nil, &domain.ValidationError{Field: "title", Message: "must not be empty"}
		}
		if utf8.RuneCountInString(title) > maxTitleLength {
			return nil, &domain.ValidationError{Field: "title", Message: fmt.Sprintf("must be at most %d characters", maxTitleLength)}
		}
		out["title"] = title
	}
	if p.Description != nil {
		description := strings.TrimSpace(*p.Description)
		if utf8.RuneCountInString(description) > maxDescriptionLength {
			return nil, &domain.ValidationError{Field: "description", Message: fmt.Sprintf("must be at most %d characters", maxDescriptionLength)}
		}
		out["description"] = description
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return nil, &domain.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", *p.Status)}
		}
		out["status"] = *p.Status
	}
	if len(out) == 0 {
		return nil, &domain.ValidationError{Field: "board", Message: "nothing to update"}
	}
	return out, nil
}

// UpdateBoard validates the whole patch and then applies it in one
// transaction, so either every field changes or none does.
func (r *BoardRepository) UpdateBoard(ctx context.Context, id string, patch BoardPatch) error {
	fields, err := patch.fields()
	if err != nil {
		return err
	}
	return r.updateFields(ctx, id, fields)
}

// UpdateBoardTitle replaces the display title.
func (r *BoardRepository) UpdateBoardTitle(ctx context.Context, id, title string) error {
	return r.UpdateBoard(ctx, id, BoardPatch{Title: &title})
}

// UpdateBoardDescription replaces the description shown under the title.
func (r *BoardRepository) UpdateBoardDescription(ctx context.Context, id, description string) error {
	return r.UpdateBoard(ctx, id, BoardPatch{Description: &description})
}

// UpdateBoardStatus opens, closes or archives a board. Only the submission
// form looks at the status; posting through the repository is not blocked.
func (r *BoardRepository) UpdateBoardStatus(ctx context.Context, id string, status domain.BoardStatus) error {
	return r.UpdateBoard(ctx, id, BoardPatch{Status: &status})
}

// updateFields overwrites board fields; concurrent edits are last-write-wins.
func (r *BoardRepository) updateFields(ctx context.Context, id string, fields map[string]any) error {
	if !validID(id) {
		return domain.ErrBoardNotFound
	}
	err := r.store.Transact(ctx, func(tx *storage.Tx) error {
		snap, err := tx.Get(boardPath(id))
		if err != nil {
			return err
		}
		if !snap.Exists() {
			return domain.ErrBoardNotFound
		}
		return tx.Update(boardPath(id), fields)
	})
	if err != nil {
		r.log.Error("board update failed", "board", id, "error", err)
		return err
	}
	r.meta.Recompute(ctx)
	return nil
}

func (r *BoardRepository) readBoards(ctx context.Context) ([]domain.Board, error) {
	snap, err := r.store.Get(ctx, boardsPath)
	if err != nil {
		return nil, err
	}
	children := snap.Children()
	boards := make([]domain.Board, 0, len(children))
	for _, child := range children {
		b, err := decodeBoard(child)
		if err != nil {
			return nil, err
		}
		boards = append(boards, *b)
	}
	return boards, nil
}

func decodeBoard(snap storage.Snapshot) (*domain.Board, error) {
	var b domain.Board
	if err := snap.Decode(&b); err != nil {
		return nil, err
	}
	if b.ID == "" {
		b.ID = snap.Key()
	}
	if b.Status == "" {
		b.Status = domain.BoardOpen
	}
	return &b, nil
}
