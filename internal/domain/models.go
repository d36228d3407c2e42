package domain

import "time"

// BoardStatus controls whether the submission form is offered for a board.
type BoardStatus string

const (
	BoardOpen     BoardStatus = "open"
	BoardClosed   BoardStatus = "closed"
	BoardArchived BoardStatus = "archived"
)

// Valid reports whether s is one of the known statuses.
func (s BoardStatus) Valid() bool {
	switch s {
	case BoardOpen, BoardClosed, BoardArchived:
		return true
	}
	return false
}

// AcceptsPosts reports whether new posts may be submitted through the normal flow.
func (s BoardStatus) AcceptsPosts() bool {
	return s == BoardOpen
}

// Board is one discussion thread of the bulletin board.
// PostCount is a high-water mark: it only grows and is the source of the next post number.
type Board struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Status      BoardStatus `json:"status"`
	PostCount   int64       `json:"post_count"`
	Order       int         `json:"order"`
	CreatedAt   int64       `json:"created_at"` // unix millis, server assigned
	CreatedBy   string      `json:"created_by"`
}

// Created returns the creation time of the board.
func (b *Board) Created() time.Time {
	return time.UnixMilli(b.CreatedAt).UTC()
}

// Post is one message within a board.
type Post struct {
	ID         string `json:"id"`
	BoardID    string `json:"board_id"`
	Author     string `json:"author"`
	Content    string `json:"content"`
	CreatedAt  int64  `json:"created_at"`
	PostNumber int64  `json:"post_number"`
}

// Created returns the creation time of the post.
func (p *Post) Created() time.Time {
	return time.UnixMilli(p.CreatedAt).UTC()
}

// NewPost is what a visitor submits through the form.
type NewPost struct {
	BoardID string
	Author  string
	Content string
}

// PostPage is one newest-first slice of a board's posts.
type PostPage struct {
	Posts      []Post `json:"posts"`
	HasMore    bool   `json:"has_more"`
	TotalCount int    `json:"total_count"`
}

// Metadata holds the derived totals shown on the admin dashboard.
type Metadata struct {
	TotalBoards int   `json:"total_boards"`
	TotalPosts  int   `json:"total_posts"`
	LastUpdated int64 `json:"last_updated"`
}

// Updated returns the time metadata was last recomputed.
func (m *Metadata) Updated() time.Time {
	return time.UnixMilli(m.LastUpdated).UTC()
}
