// Package export dumps boards and their posts as zstd-compressed JSON lines.
package export

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/mathclub/festival-bbs/internal/bbs"
	"github.com/mathclub/festival-bbs/internal/domain"
)

const ContentType = "application/zstd"

type BoardLister interface {
	ListBoards(ctx context.Context) ([]domain.Board, error)
}

type PostLister interface {
	ListPosts(ctx context.Context, boardID string, order bbs.SortOrder) ([]domain.Post, error)
}

// Entry is one line of an export.
type Entry struct {
	Type  string        `json:"type"`
	Board *domain.Board `json:"board,omitempty"`
	Post  *domain.Post  `json:"post,omitempty"`
}

// JSONLZstdWriter writes one JSON document per line through a zstd encoder.
type JSONLZstdWriter struct {
	enc *zstd.Encoder
	w   *bufio.Writer
}

func NewJSONLZstdWriter(dst io.Writer) (*JSONLZstdWriter, error) {
	enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	return &JSONLZstdWriter{enc: enc, w: bufio.NewWriterSize(enc, 64*1024)}, nil
}

func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Close flushes buffered lines and finishes the zstd frame. It does not close
// the underlying writer.
func (w *JSONLZstdWriter) Close() error {
	if err := w.w.Flush(); err != nil {
		_ = w.enc.Close()
		return err
	}
	return w.enc.Close()
}

// Boards writes every board followed by its posts in post_number order. It
// returns the number of lines written.
func Boards(ctx context.Context, boardsSrc BoardLister, postsSrc PostLister, dst io.Writer) (int, error) {
	boards, err := boardsSrc.ListBoards(ctx)
	if err != nil {
		return 0, fmt.Errorf("list boards: %w", err)
	}

	w, err := NewJSONLZstdWriter(dst)
	if err != nil {
		return 0, err
	}

	lines := 0
	for i := range boards {
		if err := ctx.Err(); err != nil {
			_ = w.Close()
			return lines, err
		}
		if err := w.Write(Entry{Type: "board", Board: &boards[i]}); err != nil {
			_ = w.Close()
			return lines, err
		}
		lines++

		posts, err := postsSrc.ListPosts(ctx, boards[i].ID, bbs.Ascending)
		if err != nil {
			_ = w.Close()
			return lines, fmt.Errorf("list posts of %s: %w", boards[i].ID, err)
		}
		for j := range posts {
			if err := w.Write(Entry{Type: "post", Post: &posts[j]}); err != nil {
				_ = w.Close()
				return lines, err
			}
			lines++
		}
	}
	return lines, w.Close()
}

// Read decodes an export produced by Boards.
func Read(src io.Reader) ([]Entry, error) {
	dec, err := zstd.NewReader(src)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []Entry
	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("line %d: %w", len(out)+1, err)
		}
		out = append(out, e)
	}
	return out, scanner.Err()
}
