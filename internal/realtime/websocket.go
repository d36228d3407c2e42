package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/mathclub/festival-bbs/internal/domain"
	"github.com/mathclub/festival-bbs/internal/metrics"
)

const (
	KeepAlivePingInterval = 10 * time.Second
	writeWait             = 5 * time.Second
	subscriberBuffer      = 16
)

// BoardLookup reports whether a board exists.
type BoardLookup interface {
	GetBoard(ctx context.Context, id string) (*domain.Board, error)
}

// Message is one frame sent to the browser.
type Message struct {
	Type string       `json:"type"`
	Post *domain.Post `json:"post,omitempty"`
}

// Handler streams new posts of the board named by the {boardID} URL
// parameter over a websocket.
type Handler struct {
	observer *Observer
	boards   BoardLookup
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewHandler(observer *Observer, boards BoardLookup, checkOrigin func(*http.Request) bool, log *slog.Logger) *Handler {
	return &Handler{
		observer: observer,
		boards:   boards,
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		log:      log.With("component", "realtime"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	boardID := chi.URLParam(r, "boardID")
	board, err := h.boards.GetBoard(r.Context(), boardID)
	if err != nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	if board == nil {
		http.Error(w, "board not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "board", boardID, "error", err)
		return
	}
	defer conn.Close()

	feed, unsubscribe := h.observer.Subscribe(boardID, subscriberBuffer)
	defer unsubscribe()
	metrics.SubscriberJoined()
	defer metrics.SubscriberLeft()
	h.log.Debug("subscriber joined", "board", boardID)

	closed := make(chan struct{})
	go readLoop(conn, closed)

	ticker := time.NewTicker(KeepAlivePingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			h.log.Debug("subscriber left", "board", boardID)
			return
		case post, ok := <-feed:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(Message{Type: "post", Post: &post}); err != nil {
				h.log.Debug("write to subscriber failed", "board", boardID, "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop drains control frames until the peer goes away.
func readLoop(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}
