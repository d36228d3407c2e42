// Package realtime fans newly created posts out to live subscribers.
package realtime

import (
	"sync"

	"github.com/google/uuid"

	"github.com/mathclub/festival-bbs/internal/domain"
)

// Observer keeps one buffered channel per subscriber, grouped by board.
type Observer struct {
	mu sync.RWMutex
	//   map[boardID] map[subscriberID] channel
	subs map[string]map[string]chan domain.Post
}

func NewObserver() *Observer {
	return &Observer{
		subs: make(map[string]map[string]chan domain.Post),
	}
}

// Subscribe registers a new feed for boardID. The returned function removes
// it and closes the channel; it is safe to call more than once.
func (o *Observer) Subscribe(boardID string, buffer int) (<-chan domain.Post, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan domain.Post, buffer)
	subID := uuid.NewString()

	o.mu.Lock()
	if o.subs[boardID] == nil {
		o.subs[boardID] = make(map[string]chan domain.Post)
	}
	o.subs[boardID][subID] = ch
	o.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { o.unsubscribe(boardID, subID) })
	}
}

func (o *Observer) unsubscribe(boardID, subID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	boardSubs, ok := o.subs[boardID]
	if !ok {
		return
	}
	if ch, ok := boardSubs[subID]; ok {
		close(ch)
		delete(boardSubs, subID)
	}
	if len(boardSubs) == 0 {
		delete(o.subs, boardID)
	}
}

// PublishPost delivers post to every subscriber of its board. Subscribers
// that are not keeping up miss the post.
func (o *Observer) PublishPost(post domain.Post) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, ch := range o.subs[post.BoardID] {
		select {
		case ch <- post:
		default:
		}
	}
}

// Subscribers returns the number of open feeds for boardID.
func (o *Observer) Subscribers(boardID string) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.subs[boardID])
}
