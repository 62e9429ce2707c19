package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/UkralStul/blogsphere/internal/domain"
)

// EventType names a change to a post's comment thread.
type EventType string

const (
	CommentCreated EventType = "comment.created"
	CommentUpdated EventType = "comment.updated"
	CommentDeleted EventType = "comment.deleted"
	ReplyCreated   EventType = "reply.created"
)

// Event is delivered to every subscriber of PostID.
type Event struct {
	Type      EventType       `json:"type"`
	PostID    string          `json:"postId"`
	CommentID string          `json:"commentId,omitempty"`
	Comment   *domain.Comment `json:"comment,omitempty"`
	Reply     *domain.Reply   `json:"reply,omitempty"`
}

// Publisher accepts events. Publishing never fails the caller's mutation.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

const subscriberBuffer = 16

// Hub fans events out to in-process subscribers, keyed by post.
type Hub struct {
	mu sync.RWMutex
	// post id -> subscriber id -> channel
	subs map[string]map[string]chan Event
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[string]chan Event)}
}

// Subscribe registers a listener for postID. The returned cancel func
// unregisters it and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(postID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	id := uuid.NewString()

	h.mu.Lock()
	if h.subs[postID] == nil {
		h.subs[postID] = make(map[string]chan Event)
	}
	h.subs[postID][id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if postSubs, ok := h.subs[postID]; ok {
				delete(postSubs, id)
				if len(postSubs) == 0 {
					delete(h.subs, postID)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers e to the current subscribers of its post. A subscriber
// whose buffer is full misses the event.
func (h *Hub) Publish(_ context.Context, e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs[e.PostID] {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribers reports how many listeners postID has.
func (h *Hub) Subscribers(postID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[postID])
}
