package notice

import (
	"context"
	"fmt"
	"sync"

	"github.com/justchokingaround/shikiplay/internal/database"
)

// QueueKey is where the queue lives in the store
const QueueKey = "runtimeMessages"

// Color is the severity a notice is rendered with
type Color string

const (
	ColorInfo    Color = "info"
	ColorSuccess Color = "success"
	ColorWarning Color = "warning"
	ColorError   Color = "error"
)

// Notice is one user-facing message
type Notice struct {
	// ID, when set, makes the notice unique in the queue
	ID      string         `json:"id,omitempty"`
	Text    string         `json:"html"`
	Color   Color          `json:"color,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Queue is a persisted FIFO of notices
type Queue struct {
	store database.Store
	mu    sync.Mutex
}

// NewQueue creates a queue over store
func NewQueue(store database.Store) *Queue {
	return &Queue{store: store}
}

// Push appends n. Queued notices sharing n's non-empty ID are dropped first,
// so the newest payload replaces the old one.
func (q *Queue) Push(ctx context.Context, n Notice) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	queued, err := q.load(ctx)
	if err != nil {
		return err
	}

	if n.ID != "" {
		kept := queued[:0]
		for _, m := range queued {
			if m.ID != n.ID {
				kept = append(kept, m)
			}
		}
		queued = kept
	}

	queued = append(queued, n)
	return q.store.Set(ctx, QueueKey, queued)
}

// Shift removes and returns the oldest notice, or nil when empty
func (q *Queue) Shift(ctx context.Context) (*Notice, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	queued, err := q.load(ctx)
	if err != nil {
		return nil, err
	}
	if len(queued) == 0 {
		return nil, nil
	}

	head := queued[0]
	if err := q.store.Set(ctx, QueueKey, queued[1:]); err != nil {
		return nil, err
	}
	return &head, nil
}

// List returns the queued notices without removing them
func (q *Queue) List(ctx context.Context) ([]Notice, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load(ctx)
}

func (q *Queue) load(ctx context.Context) ([]Notice, error) {
	var queued []Notice
	if _, err := q.store.Get(ctx, QueueKey, &queued); err != nil {
		return nil, fmt.Errorf("failed to load notices: %w", err)
	}
	return queued, nil
}
