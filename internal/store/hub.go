package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/CristhianJ12/NewsApp/pkg/models"
)

type snapshotFunc func(q Query) ([]models.Document, error)

type subscriber struct {
	query Query
	ch    chan []models.Document
}

// offer replaces any snapshot the subscriber has not read yet.
func (s *subscriber) offer(docs []models.Document) {
	for {
		select {
		case s.ch <- docs:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// hub fans snapshots out to subscribers. Publishing and subscribing are
// serialized so no subscriber can miss a mutation.
type hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[*subscriber]struct{})}
}

func (h *hub) subscribe(ctx context.Context, q Query, snapshot snapshotFunc) (<-chan []models.Document, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	docs, err := snapshot(q)
	if err != nil {
		return nil, err
	}

	sub := &subscriber{query: q, ch: make(chan []models.Document, 1)}
	sub.ch <- docs
	h.subs[sub] = struct{}{}

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, sub)
		close(sub.ch)
		h.mu.Unlock()
	}()

	return sub.ch, nil
}

func (h *hub) publish(snapshot snapshotFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.subs) == 0 {
		return
	}

	cache := make(map[Query][]models.Document)
	for sub := range h.subs {
		docs, ok := cache[sub.query]
		if !ok {
			var err error
			docs, err = snapshot(sub.query)
			if err != nil {
				slog.Warn("failed to build snapshot", "query", sub.query.String(), "error", err)
				continue
			}
			cache[sub.query] = docs
		}
		sub.offer(docs)
	}
}

func (h *hub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
