// Package events carries notifications between the refresh pipeline and
// its listeners (notifier, HTTP stream, scheduler logs).
package events

import (
	"sync"
	"time"

	"github.com/CristhianJ12/NewsApp/pkg/models"
)

// Event is IngestionCompleteEvent or SweepCompleteEvent.
type Event interface {
	isEvent()
}

// IngestionCompleteEvent is sent when a refresh or replay finishes writing to the store.
type IngestionCompleteEvent struct {
	Replay        bool              // true when bodies came from the raw feed archive
	Sources       int               // sources that were queried
	FailedSources []string          // "name: error" per failed source
	DocsFetched   int               // documents produced by normalization
	DocsStored    int               // distinct documents written
	NewDocuments  []models.Document // documents that were not stored before this run
	DocsArchived  int               // documents indexed in the long-term archive
	Duration      time.Duration     // how long the run took
	Timestamp     time.Time         // when the run completed
}

// SweepCompleteEvent is sent after expired documents are removed.
type SweepCompleteEvent struct {
	Removed   int
	Timestamp time.Time
}

func (IngestionCompleteEvent) isEvent() {}
func (SweepCompleteEvent) isEvent()     {}

// Listener receives events synchronously, in publish order.
type Listener func(Event)

// Bus fans events out to listeners.
type Bus struct {
	mu        sync.RWMutex
	listeners []Listener
}

// Subscribe registers l for every later event.
func (b *Bus) Subscribe(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Publish delivers e to every listener.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	listeners := b.listeners
	b.mu.RUnlock()

	for _, l := range listeners {
		l(e)
	}
}
