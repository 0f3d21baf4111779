// Package store keeps the daily document collection and the saved collection.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/CristhianJ12/NewsApp/pkg/models"
)

// DefaultSearchLimit is used when Search is called with a non-positive limit.
const DefaultSearchLimit = 20

// ErrNotFound is returned when a mutation targets a document that does not exist.
var ErrNotFound = errors.New("document not found")

// Store is implemented by MemoryStore and PostgresStore.
type Store interface {
	// Subscribe pushes the current snapshot of q and a new one after every
	// mutation. The channel is closed when ctx is cancelled.
	Subscribe(ctx context.Context, q Query) (<-chan []models.Document, error)

	Get(ctx context.Context, id string) (*models.Document, error)
	All(ctx context.Context) ([]models.Document, error)
	ByCategory(ctx context.Context, cat models.Category) ([]models.Document, error)
	Recent(ctx context.Context, since time.Time) ([]models.Document, error)
	Search(ctx context.Context, query string, limit int) ([]models.Document, error)
	Count(ctx context.Context) (int, error)
	CountByCategory(ctx context.Context, cat models.Category) (int, error)
	Saved(ctx context.Context) ([]models.SavedDocument, error)
	Stats(ctx context.Context, now time.Time) (models.Stats, error)

	Upsert(ctx context.Context, doc models.Document) error
	UpsertAll(ctx context.Context, docs []models.Document) error
	MarkConsulted(ctx context.Context, id string) error
	SetSummary(ctx context.Context, id, summary string) error
	SetSaved(ctx context.Context, id string, saved bool) error
	Save(ctx context.Context, doc models.Document) error
	Unsave(ctx context.Context, id string) error
	Sweep(ctx context.Context, now time.Time) (int, error)

	Close() error
}

type queryKind int

const (
	queryAll queryKind = iota
	queryCategory
	querySaved
)

// Query selects the snapshot a subscription receives.
type Query struct {
	kind     queryKind
	category models.Category
}

// AllQuery selects every document in the daily collection.
func AllQuery() Query { return Query{kind: queryAll} }

// CategoryQuery selects the daily documents of one category.
func CategoryQuery(cat models.Category) Query { return Query{kind: queryCategory, category: cat} }

// SavedQuery selects the saved collection.
func SavedQuery() Query { return Query{kind: querySaved} }

func (q Query) String() string {
	switch q.kind {
	case queryCategory:
		return "category:" + q.category.String()
	case querySaved:
		return "saved"
	default:
		return "all"
	}
}

// merge applies the upsert rule: the later ingestion replaces every field,
// but a document never drops out of the saved state.
func merge(old *models.Document, doc models.Document) models.Document {
	if old != nil && old.IsSaved {
		doc.IsSaved = true
	}
	return doc
}
