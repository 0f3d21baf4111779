package store

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/CristhianJ12/NewsApp/pkg/models"
)

// MemoryStore keeps both collections in memory. When a snapshot path is
// set, the state is loaded on open and rewritten after every mutation.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]models.Document
	saved map[string]models.SavedDocument
	path  string
	hub   *hub
	now   func() time.Time
}

var _ Store = (*MemoryStore)(nil)

type snapshotFile struct {
	Documents []models.Document      `json:"documents"`
	Saved     []models.SavedDocument `json:"saved"`
}

// NewMemoryStore creates an empty store without persistence.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[string]models.Document),
		saved: make(map[string]models.SavedDocument),
		hub:   newHub(),
		now:   time.Now,
	}
}

// OpenMemoryStore creates a store backed by a JSON snapshot file.
// A missing file starts an empty store.
func OpenMemoryStore(path string) (*MemoryStore, error) {
	s := NewMemoryStore()
	s.path = path

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	for _, d := range snap.Documents {
		s.docs[d.ID] = d
	}
	for _, d := range snap.Saved {
		s.saved[d.ID] = d
	}
	return s, nil
}

// Close writes the snapshot one last time.
func (s *MemoryStore) Close() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persist()
}

// persist must be called with s.mu held.
func (s *MemoryStore) persist() error {
	if s.path == "" {
		return nil
	}

	snap := snapshotFile{
		Documents: sortedByPublished(s.filter(func(models.Document) bool { return true })),
		Saved:     s.savedList(),
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// mutate runs fn under the write lock, persists, and notifies subscribers.
// When the snapshot cannot be written the change is rolled back.
func (s *MemoryStore) mutate(fn func() error) error {
	s.mu.Lock()
	var (
		docs  map[string]models.Document
		saved map[string]models.SavedDocument
	)
	if s.path != "" {
		docs, saved = maps.Clone(s.docs), maps.Clone(s.saved)
	}
	if err := fn(); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.persist(); err != nil {
		s.docs, s.saved = docs, saved
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.hub.publish(s.snapshot)
	return nil
}

func (s *MemoryStore) snapshot(q Query) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch q.kind {
	case queryCategory:
		return sortedByPublished(s.filter(func(d models.Document) bool { return d.Category == q.category })), nil
	case querySaved:
		saved := s.savedList()
		docs := make([]models.Document, len(saved))
		for i, sd := range saved {
			docs[i] = sd.AsDocument()
		}
		return docs, nil
	default:
		return sortedByPublished(s.filter(func(models.Document) bool { return true })), nil
	}
}

func (s *MemoryStore) filter(keep func(models.Document) bool) []models.Document {
	var out []models.Document
	for _, d := range s.docs {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}

func (s *MemoryStore) savedList() []models.SavedDocument {
	out := make([]models.SavedDocument, 0, len(s.saved))
	for _, d := range s.saved {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b models.SavedDocument) int {
		if c := b.SavedAt.Compare(a.SavedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func sortedByPublished(docs []models.Document) []models.Document {
	slices.SortFunc(docs, func(a, b models.Document) int {
		if c := b.PublishedAt.Compare(a.PublishedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return docs
}

// Subscribe implements Store.
func (s *MemoryStore) Subscribe(ctx context.Context, q Query) (<-chan []models.Document, error) {
	return s.hub.subscribe(ctx, q, s.snapshot)
}

// Get returns the document with id, or nil when it does not exist.
func (s *MemoryStore) Get(_ context.Context, id string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.docs[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

// All returns the daily collection, newest first.
func (s *MemoryStore) All(_ context.Context) ([]models.Document, error) {
	return s.snapshot(AllQuery())
}

// ByCategory returns the daily documents of cat, newest first.
func (s *MemoryStore) ByCategory(_ context.Context, cat models.Category) ([]models.Document, error) {
	return s.snapshot(CategoryQuery(cat))
}

// Recent returns documents published at or after since, newest first.
func (s *MemoryStore) Recent(_ context.Context, since time.Time) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedByPublished(s.filter(func(d models.Document) bool { return !d.PublishedAt.Before(since) })), nil
}

// Search matches query against title, content and keywords, newest first.
func (s *MemoryStore) Search(_ context.Context, query string, limit int) ([]models.Document, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := sortedByPublished(s.filter(func(d models.Document) bool { return d.Matches(query) }))
	if len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// Count returns the size of the daily collection.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

// CountByCategory returns how many daily documents belong to cat.
func (s *MemoryStore) CountByCategory(_ context.Context, cat models.Category) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.filter(func(d models.Document) bool { return d.Category == cat })), nil
}

// Saved returns the saved collection, most recently saved first.
func (s *MemoryStore) Saved(_ context.Context) ([]models.SavedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.savedList(), nil
}

// Stats summarizes both collections.
func (s *MemoryStore) Stats(_ context.Context, now time.Time) (models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := models.Stats{
		Total:      len(s.docs),
		Saved:      len(s.saved),
		ByCategory: make(map[models.Category]int),
	}
	for _, d := range s.docs {
		if d.IsRecent(now) {
			stats.Recent++
		}
		stats.ByCategory[d.Category]++
	}
	return stats, nil
}

// Upsert inserts doc or replaces the document with the same id.
func (s *MemoryStore) Upsert(ctx context.Context, doc models.Document) error {
	return s.UpsertAll(ctx, []models.Document{doc})
}

// UpsertAll applies Upsert to every document and notifies subscribers once.
func (s *MemoryStore) UpsertAll(_ context.Context, docs []models.Document) error {
	if len(docs) == 0 {
		return nil
	}
	return s.mutate(func() error {
		for _, doc := range docs {
			if old, ok := s.docs[doc.ID]; ok {
				doc = merge(&old, doc)
			}
			s.docs[doc.ID] = doc
		}
		return nil
	})
}

func (s *MemoryStore) update(id string, fn func(*models.Document)) error {
	return s.mutate(func() error {
		d, ok := s.docs[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		fn(&d)
		s.docs[id] = d
		return nil
	})
}

// MarkConsulted flags the document as read and bumps its counter.
func (s *MemoryStore) MarkConsulted(_ context.Context, id string) error {
	return s.update(id, func(d *models.Document) {
		d.WasConsulted = true
		d.ConsultCount++
	})
}

// SetSummary stores the executive summary of a document.
func (s *MemoryStore) SetSummary(_ context.Context, id, summary string) error {
	return s.update(id, func(d *models.Document) {
		d.ExecutiveSummary = summary
	})
}

// SetSaved flips the saved flag of a daily document.
func (s *MemoryStore) SetSaved(_ context.Context, id string, saved bool) error {
	return s.update(id, func(d *models.Document) {
		d.IsSaved = saved
	})
}

// Save copies the reduced projection of doc into the saved collection and
// flags the daily document, if it is still there.
func (s *MemoryStore) Save(_ context.Context, doc models.Document) error {
	return s.mutate(func() error {
		s.saved[doc.ID] = doc.SavedProjection(s.now())
		if d, ok := s.docs[doc.ID]; ok {
			d.IsSaved = true
			s.docs[doc.ID] = d
		}
		return nil
	})
}

// Unsave removes id from the saved collection and clears the daily flag.
func (s *MemoryStore) Unsave(_ context.Context, id string) error {
	return s.mutate(func() error {
		delete(s.saved, id)
		if d, ok := s.docs[id]; ok {
			d.IsSaved = false
			s.docs[id] = d
		}
		return nil
	})
}

// Sweep deletes unsaved documents published before now minus the retention window.
func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	var removed int
	err := s.mutate(func() error {
		for id, d := range s.docs {
			if d.Expired(now) {
				delete(s.docs, id)
				removed++
			}
		}
		return nil
	})
	return removed, err
}
