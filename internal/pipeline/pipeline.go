// Package pipeline runs the refresh use case: fetch every source, write the
// documents to the store, record the run and notify listeners.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CristhianJ12/NewsApp/internal/events"
	"github.com/CristhianJ12/NewsApp/internal/feed"
	"github.com/CristhianJ12/NewsApp/internal/ingestion"
	"github.com/CristhianJ12/NewsApp/internal/normalizer"
	"github.com/CristhianJ12/NewsApp/internal/storage"
	"github.com/CristhianJ12/NewsApp/internal/store"
	"github.com/CristhianJ12/NewsApp/pkg/models"
)

// Fetcher produces the documents of one ingestion run.
type Fetcher interface {
	FetchAll(ctx context.Context) (*ingestion.Result, error)
}

// Archive indexes documents for long-term search.
type Archive interface {
	IndexDocuments(ctx context.Context, docs []models.Document) (int, error)
}

// FeedArchive lists and reads raw feed bodies kept from earlier runs.
type FeedArchive interface {
	ListFeeds(ctx context.Context, since time.Time) ([]storage.FeedObject, error)
	GetFeed(ctx context.Context, prefix string) ([]byte, *storage.FeedMetadata, error)
}

// Recorder keeps the timestamp of the last successful run.
type Recorder interface {
	SetLastIngestion(ctx context.Context, t time.Time) error
}

// Config wires the optional parts of a pipeline. Nil fields are skipped.
type Config struct {
	Archive     Archive
	FeedArchive FeedArchive
	Recorder    Recorder
	Bus         *events.Bus
}

// Result holds pipeline execution results.
type Result struct {
	Sources      []ingestion.SourceResult
	DocsFetched  int
	DocsStored   int
	NewDocuments []models.Document
	DocsArchived int
	Duration     time.Duration
	Errors       []error
}

// Pipeline orchestrates the fetch, store and archive flow.
type Pipeline struct {
	fetcher Fetcher
	store   store.Store
	config  Config
	now     func() time.Time
}

// New creates a new Pipeline.
func New(fetcher Fetcher, st store.Store, config Config) *Pipeline {
	return &Pipeline{
		fetcher: fetcher,
		store:   st,
		config:  config,
		now:     time.Now,
	}
}

// Refresh fetches every active source and upserts the result. Nothing is
// written when no source produced a document.
func (p *Pipeline) Refresh(ctx context.Context) (*Result, error) {
	start := time.Now()

	fetched, err := p.fetcher.FetchAll(ctx)
	if err != nil {
		if fetched != nil {
			p.publish(&Result{Sources: fetched.Sources, Duration: time.Since(start)}, false)
		}
		return nil, fmt.Errorf("failed to fetch sources: %w", err)
	}

	result := &Result{Sources: fetched.Sources}
	for _, src := range fetched.Failed() {
		result.Errors = append(result.Errors, fmt.Errorf("%s: %w", src.Name, src.Err))
	}

	if err := p.write(ctx, fetched.Documents, result); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	p.publish(result, false)
	return result, nil
}

// write upserts docs, records the run and archives the documents.
func (p *Pipeline) write(ctx context.Context, docs []models.Document, result *Result) error {
	result.DocsFetched = len(docs)

	unique := dedupe(docs)
	fresh, err := p.newDocuments(ctx, unique)
	if err != nil {
		return err
	}

	if err := p.store.UpsertAll(ctx, unique); err != nil {
		return fmt.Errorf("failed to store documents: %w", err)
	}
	result.DocsStored = len(unique)
	result.NewDocuments = fresh

	if p.config.Recorder != nil {
		if err := p.config.Recorder.SetLastIngestion(ctx, p.now()); err != nil {
			slog.Warn("failed to record ingestion time", "error", err)
			result.Errors = append(result.Errors, err)
		}
	}

	if p.config.Archive != nil {
		n, err := p.config.Archive.IndexDocuments(ctx, unique)
		result.DocsArchived = n
		if err != nil {
			slog.Warn("failed to archive documents", "error", err)
			result.Errors = append(result.Errors, fmt.Errorf("archive: %w", err))
		}
	}

	slog.Info("documents stored",
		"fetched", result.DocsFetched,
		"stored", result.DocsStored,
		"new", len(result.NewDocuments),
		"archived", result.DocsArchived)
	return nil
}

// dedupe keeps the last occurrence of every id, in first-seen order.
func dedupe(docs []models.Document) []models.Document {
	index := make(map[string]int, len(docs))
	out := make([]models.Document, 0, len(docs))
	for _, d := range docs {
		if i, ok := index[d.ID]; ok {
			out[i] = d
			continue
		}
		index[d.ID] = len(out)
		out = append(out, d)
	}
	return out
}

func (p *Pipeline) newDocuments(ctx context.Context, docs []models.Document) ([]models.Document, error) {
	var fresh []models.Document
	for _, d := range docs {
		existing, err := p.store.Get(ctx, d.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up document: %w", err)
		}
		if existing == nil {
			fresh = append(fresh, d)
		}
	}
	return fresh, nil
}

// Sweep removes expired documents from the daily collection.
func (p *Pipeline) Sweep(ctx context.Context) (int, error) {
	now := p.now()
	removed, err := p.store.Sweep(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep: %w", err)
	}
	slog.Info("sweep complete", "removed", removed)
	if p.config.Bus != nil {
		p.config.Bus.Publish(events.SweepCompleteEvent{Removed: removed, Timestamp: now})
	}
	return removed, nil
}

// ErrNoArchive is returned by Replay when no raw feed archive is configured.
var ErrNoArchive = errors.New("raw feed archive is not configured")

// Replay re-ingests archived feed bodies fetched at or after since. Items
// already past the retention window are skipped.
func (p *Pipeline) Replay(ctx context.Context, since time.Time) (*Result, error) {
	if p.config.FeedArchive == nil {
		return nil, ErrNoArchive
	}
	start := time.Now()
	now := p.now()

	objects, err := p.config.FeedArchive.ListFeeds(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived feeds: %w", err)
	}

	result := &Result{}
	var docs []models.Document
	for _, obj := range objects {
		src := ingestion.SourceResult{Name: obj.Slug}

		body, meta, err := p.config.FeedArchive.GetFeed(ctx, obj.Prefix)
		if err != nil {
			src.Err = err
			result.Sources = append(result.Sources, src)
			result.Errors = append(result.Errors, fmt.Errorf("%s: %w", obj.Prefix, err))
			continue
		}
		src.Name = meta.Source

		items, err := feed.ParseFeed(body, meta.ContentType)
		if err != nil {
			src.Err = err
			result.Sources = append(result.Sources, src)
			result.Errors = append(result.Errors, fmt.Errorf("%s: %w", obj.Prefix, err))
			continue
		}

		for _, item := range items {
			doc, ok := normalizer.Normalize(item, meta.Source, meta.FetchedAt)
			if !ok || doc.Expired(now) {
				continue
			}
			docs = append(docs, doc)
			src.Count++
		}
		result.Sources = append(result.Sources, src)
	}

	if len(docs) == 0 {
		return result, fmt.Errorf("%w (%d archived feeds)", ingestion.ErrNoDocuments, len(objects))
	}

	if err := p.write(ctx, docs, result); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	p.publish(result, true)
	return result, nil
}

func (p *Pipeline) publish(result *Result, replay bool) {
	if p.config.Bus == nil {
		return
	}
	var failed []string
	for _, src := range result.Sources {
		if src.Err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", src.Name, src.Err))
		}
	}
	p.config.Bus.Publish(events.IngestionCompleteEvent{
		Replay:        replay,
		Sources:       len(result.Sources),
		FailedSources: failed,
		DocsFetched:   result.DocsFetched,
		DocsStored:    result.DocsStored,
		NewDocuments:  result.NewDocuments,
		DocsArchived:  result.DocsArchived,
		Duration:      result.Duration,
		Timestamp:     p.now(),
	})
}
