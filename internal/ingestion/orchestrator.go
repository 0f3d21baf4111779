// Package ingestion fans out over every active feed source and collects
// normalized documents.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/CristhianJ12/NewsApp/internal/normalizer"
	"github.com/CristhianJ12/NewsApp/pkg/models"
)

// DefaultSourceTimeout bounds the time spent on a single source.
const DefaultSourceTimeout = 30 * time.Second

// ErrNoDocuments is returned when no source produced a single document.
var ErrNoDocuments = errors.New("no documents fetched from any source")

// Fetcher retrieves the raw items of one source.
type Fetcher interface {
	Fetch(ctx context.Context, src models.Source) ([]models.RawItem, error)
}

// Config holds orchestrator configuration.
type Config struct {
	Sources       []models.Source
	SourceTimeout time.Duration
}

// SourceResult describes what one source contributed.
type SourceResult struct {
	Name     string
	Count    int
	Err      error
	Duration time.Duration
}

// Result holds the outcome of a FetchAll run.
type Result struct {
	Documents []models.Document
	Sources   []SourceResult
	Duration  time.Duration
}

// Failed returns the sources that ended with an error.
func (r *Result) Failed() []SourceResult {
	var failed []SourceResult
	for _, s := range r.Sources {
		if s.Err != nil {
			failed = append(failed, s)
		}
	}
	return failed
}

// Orchestrator fetches every active source concurrently.
type Orchestrator struct {
	fetcher Fetcher
	config  Config
	now     func() time.Time
}

// New creates a new Orchestrator.
func New(fetcher Fetcher, config Config) *Orchestrator {
	if config.SourceTimeout <= 0 {
		config.SourceTimeout = DefaultSourceTimeout
	}
	return &Orchestrator{fetcher: fetcher, config: config, now: time.Now}
}

// Sources returns the active sources.
func (o *Orchestrator) Sources() []models.Source {
	var active []models.Source
	for _, s := range o.config.Sources {
		if s.Active {
			active = append(active, s)
		}
	}
	return active
}

// FetchAll runs every active source in its own goroutine and gathers the
// normalized documents. A failing or slow source contributes nothing.
// Nothing is written to storage here.
func (o *Orchestrator) FetchAll(ctx context.Context) (*Result, error) {
	start := time.Now()
	sources := o.Sources()

	slog.Info("starting ingestion", "sources", len(sources))

	results := make([]SourceResult, len(sources))
	docs := make([][]models.Document, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			docs[i], results[i] = o.fetchSource(ctx, src)
		}()
	}
	wg.Wait()

	result := &Result{Sources: results}
	for _, d := range docs {
		result.Documents = append(result.Documents, d...)
	}
	result.Duration = time.Since(start)

	slog.Info("ingestion complete",
		"documents", len(result.Documents),
		"failed_sources", len(result.Failed()),
		"duration", result.Duration)

	if len(result.Documents) == 0 {
		return result, fmt.Errorf("%w (%d sources)", ErrNoDocuments, len(sources))
	}
	return result, nil
}

type fetchOutcome struct {
	items []models.RawItem
	err   error
}

func (o *Orchestrator) fetchSource(ctx context.Context, src models.Source) ([]models.Document, SourceResult) {
	start := time.Now()
	res := SourceResult{Name: src.Name}

	ctx, cancel := context.WithTimeout(ctx, o.config.SourceTimeout)
	defer cancel()

	done := make(chan fetchOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchOutcome{err: fmt.Errorf("panic while fetching %s: %v", src.Name, r)}
			}
		}()
		items, err := o.fetcher.Fetch(ctx, src)
		done <- fetchOutcome{items: items, err: err}
	}()

	var out fetchOutcome
	select {
	case out = <-done:
		if out.err == nil {
			out.err = ctx.Err()
		}
	case <-ctx.Done():
		out.err = ctx.Err()
	}

	res.Duration = time.Since(start)
	if out.err != nil {
		slog.Warn("source failed", "source", src.Name, "error", out.err, "duration", res.Duration)
		res.Err = out.err
		return nil, res
	}

	now := o.now()
	var docs []models.Document
	for _, item := range out.items {
		if doc, ok := normalizer.Normalize(item, src.Name, now); ok {
			docs = append(docs, doc)
		}
	}
	res.Count = len(docs)

	slog.Debug("source fetched", "source", src.Name, "items", len(out.items), "documents", len(docs))
	return docs, res
}
