package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/CristhianJ12/NewsApp/internal/events"
	"github.com/CristhianJ12/NewsApp/internal/feed"
	"github.com/CristhianJ12/NewsApp/internal/ingestion"
	"github.com/CristhianJ12/NewsApp/internal/storage"
	"github.com/CristhianJ12/NewsApp/internal/store"
	"github.com/CristhianJ12/NewsApp/pkg/models"
)

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

const feedOne = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Uno</title>
<item>
  <title>Alianza Lima gana el clásico</title>
  <description>El equipo íntimo venció en Matute.</description>
  <link>https://noticias.pe/deportes/clasico</link>
  <pubDate>Tue, 10 Jun 2025 08:30:00 -0500</pubDate>
</item>
<item>
  <title>BCR mantiene la tasa de referencia</title>
  <description>La inflación sigue dentro del rango meta.</description>
  <link>https://noticias.pe/economia/tasa</link>
  <pubDate>Tue, 10 Jun 2025 05:00:00 -0500</pubDate>
</item>
</channel></rss>`

const feedOld = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Viejo</title>
<item>
  <title>Noticia de la semana pasada</title>
  <description>Ya no es relevante.</description>
  <link>https://noticias.pe/archivo/vieja</link>
  <pubDate>Tue, 03 Jun 2025 08:30:00 -0500</pubDate>
</item>
</channel></rss>`

func feedServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

type fakeArchive struct {
	indexed []models.Document
	err     error
}

func (f *fakeArchive) IndexDocuments(_ context.Context, docs []models.Document) (int, error) {
	f.indexed = append(f.indexed, docs...)
	if f.err != nil {
		return 0, f.err
	}
	return len(docs), nil
}

type fakeRecorder struct {
	at  time.Time
	err error
}

func (f *fakeRecorder) SetLastIngestion(_ context.Context, t time.Time) error {
	f.at = t
	return f.err
}

type archivedFeed struct {
	body []byte
	meta storage.FeedMetadata
}

type fakeFeedArchive struct {
	feeds map[string]archivedFeed
	order []string
}

func (f *fakeFeedArchive) add(source string, at time.Time, body string) {
	if f.feeds == nil {
		f.feeds = map[string]archivedFeed{}
	}
	prefix := storage.FeedPrefix(source, at)
	f.feeds[prefix] = archivedFeed{
		body: []byte(body),
		meta: storage.FeedMetadata{Source: source, FetchedAt: at, ContentType: "application/rss+xml", Size: len(body)},
	}
	f.order = append(f.order, prefix)
}

func (f *fakeFeedArchive) ListFeeds(_ context.Context, since time.Time) ([]storage.FeedObject, error) {
	var out []storage.FeedObject
	for _, prefix := range f.order {
		meta := f.feeds[prefix].meta
		if meta.FetchedAt.Before(since) {
			continue
		}
		out = append(out, storage.FeedObject{Prefix: prefix, Slug: storage.Slug(meta.Source), FetchedAt: meta.FetchedAt})
	}
	return out, nil
}

func (f *fakeFeedArchive) GetFeed(_ context.Context, prefix string) ([]byte, *storage.FeedMetadata, error) {
	feed, ok := f.feeds[prefix]
	if !ok {
		return nil, nil, errors.New("no such key")
	}
	meta := feed.meta
	return feed.body, &meta, nil
}

func newOrchestrator(sources ...models.Source) *ingestion.Orchestrator {
	return ingestion.New(feed.New(feed.Config{Timeout: 5 * time.Second}), ingestion.Config{Sources: sources})
}

func TestPipeline_Refresh(t *testing.T) {
	good := feedServer(t, http.StatusOK, feedOne)
	broken := feedServer(t, http.StatusInternalServerError, "boom")

	st := store.NewMemoryStore()
	archive := &fakeArchive{}
	recorder := &fakeRecorder{}
	bus := &events.Bus{}
	var got []events.Event
	bus.Subscribe(func(e events.Event) { got = append(got, e) })

	p := New(newOrchestrator(
		models.Source{Name: "Uno", URL: good.URL, Active: true},
		models.Source{Name: "Roto", URL: broken.URL, Active: true},
	), st, Config{Archive: archive, Recorder: recorder, Bus: bus})
	p.now = func() time.Time { return testNow }

	result, err := p.Refresh(t.Context())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if result.DocsStored != 2 || len(result.NewDocuments) != 2 || result.DocsArchived != 2 {
		t.Errorf("result = %+v", result)
	}
	if len(result.Errors) != 1 {
		t.Errorf("errors = %v, want the failed source only", result.Errors)
	}
	if !recorder.at.Equal(testNow) {
		t.Errorf("last ingestion = %v, want %v", recorder.at, testNow)
	}
	if n, _ := st.Count(t.Context()); n != 2 {
		t.Errorf("stored %d documents, want 2", n)
	}

	if len(got) != 1 {
		t.Fatalf("published %d events, want 1", len(got))
	}
	ev, ok := got[0].(events.IngestionCompleteEvent)
	if !ok {
		t.Fatalf("event = %T", got[0])
	}
	if ev.Replay || ev.Sources != 2 || len(ev.FailedSources) != 1 || !strings.HasPrefix(ev.FailedSources[0], "Roto: ") {
		t.Errorf("event = %+v", ev)
	}

	// A second run finds nothing new.
	result, err = p.Refresh(t.Context())
	if err != nil {
		t.Fatalf("second Refresh() error = %v", err)
	}
	if len(result.NewDocuments) != 0 {
		t.Errorf("second run new documents = %d, want 0", len(result.NewDocuments))
	}
}

func TestPipeline_Refresh_KeepsSavedFlag(t *testing.T) {
	good := feedServer(t, http.StatusOK, feedOne)
	st := store.NewMemoryStore()
	p := New(newOrchestrator(models.Source{Name: "Uno", URL: good.URL, Active: true}), st, Config{})

	if _, err := p.Refresh(t.Context()); err != nil {
		t.Fatal(err)
	}
	all, _ := st.All(t.Context())
	if err := st.SetSaved(t.Context(), all[0].ID, true); err != nil {
		t.Fatal(err)
	}

	if _, err := p.Refresh(t.Context()); err != nil {
		t.Fatal(err)
	}
	doc, _ := st.Get(t.Context(), all[0].ID)
	if doc == nil || !doc.IsSaved {
		t.Errorf("saved flag lost after refresh: %+v", doc)
	}
}

func TestPipeline_Refresh_NoDocuments(t *testing.T) {
	broken := feedServer(t, http.StatusBadGateway, "")
	st := store.NewMemoryStore()
	recorder := &fakeRecorder{}
	bus := &events.Bus{}
	published := 0
	bus.Subscribe(func(events.Event) { published++ })

	p := New(newOrchestrator(models.Source{Name: "Roto", URL: broken.URL, Active: true}), st,
		Config{Recorder: recorder, Bus: bus})

	_, err := p.Refresh(t.Context())
	if !errors.Is(err, ingestion.ErrNoDocuments) {
		t.Fatalf("Refresh() error = %v, want ErrNoDocuments", err)
	}
	if !recorder.at.IsZero() {
		t.Error("last ingestion recorded for an empty run")
	}
	if published != 1 {
		t.Errorf("published %d events, want 1", published)
	}
}

func TestPipeline_Refresh_ArchiveFailureIsSoft(t *testing.T) {
	good := feedServer(t, http.StatusOK, feedOne)
	st := store.NewMemoryStore()
	archive := &fakeArchive{err: errors.New("cluster unavailable")}

	p := New(newOrchestrator(models.Source{Name: "Uno", URL: good.URL, Active: true}), st, Config{Archive: archive})

	result, err := p.Refresh(t.Context())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if result.DocsStored != 2 || result.DocsArchived != 0 || len(result.Errors) != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestPipeline_Sweep(t *testing.T) {
	st := store.NewMemoryStore()
	docs := []models.Document{
		{ID: "fresh", Title: "Hoy", PublishedAt: testNow.Add(-time.Hour)},
		{ID: "old", Title: "Ayer", PublishedAt: testNow.Add(-30 * time.Hour)},
		{ID: "kept", Title: "Guardada", PublishedAt: testNow.Add(-30 * time.Hour), IsSaved: true},
	}
	if err := st.UpsertAll(t.Context(), docs); err != nil {
		t.Fatal(err)
	}

	bus := &events.Bus{}
	var got events.Event
	bus.Subscribe(func(e events.Event) { got = e })

	p := New(nil, st, Config{Bus: bus})
	p.now = func() time.Time { return testNow }

	removed, err := p.Sweep(t.Context())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if ev, ok := got.(events.SweepCompleteEvent); !ok || ev.Removed != 1 {
		t.Errorf("event = %+v", got)
	}
}

func TestPipeline_Replay(t *testing.T) {
	archive := &fakeFeedArchive{}
	archive.add("Uno", testNow.Add(-2*time.Hour), feedOne)
	archive.add("Viejo", testNow.Add(-time.Hour), feedOld)
	archive.add("Antes", testNow.Add(-72*time.Hour), feedOne)

	st := store.NewMemoryStore()
	bus := &events.Bus{}
	var got events.Event
	bus.Subscribe(func(e events.Event) { got = e })

	p := New(nil, st, Config{FeedArchive: archive, Bus: bus})
	p.now = func() time.Time { return testNow }

	result, err := p.Replay(t.Context(), testNow.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if len(result.Sources) != 2 {
		t.Errorf("replayed %d feeds, want 2", len(result.Sources))
	}
	if result.DocsStored != 2 {
		t.Errorf("stored %d documents, want 2 (expired item skipped)", result.DocsStored)
	}
	if ev, ok := got.(events.IngestionCompleteEvent); !ok || !ev.Replay {
		t.Errorf("event = %+v", got)
	}
	for _, src := range result.Sources {
		if src.Name == "Uno" && src.Count != 2 {
			t.Errorf("source Uno count = %d, want 2", src.Count)
		}
	}
}

func TestPipeline_Replay_NotConfigured(t *testing.T) {
	p := New(nil, store.NewMemoryStore(), Config{})
	if _, err := p.Replay(t.Context(), testNow); !errors.Is(err, ErrNoArchive) {
		t.Errorf("Replay() error = %v, want ErrNoArchive", err)
	}
}
