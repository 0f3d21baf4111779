package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/CristhianJ12/NewsApp/pkg/models"
)

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func doc(title string, cat models.Category, age time.Duration) models.Document {
	url := "https://rpp.pe/" + title
	return models.Document{
		ID:          models.GenerateDocumentID(title, url),
		Title:       title,
		FullContent: "contenido de " + title,
		Category:    cat,
		SourceName:  "RPP",
		Keywords:    []string{"Gobierno"},
		PublishedAt: testNow.Add(-age),
		IngestedAt:  testNow,
		OriginalURL: url,
	}
}

// runStoreContract exercises the behavior every Store implementation shares.
func runStoreContract(t *testing.T, open func(t *testing.T) Store) {
	t.Run("upsert is idempotent", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()
		d := doc("congreso", models.CategoryPolitics, time.Hour)

		for range 3 {
			if err := s.Upsert(ctx, d); err != nil {
				t.Fatalf("Upsert() error = %v", err)
			}
		}
		if n, _ := s.Count(ctx); n != 1 {
			t.Errorf("Count() = %d, want 1", n)
		}
	})

	t.Run("upsert replaces fields but keeps saved flag", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()
		d := doc("dolar", models.CategoryEconomy, time.Hour)
		if err := s.Upsert(ctx, d); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if err := s.SetSaved(ctx, d.ID, true); err != nil {
			t.Fatalf("SetSaved() error = %v", err)
		}

		d.FullContent = "actualizado"
		if err := s.UpsertAll(ctx, []models.Document{d}); err != nil {
			t.Fatalf("UpsertAll() error = %v", err)
		}

		got, err := s.Get(ctx, d.ID)
		if err != nil || got == nil {
			t.Fatalf("Get() = %v, %v", got, err)
		}
		if got.FullContent != "actualizado" {
			t.Errorf("FullContent = %q", got.FullContent)
		}
		if !got.IsSaved {
			t.Error("re-ingestion must not clear the saved flag")
		}
	})

	t.Run("get missing returns nil", func(t *testing.T) {
		s := open(t)
		got, err := s.Get(t.Context(), "missing")
		if err != nil || got != nil {
			t.Errorf("Get() = %v, %v; want nil, nil", got, err)
		}
	})

	t.Run("queries", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()
		older := doc("viejo", models.CategoryPolitics, 30*time.Hour)
		newer := doc("nuevo", models.CategoryPolitics, time.Hour)
		sports := doc("liga", models.CategorySports, 2*time.Hour)
		sports.Keywords = []string{"Alianza lima"}
		if err := s.UpsertAll(ctx, []models.Document{older, newer, sports}); err != nil {
			t.Fatalf("UpsertAll() error = %v", err)
		}

		all, _ := s.All(ctx)
		if ids := ids(all); !slices.Equal(ids, []string{newer.ID, sports.ID, older.ID}) {
			t.Errorf("All() not newest first: %v", titles(all))
		}

		politics, _ := s.ByCategory(ctx, models.CategoryPolitics)
		if len(politics) != 2 {
			t.Errorf("ByCategory() = %v", titles(politics))
		}
		if n, _ := s.CountByCategory(ctx, models.CategorySports); n != 1 {
			t.Errorf("CountByCategory() = %d, want 1", n)
		}

		recent, _ := s.Recent(ctx, testNow.Add(-24*time.Hour))
		if len(recent) != 2 {
			t.Errorf("Recent() = %v", titles(recent))
		}

		found, _ := s.Search(ctx, "ALIANZA", 10)
		if len(found) != 1 || found[0].ID != sports.ID {
			t.Errorf("Search(keyword) = %v", titles(found))
		}
		found, _ = s.Search(ctx, "contenido", 2)
		if len(found) != 2 {
			t.Errorf("Search() limit ignored: %v", titles(found))
		}
		found, _ = s.Search(ctx, "   ", 10)
		if len(found) != 0 {
			t.Errorf("blank Search() = %v, want empty", titles(found))
		}
	})

	t.Run("mark consulted", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()
		d := doc("salud", models.CategoryHealth, time.Hour)
		if err := s.Upsert(ctx, d); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		for range 2 {
			if err := s.MarkConsulted(ctx, d.ID); err != nil {
				t.Fatalf("MarkConsulted() error = %v", err)
			}
		}
		got, _ := s.Get(ctx, d.ID)
		if !got.WasConsulted || got.ConsultCount != 2 {
			t.Errorf("consulted = %v, count = %d", got.WasConsulted, got.ConsultCount)
		}

		if err := s.MarkConsulted(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("MarkConsulted(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("summary", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()
		d := doc("cti", models.CategoryCTI, time.Hour)
		if err := s.Upsert(ctx, d); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if err := s.SetSummary(ctx, d.ID, "resumen"); err != nil {
			t.Fatalf("SetSummary() error = %v", err)
		}
		got, _ := s.Get(ctx, d.ID)
		if got.ExecutiveSummary != "resumen" {
			t.Errorf("ExecutiveSummary = %q", got.ExecutiveSummary)
		}
	})

	t.Run("save and unsave", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()
		d := doc("patente", models.CategoryCTI, time.Hour)
		if err := s.Upsert(ctx, d); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}

		if err := s.Save(ctx, d); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		saved, _ := s.Saved(ctx)
		if len(saved) != 1 || saved[0].ID != d.ID {
			t.Fatalf("Saved() = %v", saved)
		}
		if got, _ := s.Get(ctx, d.ID); !got.IsSaved {
			t.Error("Save() should flag the daily document")
		}

		if err := s.Unsave(ctx, d.ID); err != nil {
			t.Fatalf("Unsave() error = %v", err)
		}
		saved, _ = s.Saved(ctx)
		if len(saved) != 0 {
			t.Errorf("Saved() after Unsave = %v", saved)
		}
		if got, _ := s.Get(ctx, d.ID); got.IsSaved {
			t.Error("Unsave() should clear the daily flag")
		}
	})

	t.Run("sweep", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()
		fresh := doc("fresco", models.CategoryGeneral, time.Hour)
		stale := doc("rancio", models.CategoryGeneral, 25*time.Hour)
		kept := doc("guardado", models.CategoryGeneral, 72*time.Hour)
		kept.IsSaved = true
		if err := s.UpsertAll(ctx, []models.Document{fresh, stale, kept}); err != nil {
			t.Fatalf("UpsertAll() error = %v", err)
		}

		removed, err := s.Sweep(ctx, testNow)
		if err != nil {
			t.Fatalf("Sweep() error = %v", err)
		}
		if removed != 1 {
			t.Errorf("Sweep() removed %d, want 1", removed)
		}
		if got, _ := s.Get(ctx, stale.ID); got != nil {
			t.Error("stale document should be gone")
		}
		if got, _ := s.Get(ctx, kept.ID); got == nil {
			t.Error("saved document must survive the sweep")
		}

		again, err := s.Sweep(ctx, testNow)
		if err != nil || again != 0 {
			t.Errorf("second Sweep() = %d, %v; want 0, nil", again, err)
		}
	})

	t.Run("stats", func(t *testing.T) {
		s := open(t)
		ctx := t.Context()
		a := doc("a", models.CategoryPolitics, time.Hour)
		b := doc("b", models.CategoryPolitics, 30*time.Hour)
		c := doc("c", models.CategorySports, time.Hour)
		if err := s.UpsertAll(ctx, []models.Document{a, b, c}); err != nil {
			t.Fatalf("UpsertAll() error = %v", err)
		}
		if err := s.Save(ctx, c); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		stats, err := s.Stats(ctx, testNow)
		if err != nil {
			t.Fatalf("Stats() error = %v", err)
		}
		if stats.Total != 3 || stats.Recent != 2 || stats.Saved != 1 {
			t.Errorf("Stats() = %+v", stats)
		}
		if stats.ByCategory[models.CategoryPolitics] != 2 {
			t.Errorf("ByCategory = %v", stats.ByCategory)
		}
	})

	t.Run("subscribe", func(t *testing.T) {
		s := open(t)
		ctx, cancel := context.WithCancel(t.Context())

		ch, err := s.Subscribe(ctx, CategoryQuery(models.CategorySports))
		if err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
		if first := receive(t, ch); len(first) != 0 {
			t.Errorf("initial snapshot = %v, want empty", titles(first))
		}

		if err := s.Upsert(t.Context(), doc("gol", models.CategorySports, time.Hour)); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if next := receive(t, ch); len(next) != 1 {
			t.Errorf("snapshot after upsert = %v", titles(next))
		}

		cancel()
		for range ch {
		}
	})
}

func receive(t *testing.T, ch <-chan []models.Document) []models.Document {
	t.Helper()
	select {
	case docs, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return docs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func ids(docs []models.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func titles(docs []models.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = fmt.Sprintf("%s(%s)", d.Title, d.Category)
	}
	return out
}
