package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/CristhianJ12/NewsApp/pkg/models"
)

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestMemoryStore_SnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "news.json")
	ctx := t.Context()

	s, err := OpenMemoryStore(path)
	if err != nil {
		t.Fatalf("OpenMemoryStore() error = %v", err)
	}
	d := doc("persistente", models.CategoryEconomy, time.Hour)
	if err := s.Upsert(ctx, d); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := s.Save(ctx, d); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := OpenMemoryStore(path)
	if err != nil {
		t.Fatalf("OpenMemoryStore() error = %v", err)
	}
	got, _ := reopened.Get(ctx, d.ID)
	if got == nil || got.Title != "persistente" || !got.IsSaved {
		t.Errorf("reopened document = %+v", got)
	}
	saved, _ := reopened.Saved(ctx)
	if len(saved) != 1 {
		t.Errorf("reopened saved = %v", saved)
	}
}

func TestMemoryStore_SavedOrderedBySavedAt(t *testing.T) {
	s := NewMemoryStore()
	ctx := t.Context()
	clock := testNow
	s.now = func() time.Time { return clock }

	first := doc("primero", models.CategoryGeneral, time.Hour)
	second := doc("segundo", models.CategoryGeneral, 2*time.Hour)
	s.Save(ctx, first)
	clock = clock.Add(time.Minute)
	s.Save(ctx, second)

	saved, _ := s.Saved(ctx)
	if len(saved) != 2 || saved[0].ID != second.ID {
		t.Errorf("Saved() should list the latest save first: %+v", saved)
	}
}

func TestMemoryStore_SlowSubscriberSeesLatestSnapshot(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	ch, err := s.Subscribe(ctx, AllQuery())
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	for i := range 5 {
		s.Upsert(t.Context(), doc(string(rune('a'+i)), models.CategoryGeneral, time.Hour))
	}

	latest := receive(t, ch)
	if len(latest) != 5 {
		t.Errorf("latest snapshot has %d documents, want 5", len(latest))
	}
}

func TestMemoryStore_CancelClosesSubscription(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(t.Context())

	ch, _ := s.Subscribe(ctx, SavedQuery())
	<-ch
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			// a publish may race the cancellation; the next read must see the close
			if _, ok := <-ch; ok {
				t.Error("channel should be closed")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel was not closed")
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.hub.size() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.hub.size() != 0 {
		t.Error("cancelled subscriber is still registered")
	}
}

func TestMemoryStore_ConcurrentMutations(t *testing.T) {
	s := NewMemoryStore()
	ctx := t.Context()
	d := doc("concurrente", models.CategoryGeneral, time.Hour)
	s.Upsert(ctx, d)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.MarkConsulted(ctx, d.ID)
		}()
	}
	wg.Wait()

	got, _ := s.Get(ctx, d.ID)
	if got.ConsultCount != 50 {
		t.Errorf("ConsultCount = %d, want 50", got.ConsultCount)
	}
}

func TestMemoryStore_FailedSnapshotRollsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "news.json")
	ctx := t.Context()

	s, err := OpenMemoryStore(path)
	if err != nil {
		t.Fatal(err)
	}
	kept := doc("guardado", models.CategoryGeneral, time.Hour)
	if err := s.Upsert(ctx, kept); err != nil {
		t.Fatal(err)
	}

	// A directory in place of the temp file makes every snapshot write fail.
	if err := os.Mkdir(path+".tmp", 0o755); err != nil {
		t.Fatal(err)
	}

	lost := doc("perdido", models.CategoryGeneral, time.Hour)
	if err := s.Upsert(ctx, lost); err == nil {
		t.Fatal("Upsert() expected snapshot error")
	}
	if got, _ := s.Get(ctx, lost.ID); got != nil {
		t.Errorf("failed Upsert left %q in the store", got.Title)
	}
	if err := s.MarkConsulted(ctx, kept.ID); err == nil {
		t.Fatal("MarkConsulted() expected snapshot error")
	}
	if got, _ := s.Get(ctx, kept.ID); got == nil || got.WasConsulted {
		t.Errorf("failed MarkConsulted changed the document: %+v", got)
	}
}
