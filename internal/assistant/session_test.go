package assistant

import (
	"errors"
	"testing"
	"time"

	"github.com/CristhianJ12/NewsApp/pkg/models"
)

func TestSession_RecordsTurns(t *testing.T) {
	f := newFixture(t,
		newsDoc("Deportes: Perú clasifica", models.CategorySports, time.Hour),
		newsDoc("Congreso debate", models.CategoryPolitics, time.Hour),
	)
	s := f.asst.NewSession()

	resp, err := s.Ask(t.Context(), "noticias de deportes")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	conv := s.Conversation()
	if len(conv.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(conv.Messages))
	}
	if !conv.Messages[0].IsUser || conv.Messages[1].IsUser {
		t.Error("turns out of order")
	}
	if conv.Messages[1].Text != resp.Text {
		t.Errorf("assistant turn = %q", conv.Messages[1].Text)
	}
	if conv.CurrentCategory != models.CategorySports {
		t.Errorf("CurrentCategory = %q", conv.CurrentCategory)
	}
	if len(conv.LastMentionedDocumentIDs) != 1 {
		t.Errorf("LastMentionedDocumentIDs = %v", conv.LastMentionedDocumentIDs)
	}

	// The next question carries the history into the context.
	if _, err := s.Ask(t.Context(), "deportes otra vez"); err != nil {
		t.Fatal(err)
	}
	if got := len(s.Conversation().Messages); got != 4 {
		t.Errorf("messages = %d, want 4", got)
	}
}

func TestSession_ErrorKeepsHistory(t *testing.T) {
	f := newFixture(t, newsDoc("Deportes: Perú clasifica", models.CategorySports, time.Hour))
	f.gen.err = errors.New("quota")
	s := f.asst.NewSession()

	if _, err := s.Ask(t.Context(), "noticias de deportes"); !errors.Is(err, ErrGeneration) {
		t.Fatalf("Ask() error = %v, want ErrGeneration", err)
	}
	if got := len(s.Conversation().Messages); got != 0 {
		t.Errorf("messages = %d, want 0", got)
	}
}

func TestSession_Reset(t *testing.T) {
	f := newFixture(t, newsDoc("Deportes: Perú clasifica", models.CategorySports, time.Hour))
	s := f.asst.NewSession()
	if _, err := s.Ask(t.Context(), "noticias de deportes"); err != nil {
		t.Fatal(err)
	}
	s.Reset(testNow)
	if got := len(s.Conversation().Messages); got != 0 {
		t.Errorf("messages after reset = %d", got)
	}
}
