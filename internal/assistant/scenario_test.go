package assistant

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/CristhianJ12/NewsApp/internal/feed"
	"github.com/CristhianJ12/NewsApp/internal/ingestion"
	"github.com/CristhianJ12/NewsApp/internal/preferences"
	"github.com/CristhianJ12/NewsApp/internal/store"
	"github.com/CristhianJ12/NewsApp/pkg/models"
)

const scenarioFeedOne = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Uno</title>
<item>
  <title>Alianza Lima gana el clásico</title>
  <description>El equipo íntimo venció en Matute.</description>
  <link>https://noticias.pe/deportes/clasico</link>
  <pubDate>Tue, 10 Jun 2025 08:30:00 -0500</pubDate>
</item>
<item>
  <title>INDECI alerta por lluvias en la sierra</title>
  <description>Se esperan precipitaciones intensas.</description>
  <link>https://noticias.pe/actualidad/lluvias</link>
  <pubDate>Tue, 10 Jun 2025 09:00:00 -0500</pubDate>
</item>
</channel></rss>`

const scenarioFeedTwo = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Dos</title>
<item>
  <title>Alianza Lima gana el clásico</title>
  <description>Resumen del partido.</description>
  <link>https://noticias.pe/deportes/clasico</link>
  <pubDate>Tue, 10 Jun 2025 08:45:00 -0500</pubDate>
</item>
</channel></rss>`

func feedServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestScenario_IngestDedupAndEmptyQuery(t *testing.T) {
	one := feedServer(t, scenarioFeedOne)
	two := feedServer(t, scenarioFeedTwo)

	orch := ingestion.New(feed.New(feed.Config{Timeout: 5 * time.Second}), ingestion.Config{
		Sources: []models.Source{
			{Name: "Uno", URL: one.URL, Active: true},
			{Name: "Dos", URL: two.URL, Active: true},
		},
	})

	result, err := orch.FetchAll(t.Context())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(result.Documents) != 3 {
		t.Fatalf("fetched %d documents, want 3", len(result.Documents))
	}

	st := store.NewMemoryStore()
	if err := st.UpsertAll(t.Context(), result.Documents); err != nil {
		t.Fatal(err)
	}
	if n, _ := st.Count(t.Context()); n != 2 {
		t.Fatalf("stored %d documents, want 2", n)
	}

	gen := &fakeGenerator{configured: true, reply: "no debería llamarse"}
	asst := New(st, gen, preferences.NewService(preferences.NewMemoryRepository()), nil, Config{})

	resp, err := asst.Ask(t.Context(), "noticias de economía", models.NewConversation(time.Now()))
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if resp.Type != models.ResponseEmptyQuery {
		t.Errorf("Type = %v, want %v", resp.Type, models.ResponseEmptyQuery)
	}
	if gen.completes != 0 || gen.classifyCall != 0 {
		t.Errorf("generator called %d/%d times, want 0", gen.completes, gen.classifyCall)
	}
}
