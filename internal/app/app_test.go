package app

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/CristhianJ12/NewsApp/internal/config"
	"github.com/CristhianJ12/NewsApp/pkg/models"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Uno</title>
<item>
  <title>Alianza Lima gana el clásico</title>
  <description>El equipo íntimo venció en Matute.</description>
  <link>https://noticias.pe/deportes/clasico</link>
</item>
</channel></rss>`

func testConfig(t *testing.T, feedURL string) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Store.SnapshotPath = filepath.Join(dir, "documents.json")
	cfg.Preferences.Path = filepath.Join(dir, "preferences.yaml")
	cfg.Feeds.Timeout = 5 * time.Second
	cfg.Feeds.Sources = []models.Source{{Name: "Uno", URL: feedURL, Active: true}}
	return cfg
}

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
		w.Write([]byte(testFeed))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNew_RefreshAndStats(t *testing.T) {
	server := feedServer(t)
	cfg := testConfig(t, server.URL)

	a, err := New(t.Context(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := a.Pipeline.Refresh(t.Context()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	stats, err := a.Stats(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 1 || stats.LastIngestion.IsZero() {
		t.Errorf("stats = %+v", stats)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// The snapshot survives a restart.
	b, err := New(t.Context(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if n, _ := b.Store.Count(t.Context()); n != 1 {
		t.Errorf("documents after reopen = %d, want 1", n)
	}
}

func TestNew_UnknownDrivers(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{"store", func(c *config.Config) { c.Store.Driver = "sqlite" }},
		{"settings", func(c *config.Config) { c.Settings.Driver = "etcd" }},
		{"preferences", func(c *config.Config) { c.Preferences.Driver = "ini" }},
		{"llm", func(c *config.Config) { c.LLM.Provider = "markov" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, "http://127.0.0.1:1")
			tt.modify(&cfg)
			if _, err := New(t.Context(), cfg); err == nil {
				t.Error("New() expected error")
			}
		})
	}
}

func TestApp_SetAPIKey(t *testing.T) {
	a, err := New(t.Context(), testConfig(t, "http://127.0.0.1:1"))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if a.LLM.IsConfigured() {
		t.Fatal("generation service configured without a key")
	}
	if err := a.SetAPIKey(t.Context(), "clave"); err != nil {
		t.Fatal(err)
	}
	if !a.LLM.IsConfigured() {
		t.Error("generation service not configured after SetAPIKey")
	}
	if key, _ := a.Settings.APIKey(t.Context()); key != "clave" {
		t.Errorf("saved key = %q", key)
	}
}

func TestApp_OpenAIProviderNeedsNoKey(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.LLM.Provider = "openai"
	cfg.LLM.Endpoint = "http://localhost:11434/v1"

	a, err := New(t.Context(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if !a.LLM.IsConfigured() {
		t.Error("local chat backend should not need a key")
	}
}

func TestApp_Servers(t *testing.T) {
	a, err := New(t.Context(), testConfig(t, "http://127.0.0.1:1"))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	s, err := a.Scheduler(t.Context())
	if err != nil {
		t.Fatalf("Scheduler() error = %v", err)
	}
	if s.Entries() != 4 {
		t.Errorf("scheduler entries = %d, want 4", s.Entries())
	}

	if _, err := a.MCPServer(); err != nil {
		t.Errorf("MCPServer() error = %v", err)
	}

	w := httptest.NewRecorder()
	a.HTTPServer().Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	if w.Code != http.StatusOK {
		t.Errorf("stats status = %d", w.Code)
	}
}
