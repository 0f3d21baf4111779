package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/CristhianJ12/NewsApp/pkg/models"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
  <title>RPP</title>
  <item>
    <title>Congreso aprueba ley</title>
    <description><![CDATA[<p>Resumen corto</p>]]></description>
    <link>https://rpp.pe/politica/1</link>
    <pubDate>Tue, 10 Jun 2025 08:30:00 -0500</pubDate>
  </item>
  <item>
    <title>Selección entrena</title>
    <description>corto</description>
    <content:encoded><![CDATA[<p>Texto completo del artículo</p>]]></content:encoded>
    <link>https://rpp.pe/deportes/2</link>
    <dc:date>2025-06-10T09:00:00Z</dc:date>
  </item>
</channel>
</rss>`

const atomFixture = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Gestión</title>
  <entry>
    <title>El dólar baja</title>
    <link rel="self" href="https://gestion.pe/self"/>
    <link rel="alternate" href="https://gestion.pe/economia/1"/>
    <summary>Tipo de cambio</summary>
    <updated>2025-06-10T10:00:00Z</updated>
  </entry>
</feed>`

func TestParseFeed_RSS(t *testing.T) {
	items, err := ParseFeed([]byte(rssFixture), "application/rss+xml")
	if err != nil {
		t.Fatalf("ParseFeed() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}

	want := models.RawItem{
		Title:       "Congreso aprueba ley",
		Description: "<p>Resumen corto</p>",
		Link:        "https://rpp.pe/politica/1",
		PubDate:     "Tue, 10 Jun 2025 08:30:00 -0500",
	}
	if items[0] != want {
		t.Errorf("items[0] = %+v, want %+v", items[0], want)
	}

	if items[1].Description != "<p>Texto completo del artículo</p>" {
		t.Errorf("content:encoded should win over description, got %q", items[1].Description)
	}
	if items[1].PubDate != "2025-06-10T09:00:00Z" {
		t.Errorf("dc:date should be used when pubDate is missing, got %q", items[1].PubDate)
	}
}

func TestParseFeed_Atom(t *testing.T) {
	items, err := ParseFeed([]byte(atomFixture), "application/atom+xml")
	if err != nil {
		t.Fatalf("ParseFeed() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}
	if items[0].Link != "https://gestion.pe/economia/1" {
		t.Errorf("Link = %q", items[0].Link)
	}
	if items[0].Description != "Tipo de cambio" || items[0].PubDate != "2025-06-10T10:00:00Z" {
		t.Errorf("item = %+v", items[0])
	}
}

func TestParseFeed_Latin1Prolog(t *testing.T) {
	body := []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><rss><channel><item><title>Per\xfa</title><link>https://a/1</link></item></channel></rss>")

	items, err := ParseFeed(body, "application/xml")
	if err != nil {
		t.Fatalf("ParseFeed() error = %v", err)
	}
	if len(items) != 1 || items[0].Title != "Perú" {
		t.Errorf("items = %+v", items)
	}
}

func TestParseFeed_CharsetFromContentType(t *testing.T) {
	body := []byte("<rss><channel><item><title>Espa\xf1a</title><link>https://a/1</link></item></channel></rss>")

	items, err := ParseFeed(body, "text/xml; charset=iso-8859-1")
	if err != nil {
		t.Fatalf("ParseFeed() error = %v", err)
	}
	if len(items) != 1 || items[0].Title != "España" {
		t.Errorf("items = %+v", items)
	}
}

func TestParseFeed_NotFeed(t *testing.T) {
	_, err := ParseFeed([]byte("<!DOCTYPE html><html><body>hola</body></html>"), "text/html")
	if !errors.Is(err, ErrNotFeed) {
		t.Errorf("ParseFeed() error = %v, want ErrNotFeed", err)
	}
}

func TestAdapter_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
		w.Write([]byte(rssFixture))
	}))
	defer server.Close()

	a := New(Config{Timeout: 5 * time.Second})
	items, err := a.Fetch(t.Context(), models.Source{Name: "RPP", URL: server.URL, Active: true})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(items) != 2 {
		t.Errorf("len(items) = %d, want 2", len(items))
	}
}

func TestAdapter_Fetch_SendsUserAgent(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rssFixture))
	}))
	defer server.Close()

	a := New(Config{UserAgent: "NewsAppTest/1.0"})
	if _, err := a.Fetch(t.Context(), models.Source{Name: "RPP", URL: server.URL}); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got != "NewsAppTest/1.0" {
		t.Errorf("User-Agent = %q", got)
	}
}

func TestAdapter_Fetch_Latin1Header(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml; charset=ISO-8859-1")
		w.Write([]byte("<rss><channel><item><title>Per\xfa</title><link>https://a/1</link></item></channel></rss>"))
	}))
	defer server.Close()

	items, err := New(Config{}).Fetch(t.Context(), models.Source{Name: "latin", URL: server.URL})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(items) != 1 || items[0].Title != "Perú" {
		t.Errorf("items = %+v", items)
	}
}

func TestAdapter_Fetch_Autodiscovery(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head>
			<link rel="alternate" type="application/json" href="/feed.json">
			<link rel="alternate" type="application/rss+xml" href="/rss.xml">
		</head><body></body></html>`))
	})
	mux.HandleFunc("/rss.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rssFixture))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	items, err := New(Config{}).Fetch(t.Context(), models.Source{Name: "html", URL: server.URL + "/"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(items) != 2 {
		t.Errorf("len(items) = %d, want 2", len(items))
	}
}

func TestAdapter_Fetch_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusNotFound)
		}},
		{"html without feed", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html><body>portada</body></html>"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			if _, err := New(Config{}).Fetch(t.Context(), models.Source{Name: "bad", URL: server.URL}); err == nil {
				t.Error("Fetch() should fail")
			}
		})
	}
}

func TestAdapter_Fetch_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssFixture))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if _, err := New(Config{}).Fetch(ctx, models.Source{Name: "RPP", URL: server.URL}); err == nil {
		t.Error("Fetch() with cancelled context should fail")
	}
}

type recordingArchive struct {
	mu     sync.Mutex
	bodies map[string]string
}

func (r *recordingArchive) PutFeed(_ context.Context, source string, _ time.Time, body []byte, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bodies[source] = string(body)
	return nil
}

func TestAdapter_Fetch_ArchivesRawBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rssFixture))
	}))
	defer server.Close()

	archive := &recordingArchive{bodies: map[string]string{}}
	a := New(Config{}).WithArchive(archive)

	if _, err := a.Fetch(t.Context(), models.Source{Name: "RPP", URL: server.URL}); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !strings.Contains(archive.bodies["RPP"], "Congreso aprueba ley") {
		t.Errorf("archived body = %q", archive.bodies["RPP"])
	}
}

func TestParseFeed_RSSLinkBeforeDescription(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Perú21</title>
<item><title>A</title><link>https://peru21.pe/a</link><description>Hola&nbsp;&nbsp;mundo</description><pubDate>Tue, 5 Mar 2024 10:00:00 -0500</pubDate></item>
<item><title>B</title><link>https://peru21.pe/b</link><description>dos</description></item>
<item><title>C</title><link>https://peru21.pe/c</link><description>tres</description></item>
</channel></rss>`

	items, err := ParseFeed([]byte(body), "application/rss+xml; charset=utf-8")
	if err != nil {
		t.Fatalf("ParseFeed() error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3: %+v", len(items), items)
	}
	for i, want := range []string{"https://peru21.pe/a", "https://peru21.pe/b", "https://peru21.pe/c"} {
		if items[i].Link != want {
			t.Errorf("items[%d].Link = %q, want %q", i, items[i].Link, want)
		}
	}
	if items[0].PubDate != "Tue, 5 Mar 2024 10:00:00 -0500" {
		t.Errorf("items[0].PubDate = %q", items[0].PubDate)
	}
	if items[2].Description != "tres" {
		t.Errorf("items[2].Description = %q", items[2].Description)
	}
}
