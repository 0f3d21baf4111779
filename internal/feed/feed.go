// Package feed fetches RSS and Atom feeds and turns them into raw items.
package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/CristhianJ12/NewsApp/pkg/models"
)

// Config holds feed adapter configuration.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// RawArchive stores the raw body of every fetched feed.
type RawArchive interface {
	PutFeed(ctx context.Context, source string, fetchedAt time.Time, body []byte, contentType string) error
}

// Adapter fetches and parses a single feed source.
type Adapter struct {
	config  Config
	archive RawArchive
}

// New creates a new Adapter with the given configuration.
func New(config Config) *Adapter {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "NewsApp/1.0"
	}
	return &Adapter{config: config}
}

// WithArchive makes the adapter keep a copy of every raw feed body.
func (a *Adapter) WithArchive(archive RawArchive) *Adapter {
	a.archive = archive
	return a
}

// Fetch downloads src and returns its items. When the URL serves an HTML
// page that advertises a feed, the advertised feed is fetched instead.
func (a *Adapter) Fetch(ctx context.Context, src models.Source) ([]models.RawItem, error) {
	body, contentType, err := a.get(ctx, src.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", src.Name, err)
	}

	items, err := ParseFeed(body, contentType)
	if errors.Is(err, ErrNotFeed) && isHTML(contentType) {
		alt, ok := discoverFeed(body, src.URL)
		if !ok {
			return nil, fmt.Errorf("%s: %w", src.Name, err)
		}
		slog.Debug("following advertised feed", "source", src.Name, "url", alt)
		body, contentType, err = a.get(ctx, alt)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", src.Name, err)
		}
		items, err = ParseFeed(body, contentType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", src.Name, err)
	}

	a.store(ctx, src, body, contentType)

	slog.Debug("fetched feed", "source", src.Name, "items", len(items))
	return items, nil
}

func (a *Adapter) get(ctx context.Context, target string) ([]byte, string, error) {
	var (
		body        []byte
		contentType string
		status      int
	)

	c := colly.NewCollector(
		colly.UserAgent(a.config.UserAgent),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(a.config.Timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html;q=0.8")
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
		contentType = r.Headers.Get("Content-Type")
	})

	if err := c.Visit(target); err != nil {
		return nil, "", err
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if status >= 400 {
		return nil, "", fmt.Errorf("unexpected status %d", status)
	}
	if body == nil {
		return nil, "", fmt.Errorf("empty response from %s", target)
	}

	return body, utf8ContentType(contentType), nil
}

func (a *Adapter) store(ctx context.Context, src models.Source, body []byte, contentType string) {
	if a.archive == nil {
		return
	}
	if err := a.archive.PutFeed(ctx, src.Name, time.Now().UTC(), body, contentType); err != nil {
		slog.Warn("failed to archive raw feed", "source", src.Name, "error", err)
	}
}

// discoverFeed looks for <link rel="alternate"> pointing at an RSS or Atom feed.
func discoverFeed(body []byte, pageURL string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false
	}

	var href string
	doc.Find(`link[rel="alternate"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		typ, _ := s.Attr("type")
		if !strings.Contains(typ, "rss") && !strings.Contains(typ, "atom") {
			return true
		}
		href, _ = s.Attr("href")
		return href == ""
	})
	if href == "" {
		return "", false
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	return base.ResolveReference(ref).String(), true
}

func isHTML(contentType string) bool {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// colly already transcodes bodies whose Content-Type names a charset, so the
// charset is rewritten to match the bytes we hand on.
func utf8ContentType(contentType string) string {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || params["charset"] == "" {
		return contentType
	}
	params["charset"] = "utf-8"
	return mime.FormatMediaType(mediaType, params)
}
