// Package reader downloads article pages and extracts their readable text.
package reader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html/charset"
)

const maxPageSize = 5 << 20

// Config holds reader configuration.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Article is the readable part of a page.
type Article struct {
	Title   string
	Text    string
	Excerpt string
}

// Reader fetches pages over HTTP.
type Reader struct {
	client    *http.Client
	userAgent string
}

// New creates a reader.
func New(config Config) *Reader {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "NewsApp/1.0"
	}
	return &Reader{
		client:    &http.Client{Timeout: config.Timeout},
		userAgent: config.UserAgent,
	}
}

// Read downloads pageURL and extracts the article.
func (r *Reader) Read(ctx context.Context, pageURL string) (*Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: HTTP %d", pageURL, resp.StatusCode)
	}

	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		body = resp.Body
	}
	raw, err := io.ReadAll(io.LimitReader(body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", pageURL, err)
	}

	return Extract(string(raw), pageURL)
}

var (
	whitespace = regexp.MustCompile(`\s+`)
	blockOpen  = regexp.MustCompile(`<(div|p|br|li|td|tr|h[1-6])([\s>/])`)
	blockClose = regexp.MustCompile(`</(div|p|li|td|tr|h[1-6])>`)
)

// Extract runs readability over rawHTML and flattens the result to text.
func Extract(rawHTML, pageURL string) (*Article, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to extract article: %w", err)
	}

	// block elements are padded so their text does not run together
	spaced := blockOpen.ReplaceAllString(article.Content, " <$1$2")
	spaced = blockClose.ReplaceAllString(spaced, "</$1> ")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(spaced))
	if err != nil {
		return nil, fmt.Errorf("failed to parse article html: %w", err)
	}

	return &Article{
		Title:   strings.TrimSpace(article.Title),
		Text:    strings.TrimSpace(whitespace.ReplaceAllString(doc.Text(), " ")),
		Excerpt: article.Excerpt,
	}, nil
}
