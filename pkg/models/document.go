package models

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// RetentionWindow is how long an unsaved document stays in the daily collection.
const RetentionWindow = 24 * time.Hour

// ContextSnippetLength limits the content of a single document inside an assistant context.
const ContextSnippetLength = 1500

// Document represents a normalized news article.
type Document struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	FullContent       string    `json:"full_content"`
	ExecutiveSummary  string    `json:"executive_summary,omitempty"` // filled lazily by summarization
	Category          Category  `json:"category"`
	SourceName        string    `json:"source_name"`
	ResponsibleEntity string    `json:"responsible_entity,omitempty"`
	Keywords          []string  `json:"keywords,omitempty"`
	PublishedAt       time.Time `json:"published_at"`
	IngestedAt        time.Time `json:"ingested_at"`
	OriginalURL       string    `json:"original_url"`
	WasConsulted      bool      `json:"was_consulted"`
	ConsultCount      int       `json:"consult_count"`
	IsSaved           bool      `json:"is_saved"`
}

// GenerateDocumentID creates a deterministic ID from the article title and URL.
// The ID is the hex encoded MD5 of title+url, so re-ingesting an article collapses onto one record.
func GenerateDocumentID(title, url string) string {
	hash := md5.Sum([]byte(title + url))
	return hex.EncodeToString(hash[:])
}

// IsRecent reports whether the document was published inside the retention window.
func (d Document) IsRecent(now time.Time) bool {
	return !d.PublishedAt.Before(now.Add(-RetentionWindow))
}

// Expired reports whether the retention sweep may delete the document.
func (d Document) Expired(now time.Time) bool {
	return d.PublishedAt.Before(now.Add(-RetentionWindow)) && !d.IsSaved
}

// Score ranks the document against a query.
func (d Document) Score(query string, now time.Time) int {
	score := 0
	q := strings.ToLower(query)

	if strings.Contains(strings.ToLower(d.Title), q) {
		score += 50
	}
	for _, kw := range d.Keywords {
		if strings.Contains(q, strings.ToLower(kw)) {
			score += 20
		}
	}
	if d.IsRecent(now) {
		score += 30
	}
	if d.WasConsulted {
		score -= 10
	}
	return score
}

// KeywordBlob joins the keywords into the searchable form used by the stores.
func (d Document) KeywordBlob() string {
	return strings.Join(d.Keywords, ", ")
}

// Matches reports whether query is a case-insensitive substring of the title,
// the full content or the keyword blob.
func (d Document) Matches(query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(d.Title), q) ||
		strings.Contains(strings.ToLower(d.FullContent), q) ||
		strings.Contains(strings.ToLower(d.KeywordBlob()), q)
}

// ContextBlock renders the document for an assistant prompt.
func (d Document) ContextBlock() string {
	var b strings.Builder
	fmt.Fprintf(&b, "TÍTULO: %s\n", d.Title)
	fmt.Fprintf(&b, "DIARIO: %s\n", d.SourceName)
	fmt.Fprintf(&b, "CATEGORÍA: %s\n", d.Category)
	if d.ResponsibleEntity != "" {
		fmt.Fprintf(&b, "ENTIDAD: %s\n", d.ResponsibleEntity)
	}
	fmt.Fprintf(&b, "FECHA: %s\n", d.PublishedAt.In(Lima).Format("02/01/2006 15:04"))
	fmt.Fprintf(&b, "CONTENIDO: %s...\n", Truncate(d.FullContent, ContextSnippetLength))
	return b.String()
}

// SavedProjection builds the reduced record kept in the saved collection.
func (d Document) SavedProjection(savedAt time.Time) SavedDocument {
	summary := d.ExecutiveSummary
	if summary == "" {
		summary = Truncate(d.FullContent, 200)
	}
	return SavedDocument{
		ID:               d.ID,
		Title:            d.Title,
		ExecutiveSummary: summary,
		Category:         d.Category,
		SourceName:       d.SourceName,
		PublishedAt:      d.PublishedAt,
		SavedAt:          savedAt,
		OriginalURL:      d.OriginalURL,
	}
}

// SavedDocument is the permanent, reduced copy of a document the user kept.
type SavedDocument struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	ExecutiveSummary string    `json:"executive_summary"`
	Category         Category  `json:"category"`
	SourceName       string    `json:"source_name"`
	PublishedAt      time.Time `json:"published_at"`
	SavedAt          time.Time `json:"saved_at"`
	OriginalURL      string    `json:"original_url"`
	Tags             []string  `json:"tags,omitempty"`
}

// AsDocument maps a saved record back into the document shape used by readers.
func (s SavedDocument) AsDocument() Document {
	return Document{
		ID:               s.ID,
		Title:            s.Title,
		FullContent:      s.ExecutiveSummary,
		ExecutiveSummary: s.ExecutiveSummary,
		Category:         s.Category,
		SourceName:       s.SourceName,
		PublishedAt:      s.PublishedAt,
		IngestedAt:       s.SavedAt,
		OriginalURL:      s.OriginalURL,
		IsSaved:          true,
	}
}

// Stats summarizes the stored collections.
type Stats struct {
	Total         int              `json:"total"`
	Recent        int              `json:"recent"`
	Saved         int              `json:"saved"`
	ByCategory    map[Category]int `json:"by_category"`
	LastIngestion time.Time        `json:"last_ingestion,omitzero"`
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
