// Package normalizer turns raw feed items into canonical documents.
package normalizer

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/CristhianJ12/NewsApp/pkg/models"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	entityPattern     = regexp.MustCompile(`&[a-zA-Z][a-zA-Z0-9]*;`)
	whitespacePattern = regexp.MustCompile(`[\s\x{00a0}]+`)
)

// dateLayouts are tried in order; the first one that parses wins.
// Feeds also write single-digit days ("Tue, 5 Mar 2024"), which 02 rejects.
var dateLayouts = []string{
	"Mon, 02 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 02 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05.000Z",
	"2006-01-02 15:04:05",
}

// Normalize converts a raw feed item into a Document.
// Items without a title or link are dropped (ok is false).
func Normalize(item models.RawItem, sourceName string, now time.Time) (models.Document, bool) {
	title := strings.TrimSpace(item.Title)
	link := strings.TrimSpace(item.Link)
	if title == "" || link == "" {
		return models.Document{}, false
	}

	content := StripHTML(item.Description)
	if content == "" {
		content = title
	}

	text := strings.ToLower(title + " " + content)
	entity, _ := DetectEntity(text)

	return models.Document{
		ID:                models.GenerateDocumentID(title, link),
		Title:             title,
		FullContent:       content,
		Category:          Classify(title, content),
		SourceName:        sourceName,
		ResponsibleEntity: entity,
		Keywords:          ExtractKeywords(text),
		PublishedAt:       ParseDate(item.PubDate, now),
		IngestedAt:        now,
		OriginalURL:       link,
	}, true
}

// StripHTML removes tags, replaces named entities with a single space and
// collapses whitespace, including no-break spaces. Numeric entities are kept.
func StripHTML(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = entityPattern.ReplaceAllString(s, " ")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ParseDate parses a feed date, falling back to now when no layout matches.
func ParseDate(s string, now time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return now
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return now
}

type categoryRule struct {
	category models.Category
	keywords []string
}

// classificationRules is a priority cascade: the first matching group wins.
var classificationRules = []categoryRule{
	{models.CategoryCTI, []string{"concytec", "investigación", "innovación", "tecnología"}},
	{models.CategoryPolitics, []string{"congreso", "ministro", "presidente", "gobierno"}},
	{models.CategorySports, []string{"fútbol", "deporte", "campeón", "liga"}},
	{models.CategoryEconomy, []string{"dólar", "economía", "mercado", "banco"}},
	{models.CategoryTechnology, []string{"app", "software", "inteligencia artificial"}},
	{models.CategoryHealth, []string{"salud", "hospital", "medicina"}},
	{models.CategoryEntertainment, []string{"película", "música", "artista", "concierto"}},
}

// Classify assigns a category using plain substring containment on title and content.
func Classify(title, content string) models.Category {
	text := strings.ToLower(title + " " + content)
	for _, rule := range classificationRules {
		if containsAny(text, rule.keywords) {
			return rule.category
		}
	}
	return models.CategoryGeneral
}

var keywordLists = [][]string{
	{"concytec", "pct", "innovación", "investigación", "ciencia", "tecnología", "patente"},
	{"congreso", "ministro", "indeci", "sunat", "gobierno", "municipalidad"},
	{"cueva", "lapadula", "guerrero", "carrillo", "universitario", "alianza lima", "cristal"},
}

// ExtractKeywords returns the capitalized known terms found in text, without duplicates.
func ExtractKeywords(text string) []string {
	text = strings.ToLower(text)
	var keywords []string
	seen := make(map[string]bool)
	for _, list := range keywordLists {
		for _, term := range list {
			if !strings.Contains(text, term) {
				continue
			}
			kw := capitalize(term)
			if !seen[kw] {
				seen[kw] = true
				keywords = append(keywords, kw)
			}
		}
	}
	return keywords
}

type entityRule struct {
	trigger string
	entity  string
}

var entityRules = []entityRule{
	{"concytec", "CONCYTEC"},
	{"congreso", "Congreso de la República"},
	{"indeci", "INDECI"},
	{"sunat", "SUNAT"},
	{"ministerio", "Gobierno"},
	{"pcm", "PCM"},
	{"minedu", "MINEDU"},
	{"minsa", "MINSA"},
	{"produce", "PRODUCE"},
}

// DetectEntity returns the first organization whose trigger appears in text.
func DetectEntity(text string) (string, bool) {
	text = strings.ToLower(text)
	for _, rule := range entityRules {
		if strings.Contains(text, rule.trigger) {
			return rule.entity, true
		}
	}
	return "", false
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
