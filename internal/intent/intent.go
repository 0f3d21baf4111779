// Package intent maps user utterances to a closed set of intents using
// keyword heuristics.
package intent

import (
	"fmt"
	"strings"

	"github.com/CristhianJ12/NewsApp/pkg/models"
)

// Intent is one of DailySummary, SearchCategory, SearchText, ConfigureDay,
// SavedNews, RefreshSources or Unrecognized.
type Intent interface {
	isIntent()
}

// DailySummary asks for the news of the last 24 hours.
type DailySummary struct{}

// SearchCategory asks for news of one category.
type SearchCategory struct {
	Category models.Category
}

// SearchText is a free-text query.
type SearchText struct {
	Text string
}

// ConfigureDay sets the exclusive categories of a weekday.
type ConfigureDay struct {
	Day        models.Weekday
	Categories []models.Category
}

// SavedNews asks for the saved collection.
type SavedNews struct{}

// RefreshSources asks for a new ingestion run.
type RefreshSources struct{}

// Unrecognized is only produced from model labels; the heuristic cascade
// always falls back to SearchText.
type Unrecognized struct {
	Original string
}

func (DailySummary) isIntent()   {}
func (SearchCategory) isIntent() {}
func (SearchText) isIntent()     {}
func (ConfigureDay) isIntent()   {}
func (SavedNews) isIntent()      {}
func (RefreshSources) isIntent() {}
func (Unrecognized) isIntent()   {}

// Name returns a short label for logs.
func Name(i Intent) string {
	switch v := i.(type) {
	case DailySummary:
		return "daily_summary"
	case SearchCategory:
		return "search_category:" + v.Category.String()
	case SearchText:
		return "search_text"
	case ConfigureDay:
		return "configure_day:" + v.Day.Key()
	case SavedNews:
		return "saved_news"
	case RefreshSources:
		return "refresh_sources"
	case Unrecognized:
		return "unrecognized"
	default:
		panic(fmt.Sprintf("intent: unknown variant %T", i))
	}
}

var dailySummaryPhrases = []string{"qué hay", "resumen", "noticias de hoy", "últimas noticias"}

type weekdayTrigger struct {
	words []string
	day   models.Weekday
}

var weekdayTriggers = []weekdayTrigger{
	{[]string{"lunes"}, models.Monday},
	{[]string{"martes"}, models.Tuesday},
	{[]string{"miércoles", "miercoles"}, models.Wednesday},
	{[]string{"jueves"}, models.Thursday},
	{[]string{"viernes"}, models.Friday},
	{[]string{"sábado", "sabado"}, models.Saturday},
	{[]string{"domingo"}, models.Sunday},
}

type categoryTrigger struct {
	words    []string
	category models.Category
}

// searchTriggers are checked in order; the first match wins.
var searchTriggers = []categoryTrigger{
	{[]string{"deportes", "deporte"}, models.CategorySports},
	{[]string{"política", "político"}, models.CategoryPolitics},
	{[]string{"economía", "económico"}, models.CategoryEconomy},
	{[]string{"tecnología", "tech"}, models.CategoryTechnology},
	{[]string{"cti", "concytec", "investigación"}, models.CategoryCTI},
}

// configureTriggers collect every category named in a configuration request.
var configureTriggers = []categoryTrigger{
	{[]string{"deporte"}, models.CategorySports},
	{[]string{"política", "politica"}, models.CategoryPolitics},
	{[]string{"economía", "economia"}, models.CategoryEconomy},
	{[]string{"tecnología", "tecnologia"}, models.CategoryTechnology},
	{[]string{"entretenimiento", "espectáculo"}, models.CategoryEntertainment},
}

var (
	savedPhrases   = []string{"guardadas", "favoritas", "mis noticias"}
	refreshPhrases = []string{"actualiza", "refresca", "nuevas noticias"}
)

// Classify runs the heuristic cascade over the lowercased utterance.
// Matching is plain substring containment.
func Classify(utterance string) Intent {
	text := strings.ToLower(utterance)

	if containsAny(text, dailySummaryPhrases) {
		return DailySummary{}
	}
	if cfg, ok := configureDay(text); ok {
		return cfg
	}
	for _, t := range searchTriggers {
		if containsAny(text, t.words) {
			return SearchCategory{Category: t.category}
		}
	}
	if containsAny(text, savedPhrases) {
		return SavedNews{}
	}
	if containsAny(text, refreshPhrases) {
		return RefreshSources{}
	}
	return SearchText{Text: utterance}
}

// configureDay needs both the configuration verb and a weekday name.
func configureDay(text string) (ConfigureDay, bool) {
	if !strings.Contains(text, "configura") {
		return ConfigureDay{}, false
	}
	day, ok := weekdayIn(text)
	if !ok {
		return ConfigureDay{}, false
	}
	return ConfigureDay{Day: day, Categories: categoriesIn(text)}, true
}

func weekdayIn(text string) (models.Weekday, bool) {
	for _, t := range weekdayTriggers {
		if containsAny(text, t.words) {
			return t.day, true
		}
	}
	return 0, false
}

func categoriesIn(text string) []models.Category {
	var cats []models.Category
	for _, t := range configureTriggers {
		if containsAny(text, t.words) {
			cats = append(cats, t.category)
		}
	}
	if len(cats) == 0 {
		return []models.Category{models.CategoryGeneral}
	}
	return cats
}

// ParseModelLabel maps a label returned by the generation model
// (resumen_dia, buscar_categoria:X, buscar_texto:X, configurar:X,
// no_reconocida) to an intent.
func ParseModelLabel(label, utterance string) Intent {
	label = strings.Trim(strings.TrimSpace(label), "\"'`")
	key, arg, _ := strings.Cut(label, ":")
	key = strings.ToLower(strings.TrimSpace(key))
	arg = strings.TrimSpace(arg)

	switch key {
	case "resumen_dia":
		return DailySummary{}
	case "buscar_categoria":
		if cat, err := models.ParseCategory(arg); err == nil {
			return SearchCategory{Category: cat}
		}
		if arg != "" {
			return SearchText{Text: arg}
		}
	case "buscar_texto":
		if arg == "" {
			arg = utterance
		}
		return SearchText{Text: arg}
	case "configurar":
		text := strings.ToLower(utterance)
		if day, ok := weekdayIn(text); ok {
			return ConfigureDay{Day: day, Categories: categoriesIn(text)}
		}
	}
	return Unrecognized{Original: utterance}
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}
