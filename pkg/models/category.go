package models

import (
	"fmt"
	"strings"
	"time"
)

// Lima is the newsroom time zone. Peru does not observe daylight saving time.
var Lima = time.FixedZone("PET", -5*60*60)

// Category is the closed set of news sections.
type Category string

const (
	CategoryPolitics      Category = "Política"
	CategoryEconomy       Category = "Economía"
	CategorySports        Category = "Deportes"
	CategoryTechnology    Category = "Tecnología"
	CategoryCTI           Category = "CTI"
	CategoryHealth        Category = "Salud"
	CategoryEntertainment Category = "Entretenimiento"
	CategoryGeneral       Category = "General"
)

var allCategories = []Category{
	CategoryPolitics,
	CategoryEconomy,
	CategorySports,
	CategoryTechnology,
	CategoryCTI,
	CategoryHealth,
	CategoryEntertainment,
	CategoryGeneral,
}

// AllCategories returns every category in display order.
func AllCategories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

func (c Category) String() string {
	return string(c)
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range allCategories {
		if c == known {
			return true
		}
	}
	return false
}

var categoryAliases = map[string]Category{
	"politica":        CategoryPolitics,
	"política":        CategoryPolitics,
	"politics":        CategoryPolitics,
	"economia":        CategoryEconomy,
	"economía":        CategoryEconomy,
	"economy":         CategoryEconomy,
	"deportes":        CategorySports,
	"deporte":         CategorySports,
	"sports":          CategorySports,
	"tecnologia":      CategoryTechnology,
	"tecnología":      CategoryTechnology,
	"technology":      CategoryTechnology,
	"tech":            CategoryTechnology,
	"cti":             CategoryCTI,
	"salud":           CategoryHealth,
	"health":          CategoryHealth,
	"entretenimiento": CategoryEntertainment,
	"entertainment":   CategoryEntertainment,
	"general":         CategoryGeneral,
}

// ParseCategory resolves a display name or alias, case-insensitively.
func ParseCategory(s string) (Category, error) {
	if c, ok := categoryAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// JoinCategories renders categories as a comma separated list.
func JoinCategories(cats []Category) string {
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

// Source describes one RSS/Atom endpoint.
type Source struct {
	Name   string `json:"name" mapstructure:"name"`
	URL    string `json:"url" mapstructure:"url"`
	Active bool   `json:"active" mapstructure:"active"`
}

// RawItem is a feed entry before normalization. Every field may be empty.
type RawItem struct {
	Title       string
	Description string
	Link        string
	PubDate     string
}
