package preferences

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/CristhianJ12/NewsApp/pkg/models"
)

// RecordVersion is the only persisted layout this package reads and writes.
const RecordVersion = 1

// ErrUnsupportedVersion is returned when a stored record has an unknown version.
var ErrUnsupportedVersion = errors.New("unsupported configuration record version")

// Record is the persisted form of a UserConfiguration. Weekly preferences
// are keyed by the fixed weekday keys MONDAY..SUNDAY.
type Record struct {
	Version              int                  `json:"version" yaml:"version"`
	Weekly               map[string]DayRecord `json:"weekly" yaml:"weekly"`
	ExcludedCategories   []string             `json:"excluded_categories" yaml:"excluded_categories"`
	PreferredSources     []string             `json:"preferred_sources" yaml:"preferred_sources"`
	FollowedKeywords     []string             `json:"followed_keywords" yaml:"followed_keywords"`
	AlertsEnabled        bool                 `json:"alerts_enabled" yaml:"alerts_enabled"`
	MorningConsolidation string               `json:"morning_consolidation" yaml:"morning_consolidation"`
	EveningConsolidation string               `json:"evening_consolidation" yaml:"evening_consolidation"`
	UpdatedAt            time.Time            `json:"updated_at" yaml:"updated_at"`
}

// DayRecord is the persisted form of a DayPreference.
type DayRecord struct {
	ActiveCategories []string `json:"active_categories" yaml:"active_categories"`
	Exclusive        bool     `json:"exclusive" yaml:"exclusive"`
	PreferredTime    string   `json:"preferred_time,omitempty" yaml:"preferred_time,omitempty"`
}

// Encode converts cfg into its persisted form.
func Encode(cfg models.UserConfiguration) Record {
	rec := Record{
		Version:              RecordVersion,
		Weekly:               make(map[string]DayRecord, len(cfg.WeeklyPreferences)),
		ExcludedCategories:   categoryNames(cfg.ExcludedCategories),
		PreferredSources:     nonNil(cfg.PreferredSources),
		FollowedKeywords:     nonNil(cfg.FollowedKeywords),
		AlertsEnabled:        cfg.AlertsEnabled,
		MorningConsolidation: cfg.MorningConsolidation,
		EveningConsolidation: cfg.EveningConsolidation,
		UpdatedAt:            cfg.UpdatedAt,
	}
	for day, pref := range cfg.WeeklyPreferences {
		rec.Weekly[day.Key()] = DayRecord{
			ActiveCategories: categoryNames(pref.ActiveCategories),
			Exclusive:        pref.ExclusiveMode,
			PreferredTime:    pref.PreferredTime,
		}
	}
	return rec
}

// Decode validates rec and converts it back into a UserConfiguration.
func Decode(rec Record) (models.UserConfiguration, error) {
	if rec.Version != RecordVersion {
		return models.UserConfiguration{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, rec.Version)
	}

	cfg := models.DefaultConfiguration()
	for key, day := range rec.Weekly {
		weekday, err := models.WeekdayFromKey(key)
		if err != nil {
			return models.UserConfiguration{}, fmt.Errorf("invalid weekly preferences: %w", err)
		}
		cats, err := parseCategories(day.ActiveCategories)
		if err != nil {
			return models.UserConfiguration{}, fmt.Errorf("invalid preferences for %s: %w", key, err)
		}
		cfg.WeeklyPreferences[weekday] = models.DayPreference{
			ActiveCategories: cats,
			ExclusiveMode:    day.Exclusive,
			PreferredTime:    day.PreferredTime,
		}
	}

	excluded, err := parseCategories(rec.ExcludedCategories)
	if err != nil {
		return models.UserConfiguration{}, fmt.Errorf("invalid excluded categories: %w", err)
	}
	cfg.ExcludedCategories = excluded
	cfg.PreferredSources = nonNil(rec.PreferredSources)
	cfg.FollowedKeywords = nonNil(rec.FollowedKeywords)
	cfg.AlertsEnabled = rec.AlertsEnabled
	if rec.MorningConsolidation != "" {
		cfg.MorningConsolidation = rec.MorningConsolidation
	}
	if rec.EveningConsolidation != "" {
		cfg.EveningConsolidation = rec.EveningConsolidation
	}
	cfg.UpdatedAt = rec.UpdatedAt
	return cfg, nil
}

func categoryNames(cats []models.Category) []string {
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return names
}

func parseCategories(names []string) ([]models.Category, error) {
	cats := make([]models.Category, 0, len(names))
	for _, n := range names {
		c, err := models.ParseCategory(n)
		if err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, nil
}

func nonNil(s []string) []string {
	if len(s) == 0 {
		return []string{}
	}
	return slices.Clone(s)
}
