package models

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// DefaultConfigurationID is the id of the single configuration row.
const DefaultConfigurationID = "default"

// Weekday is a day of the week, Monday first.
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = map[Weekday]string{
	Monday:    "Lunes",
	Tuesday:   "Martes",
	Wednesday: "Miércoles",
	Thursday:  "Jueves",
	Friday:    "Viernes",
	Saturday:  "Sábado",
	Sunday:    "Domingo",
}

var weekdayKeys = map[Weekday]string{
	Monday:    "MONDAY",
	Tuesday:   "TUESDAY",
	Wednesday: "WEDNESDAY",
	Thursday:  "THURSDAY",
	Friday:    "FRIDAY",
	Saturday:  "SATURDAY",
	Sunday:    "SUNDAY",
}

// Weekdays returns the seven days, Monday first.
func Weekdays() []Weekday {
	return []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
}

// String returns the Spanish display name.
func (d Weekday) String() string {
	if name, ok := weekdayNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Weekday(%d)", int(d))
}

// Key returns the stable storage key of the day.
func (d Weekday) Key() string {
	return weekdayKeys[d]
}

// MarshalText encodes the day with its storage key, so JSON maps read MONDAY..SUNDAY.
func (d Weekday) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid weekday %d", int(d))
	}
	return []byte(d.Key()), nil
}

// UnmarshalText accepts storage keys and day names.
func (d *Weekday) UnmarshalText(text []byte) error {
	if day, err := WeekdayFromKey(string(text)); err == nil {
		*d = day
		return nil
	}
	day, err := ParseWeekday(string(text))
	if err != nil {
		return err
	}
	*d = day
	return nil
}

// Valid reports whether d is one of the seven days.
func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

// WeekdayOf returns the weekday of t.
func WeekdayOf(t time.Time) Weekday {
	if t.Weekday() == time.Sunday {
		return Sunday
	}
	return Weekday(t.Weekday())
}

// WeekdayFromKey resolves a storage key such as "MONDAY".
func WeekdayFromKey(key string) (Weekday, error) {
	for d, k := range weekdayKeys {
		if k == key {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday key %q", key)
}

var weekdayAliases = map[string]Weekday{
	"lunes":     Monday,
	"monday":    Monday,
	"martes":    Tuesday,
	"tuesday":   Tuesday,
	"miércoles": Wednesday,
	"miercoles": Wednesday,
	"wednesday": Wednesday,
	"jueves":    Thursday,
	"thursday":  Thursday,
	"viernes":   Friday,
	"friday":    Friday,
	"sábado":    Saturday,
	"sabado":    Saturday,
	"saturday":  Saturday,
	"domingo":   Sunday,
	"sunday":    Sunday,
}

// ParseWeekday accepts Spanish (with or without accents) and English day names.
func ParseWeekday(s string) (Weekday, error) {
	if d, ok := weekdayAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// DayPreference selects the categories shown on one weekday.
// With ExclusiveMode only ActiveCategories are shown that day.
type DayPreference struct {
	ActiveCategories []Category `json:"active_categories"`
	ExclusiveMode    bool       `json:"exclusive_mode"`
	PreferredTime    string     `json:"preferred_time,omitempty"`
}

// UserConfiguration is the single configuration row.
type UserConfiguration struct {
	ID                   string                    `json:"id"`
	WeeklyPreferences    map[Weekday]DayPreference `json:"weekly_preferences"`
	ExcludedCategories   []Category                `json:"excluded_categories"`
	PreferredSources     []string                  `json:"preferred_sources"`
	FollowedKeywords     []string                  `json:"followed_keywords"`
	AlertsEnabled        bool                      `json:"alerts_enabled"`
	MorningConsolidation string                    `json:"morning_consolidation"`
	EveningConsolidation string                    `json:"evening_consolidation"`
	UpdatedAt            time.Time                 `json:"updated_at"`
}

// DefaultConfiguration is used whenever no configuration has been stored yet.
func DefaultConfiguration() UserConfiguration {
	return UserConfiguration{
		ID:                   DefaultConfigurationID,
		WeeklyPreferences:    map[Weekday]DayPreference{},
		ExcludedCategories:   []Category{},
		PreferredSources:     []string{},
		FollowedKeywords:     []string{},
		AlertsEnabled:        true,
		MorningConsolidation: "08:00",
		EveningConsolidation: "17:00",
	}
}

// Clone returns a deep copy so callers can modify it without sharing state.
func (c UserConfiguration) Clone() UserConfiguration {
	out := c
	out.WeeklyPreferences = make(map[Weekday]DayPreference, len(c.WeeklyPreferences))
	for day, pref := range c.WeeklyPreferences {
		pref.ActiveCategories = slices.Clone(pref.ActiveCategories)
		out.WeeklyPreferences[day] = pref
	}
	out.ExcludedCategories = slices.Clone(c.ExcludedCategories)
	out.PreferredSources = slices.Clone(c.PreferredSources)
	out.FollowedKeywords = slices.Clone(c.FollowedKeywords)
	return out
}

// ActiveCategories applies the weekday rules: an exclusive preference wins,
// otherwise every category that is not globally excluded is active.
func (c UserConfiguration) ActiveCategories(day Weekday) []Category {
	if pref, ok := c.WeeklyPreferences[day]; ok && pref.ExclusiveMode {
		return slices.Clone(pref.ActiveCategories)
	}
	var active []Category
	for _, cat := range allCategories {
		if !slices.Contains(c.ExcludedCategories, cat) {
			active = append(active, cat)
		}
	}
	return active
}

// ParseClock parses an "HH:MM" consolidation time.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}
