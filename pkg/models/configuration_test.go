package models

import (
	"encoding/json"
	"slices"
	"testing"
	"time"
)

func TestDefaultConfiguration(t *testing.T) {
	cfg := DefaultConfiguration()

	if cfg.ID != DefaultConfigurationID {
		t.Errorf("ID = %q, want %q", cfg.ID, DefaultConfigurationID)
	}
	if !cfg.AlertsEnabled {
		t.Error("alerts should be enabled by default")
	}
	if cfg.MorningConsolidation != "08:00" || cfg.EveningConsolidation != "17:00" {
		t.Errorf("consolidation times = %q/%q", cfg.MorningConsolidation, cfg.EveningConsolidation)
	}
}

func TestUserConfiguration_ActiveCategories(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.ExcludedCategories = []Category{CategoryEntertainment}
	cfg.WeeklyPreferences[Monday] = DayPreference{
		ActiveCategories: []Category{CategoryPolitics, CategoryEconomy},
		ExclusiveMode:    true,
	}
	cfg.WeeklyPreferences[Tuesday] = DayPreference{
		ActiveCategories: []Category{CategorySports},
		ExclusiveMode:    false,
	}

	t.Run("exclusive day", func(t *testing.T) {
		got := cfg.ActiveCategories(Monday)
		want := []Category{CategoryPolitics, CategoryEconomy}
		if !slices.Equal(got, want) {
			t.Errorf("ActiveCategories(Monday) = %v, want %v", got, want)
		}
	})

	t.Run("non exclusive day falls back to all minus excluded", func(t *testing.T) {
		got := cfg.ActiveCategories(Tuesday)
		if slices.Contains(got, CategoryEntertainment) {
			t.Errorf("excluded category present: %v", got)
		}
		if len(got) != len(AllCategories())-1 {
			t.Errorf("len = %d, want %d", len(got), len(AllCategories())-1)
		}
	})

	t.Run("day without preference", func(t *testing.T) {
		got := cfg.ActiveCategories(Sunday)
		if len(got) != len(AllCategories())-1 {
			t.Errorf("len = %d, want %d", len(got), len(AllCategories())-1)
		}
	})
}

func TestUserConfiguration_CloneIsDeep(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.WeeklyPreferences[Friday] = DayPreference{ActiveCategories: []Category{CategoryCTI}}
	cfg.FollowedKeywords = []string{"sunat"}

	clone := cfg.Clone()
	clone.FollowedKeywords[0] = "indeci"
	pref := clone.WeeklyPreferences[Friday]
	pref.ActiveCategories[0] = CategoryHealth

	if cfg.FollowedKeywords[0] != "sunat" {
		t.Error("clone shares FollowedKeywords")
	}
	if cfg.WeeklyPreferences[Friday].ActiveCategories[0] != CategoryCTI {
		t.Error("clone shares day preferences")
	}
}

func TestWeekdayOf(t *testing.T) {
	tests := []struct {
		date time.Time
		want Weekday
	}{
		{time.Date(2025, 6, 9, 10, 0, 0, 0, time.UTC), Monday},
		{time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC), Wednesday},
		{time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC), Sunday},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			if got := WeekdayOf(tt.date); got != tt.want {
				t.Errorf("WeekdayOf(%v) = %v, want %v", tt.date, got, tt.want)
			}
		})
	}
}

func TestParseWeekday(t *testing.T) {
	tests := map[string]Weekday{
		"lunes":     Monday,
		"Miércoles": Wednesday,
		"miercoles": Wednesday,
		"SABADO":    Saturday,
		"sunday":    Sunday,
	}
	for in, want := range tests {
		got, err := ParseWeekday(in)
		if err != nil {
			t.Errorf("ParseWeekday(%q) error = %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseWeekday(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := ParseWeekday("feriado"); err == nil {
		t.Error("ParseWeekday(feriado) should fail")
	}
}

func TestWeekday_JSONMapKeys(t *testing.T) {
	prefs := map[Weekday]DayPreference{Thursday: {ExclusiveMode: true}}

	data, err := json.Marshal(prefs)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `{"THURSDAY":{"active_categories":null,"exclusive_mode":true}}` {
		t.Errorf("Marshal() = %s", data)
	}

	var decoded map[Weekday]DayPreference
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !decoded[Thursday].ExclusiveMode {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestParseCategory(t *testing.T) {
	tests := map[string]Category{
		"Política":   CategoryPolitics,
		"politica":   CategoryPolitics,
		"ECONOMÍA":   CategoryEconomy,
		"sports":     CategorySports,
		"tecnologia": CategoryTechnology,
		"cti":        CategoryCTI,
	}
	for in, want := range tests {
		got, err := ParseCategory(in)
		if err != nil || got != want {
			t.Errorf("ParseCategory(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseCategory("clima"); err == nil {
		t.Error("ParseCategory(clima) should fail")
	}
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("17:45")
	if err != nil || h != 17 || m != 45 {
		t.Errorf("ParseClock() = %d, %d, %v", h, m, err)
	}
	if _, _, err := ParseClock("25:00"); err == nil {
		t.Error("ParseClock(25:00) should fail")
	}
}

func TestConversation_AppendKeepsLastTen(t *testing.T) {
	now := time.Now()
	conv := NewConversation(now)

	for i := 0; i < 12; i++ {
		conv = conv.Append(NewUserMessage(string(rune('a'+i)), now))
	}

	if len(conv.Messages) != MaxConversationMessages {
		t.Fatalf("len = %d, want %d", len(conv.Messages), MaxConversationMessages)
	}
	if conv.Messages[0].Text != "c" {
		t.Errorf("oldest message = %q, want %q", conv.Messages[0].Text, "c")
	}

	last := conv.LastTurns(3)
	if len(last) != 3 || last[2].Text != "l" {
		t.Errorf("LastTurns(3) = %v", last)
	}
}

func TestConversation_TracksMentionedDocuments(t *testing.T) {
	conv := NewConversation(time.Now())
	conv = conv.Append(NewAssistantMessage("respuesta", time.Now(), []string{"d1", "d2"}))

	if !slices.Equal(conv.LastMentionedDocumentIDs, []string{"d1", "d2"}) {
		t.Errorf("LastMentionedDocumentIDs = %v", conv.LastMentionedDocumentIDs)
	}
	if conv.Messages[0].ID == "" {
		t.Error("messages should get an id")
	}
}
