// Package preferences manages the per-weekday category configuration.
package preferences

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/CristhianJ12/NewsApp/pkg/models"
)

// Service reads and updates the user configuration. Every update is a
// read-modify-write serialized by a mutex.
type Service struct {
	repo Repository
	mu   sync.Mutex
	now  func() time.Time

	obsMu     sync.Mutex
	observers map[chan models.UserConfiguration]struct{}
}

// NewService creates a Service over repo.
func NewService(repo Repository) *Service {
	return &Service{
		repo:      repo,
		now:       time.Now,
		observers: make(map[chan models.UserConfiguration]struct{}),
	}
}

// Get returns the stored configuration or the defaults when none exists.
func (s *Service) Get(ctx context.Context) (models.UserConfiguration, error) {
	cfg, err := s.repo.Load(ctx)
	if err != nil {
		return models.UserConfiguration{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg == nil {
		return models.DefaultConfiguration(), nil
	}
	return *cfg, nil
}

// Save stores cfg as the configuration.
func (s *Service) Save(ctx context.Context, cfg models.UserConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store(ctx, cfg)
}

func (s *Service) store(ctx context.Context, cfg models.UserConfiguration) error {
	cfg.ID = models.DefaultConfigurationID
	cfg.UpdatedAt = s.now()
	if err := s.repo.Store(ctx, cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	s.broadcast(cfg)
	return nil
}

func (s *Service) update(ctx context.Context, fn func(*models.UserConfiguration) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.Get(ctx)
	if err != nil {
		return err
	}
	cfg = cfg.Clone()
	if err := fn(&cfg); err != nil {
		return err
	}
	return s.store(ctx, cfg)
}

// Observe emits the current configuration and every later change until ctx is done.
func (s *Service) Observe(ctx context.Context) (<-chan models.UserConfiguration, error) {
	cfg, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	ch := make(chan models.UserConfiguration, 1)
	ch <- cfg

	s.obsMu.Lock()
	s.observers[ch] = struct{}{}
	s.obsMu.Unlock()

	go func() {
		<-ctx.Done()
		s.obsMu.Lock()
		delete(s.observers, ch)
		close(ch)
		s.obsMu.Unlock()
	}()
	return ch, nil
}

func (s *Service) broadcast(cfg models.UserConfiguration) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	for ch := range s.observers {
		offer(ch, cfg.Clone())
	}
}

// offer replaces any value the observer has not read yet.
func offer(ch chan models.UserConfiguration, cfg models.UserConfiguration) {
	for {
		select {
		case ch <- cfg:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// SetDayPreference replaces the preference of one weekday.
func (s *Service) SetDayPreference(ctx context.Context, day models.Weekday, categories []models.Category, exclusive bool) error {
	if !day.Valid() {
		return fmt.Errorf("invalid weekday %d", int(day))
	}
	for _, c := range categories {
		if !c.Valid() {
			return fmt.Errorf("unknown category %q", c)
		}
	}

	err := s.update(ctx, func(cfg *models.UserConfiguration) error {
		pref := cfg.WeeklyPreferences[day]
		pref.ActiveCategories = slices.Clone(categories)
		pref.ExclusiveMode = exclusive
		cfg.WeeklyPreferences[day] = pref
		return nil
	})
	if err != nil {
		return err
	}
	slog.Info("day preference updated", "day", day.Key(), "categories", models.JoinCategories(categories), "exclusive", exclusive)
	return nil
}

// ExcludeCategory adds cat to the globally excluded categories.
func (s *Service) ExcludeCategory(ctx context.Context, cat models.Category) error {
	if !cat.Valid() {
		return fmt.Errorf("unknown category %q", cat)
	}
	return s.update(ctx, func(cfg *models.UserConfiguration) error {
		if !slices.Contains(cfg.ExcludedCategories, cat) {
			cfg.ExcludedCategories = append(cfg.ExcludedCategories, cat)
		}
		return nil
	})
}

// IncludeCategory removes cat from the excluded categories.
func (s *Service) IncludeCategory(ctx context.Context, cat models.Category) error {
	return s.update(ctx, func(cfg *models.UserConfiguration) error {
		cfg.ExcludedCategories = slices.DeleteFunc(cfg.ExcludedCategories, func(c models.Category) bool { return c == cat })
		return nil
	})
}

// FollowKeyword appends keyword to the followed keywords.
func (s *Service) FollowKeyword(ctx context.Context, keyword string) error {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return fmt.Errorf("keyword must not be empty")
	}
	return s.update(ctx, func(cfg *models.UserConfiguration) error {
		if !slices.Contains(cfg.FollowedKeywords, keyword) {
			cfg.FollowedKeywords = append(cfg.FollowedKeywords, keyword)
		}
		return nil
	})
}

// PreferSource appends source to the preferred sources.
func (s *Service) PreferSource(ctx context.Context, source string) error {
	source = strings.TrimSpace(source)
	if source == "" {
		return fmt.Errorf("source must not be empty")
	}
	return s.update(ctx, func(cfg *models.UserConfiguration) error {
		if !slices.Contains(cfg.PreferredSources, source) {
			cfg.PreferredSources = append(cfg.PreferredSources, source)
		}
		return nil
	})
}

// SetAlerts enables or disables consolidation alerts.
func (s *Service) SetAlerts(ctx context.Context, enabled bool) error {
	return s.update(ctx, func(cfg *models.UserConfiguration) error {
		cfg.AlertsEnabled = enabled
		return nil
	})
}

// SetConsolidationTimes sets the morning and evening digest times ("HH:MM").
// An empty value keeps the current time.
func (s *Service) SetConsolidationTimes(ctx context.Context, morning, evening string) error {
	for _, v := range []string{morning, evening} {
		if v == "" {
			continue
		}
		if _, _, err := models.ParseClock(v); err != nil {
			return err
		}
	}
	return s.update(ctx, func(cfg *models.UserConfiguration) error {
		if morning != "" {
			cfg.MorningConsolidation = morning
		}
		if evening != "" {
			cfg.EveningConsolidation = evening
		}
		return nil
	})
}

// ActiveCategoriesFor returns the categories shown on day.
func (s *Service) ActiveCategoriesFor(ctx context.Context, day models.Weekday) ([]models.Category, error) {
	cfg, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return cfg.ActiveCategories(day), nil
}

// ActiveCategoriesForToday returns the categories shown today.
func (s *Service) ActiveCategoriesForToday(ctx context.Context) ([]models.Category, error) {
	return s.ActiveCategoriesFor(ctx, models.WeekdayOf(s.now().In(models.Lima)))
}

// IsExcluded reports whether cat is globally excluded.
func (s *Service) IsExcluded(ctx context.Context, cat models.Category) (bool, error) {
	cfg, err := s.Get(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(cfg.ExcludedCategories, cat), nil
}
