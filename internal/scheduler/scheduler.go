// Package scheduler runs the periodic jobs: source refresh, retention sweep
// and the morning and evening digests.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/CristhianJ12/NewsApp/internal/notify"
	"github.com/CristhianJ12/NewsApp/internal/pipeline"
	"github.com/CristhianJ12/NewsApp/pkg/models"
)

// DefaultJobTimeout bounds a single job run.
const DefaultJobTimeout = 5 * time.Minute

// Refresher is the refresh use case.
type Refresher interface {
	Refresh(ctx context.Context) (*pipeline.Result, error)
	Sweep(ctx context.Context) (int, error)
}

// DigestSender delivers consolidation digests.
type DigestSender interface {
	SendDigest(ctx context.Context, edition notify.Edition) (int, error)
}

// Config holds scheduler configuration. Empty specs disable the job.
type Config struct {
	RefreshSpec string
	SweepSpec   string
	JobTimeout  time.Duration
}

// Scheduler wraps a cron runner in the Lima time zone.
type Scheduler struct {
	cron      *cron.Cron
	refresher Refresher
	digests   DigestSender
	config    Config

	mu            sync.Mutex
	digestEntries []cron.EntryID
	morning       string
	evening       string
}

// New creates a Scheduler. digests may be nil to disable digest jobs.
func New(refresher Refresher, digests DigestSender, config Config) *Scheduler {
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultJobTimeout
	}
	logger := cronLogger{slog.With("component", "scheduler")}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(models.Lima),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		refresher: refresher,
		digests:   digests,
		config:    config,
	}
}

// DigestSpec converts an "HH:MM" consolidation time to a daily cron spec.
func DigestSpec(clock string) (string, error) {
	hour, minute, err := models.ParseClock(clock)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// Schedule registers the refresh and sweep jobs and the digests at the given
// consolidation times.
func (s *Scheduler) Schedule(morning, evening string) error {
	if s.config.RefreshSpec != "" {
		if _, err := s.cron.AddFunc(s.config.RefreshSpec, s.job("refresh", s.refresh)); err != nil {
			return fmt.Errorf("invalid refresh schedule %q: %w", s.config.RefreshSpec, err)
		}
	}
	if s.config.SweepSpec != "" {
		if _, err := s.cron.AddFunc(s.config.SweepSpec, s.job("sweep", s.sweep)); err != nil {
			return fmt.Errorf("invalid sweep schedule %q: %w", s.config.SweepSpec, err)
		}
	}
	return s.Reschedule(morning, evening)
}

// Reschedule replaces the digest jobs when the consolidation times changed.
func (s *Scheduler) Reschedule(morning, evening string) error {
	if s.digests == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if morning == s.morning && evening == s.evening && len(s.digestEntries) > 0 {
		return nil
	}

	editions := []notify.Edition{notify.Morning, notify.Evening}
	specs := make([]string, len(editions))
	for i, clock := range []string{morning, evening} {
		spec, err := DigestSpec(clock)
		if err != nil {
			return fmt.Errorf("invalid %s consolidation time: %w", editions[i], err)
		}
		specs[i] = spec
	}

	var entries []cron.EntryID
	for i, edition := range editions {
		id, err := s.cron.AddFunc(specs[i], s.job(string(edition)+" digest", func(ctx context.Context) error {
			_, err := s.digests.SendDigest(ctx, edition)
			return err
		}))
		if err != nil {
			for _, added := range entries {
				s.cron.Remove(added)
			}
			return fmt.Errorf("failed to schedule %s digest: %w", edition, err)
		}
		entries = append(entries, id)
	}

	for _, id := range s.digestEntries {
		s.cron.Remove(id)
	}
	s.digestEntries = entries
	s.morning, s.evening = morning, evening

	slog.Info("digests scheduled", "morning", morning, "evening", evening)
	return nil
}

// ConfigurationSource streams configuration changes.
type ConfigurationSource interface {
	Observe(ctx context.Context) (<-chan models.UserConfiguration, error)
}

// Run starts the cron runner and follows consolidation time changes until
// ctx is cancelled. It waits for running jobs before returning.
func (s *Scheduler) Run(ctx context.Context, prefs ConfigurationSource) error {
	updates, err := prefs.Observe(ctx)
	if err != nil {
		return fmt.Errorf("failed to observe preferences: %w", err)
	}

	s.cron.Start()
	slog.Info("scheduler started", "jobs", len(s.cron.Entries()))

	for {
		select {
		case <-ctx.Done():
			<-s.cron.Stop().Done()
			slog.Info("scheduler stopped")
			return nil
		case cfg, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			if err := s.Reschedule(cfg.MorningConsolidation, cfg.EveningConsolidation); err != nil {
				slog.Warn("failed to reschedule digests", "error", err)
			}
		}
	}
}

// Entries returns the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) refresh(ctx context.Context) error {
	_, err := s.refresher.Refresh(ctx)
	return err
}

func (s *Scheduler) sweep(ctx context.Context) error {
	_, err := s.refresher.Sweep(ctx)
	return err
}

func (s *Scheduler) job(name string, fn func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.JobTimeout)
		defer cancel()

		start := time.Now()
		if err := fn(ctx); err != nil {
			slog.Warn("job failed", "job", name, "error", err, "duration", time.Since(start))
			return
		}
		slog.Debug("job complete", "job", name, "duration", time.Since(start))
	}
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
