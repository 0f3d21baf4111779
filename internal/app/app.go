// Package app builds every component from the configuration and wires them
// together. Commands and servers take what they need from an App.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CristhianJ12/NewsApp/internal/assistant"
	"github.com/CristhianJ12/NewsApp/internal/config"
	"github.com/CristhianJ12/NewsApp/internal/elasticsearch"
	"github.com/CristhianJ12/NewsApp/internal/events"
	"github.com/CristhianJ12/NewsApp/internal/feed"
	"github.com/CristhianJ12/NewsApp/internal/httpapi"
	"github.com/CristhianJ12/NewsApp/internal/ingestion"
	"github.com/CristhianJ12/NewsApp/internal/llm"
	"github.com/CristhianJ12/NewsApp/internal/mcp"
	"github.com/CristhianJ12/NewsApp/internal/notify"
	"github.com/CristhianJ12/NewsApp/internal/pipeline"
	"github.com/CristhianJ12/NewsApp/internal/preferences"
	"github.com/CristhianJ12/NewsApp/internal/reader"
	"github.com/CristhianJ12/NewsApp/internal/scheduler"
	"github.com/CristhianJ12/NewsApp/internal/settings"
	"github.com/CristhianJ12/NewsApp/internal/storage"
	"github.com/CristhianJ12/NewsApp/internal/store"
	"github.com/CristhianJ12/NewsApp/pkg/models"
)

// App holds the wired components.
type App struct {
	Config       config.Config
	Store        store.Store
	Settings     *settings.Settings
	Preferences  *preferences.Service
	LLM          *llm.Service
	Assistant    *assistant.Assistant
	Orchestrator *ingestion.Orchestrator
	Pipeline     *pipeline.Pipeline
	Bus          *events.Bus
	Digester     *notify.Digester

	// Archive and FeedArchive are nil when disabled.
	Archive     *elasticsearch.Client
	FeedArchive *storage.Client

	closers []func() error
}

// New builds an App. Close must be called to release connections and write
// the document snapshot.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg, Bus: &events.Bus{}}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	a.Store = st
	a.closers = append(a.closers, st.Close)

	kv, err := a.openSettings(ctx, cfg.Settings)
	if err != nil {
		return err
	}
	a.Settings = settings.New(kv)

	repo, err := a.openPreferences(ctx, cfg.Preferences)
	if err != nil {
		return err
	}
	a.Preferences = preferences.NewService(repo)

	a.LLM, err = a.openLLM(ctx, cfg.LLM)
	if err != nil {
		return err
	}

	if cfg.Archive.Enabled {
		a.Archive, err = elasticsearch.New(elasticsearch.Config{
			Addresses: cfg.Archive.Addresses,
			Index:     cfg.Archive.Index,
			Username:  cfg.Archive.Username,
			Password:  cfg.Archive.Password,
		})
		if err != nil {
			return fmt.Errorf("failed to create archive client: %w", err)
		}
		if err := a.Archive.CreateIndex(ctx); err != nil {
			slog.Warn("archive unavailable, continuing without it", "error", err)
			a.Archive = nil
		}
	}

	fetcher := feed.New(feed.Config{UserAgent: cfg.Feeds.UserAgent, Timeout: cfg.Feeds.Timeout})
	if cfg.Storage.Enabled {
		a.FeedArchive, err = storage.New(storage.Config{
			Endpoint:        cfg.Storage.Endpoint,
			Bucket:          cfg.Storage.Bucket,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			UseSSL:          cfg.Storage.UseSSL,
		})
		if err != nil {
			return fmt.Errorf("failed to create storage client: %w", err)
		}
		if err := a.FeedArchive.EnsureBucket(ctx); err != nil {
			slog.Warn("raw feed archive unavailable, continuing without it", "error", err)
			a.FeedArchive = nil
		} else {
			fetcher = fetcher.WithArchive(a.FeedArchive)
		}
	}

	a.Orchestrator = ingestion.New(fetcher, ingestion.Config{
		Sources:       cfg.Feeds.Sources,
		SourceTimeout: cfg.Feeds.Timeout,
	})

	pcfg := pipeline.Config{Recorder: a.Settings, Bus: a.Bus}
	if a.Archive != nil {
		pcfg.Archive = a.Archive
	}
	if a.FeedArchive != nil {
		pcfg.FeedArchive = a.FeedArchive
	}
	a.Pipeline = pipeline.New(a.Orchestrator, a.Store, pcfg)

	var articles assistant.ArticleReader
	if cfg.Assistant.FullTextSummaries {
		articles = reader.New(reader.Config{UserAgent: cfg.Feeds.UserAgent, Timeout: cfg.Assistant.ReaderTimeout})
	}
	a.Assistant = assistant.New(a.Store, a.LLM, a.Preferences, articles, assistant.Config{
		ModelIntentFallback: cfg.Assistant.ModelIntentFallback,
		FullTextSummaries:   cfg.Assistant.FullTextSummaries,
	})

	notifier, err := openNotifier(cfg.Telegram)
	if err != nil {
		return err
	}
	a.Digester = notify.NewDigester(a.Store, a.Preferences, notifier)
	a.Bus.Subscribe(a.Digester.Listener())
	a.Bus.Subscribe(logEvent)

	return nil
}

func openStore(ctx context.Context, cfg config.Store) (store.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		if cfg.SnapshotPath == "" {
			return store.NewMemoryStore(), nil
		}
		st, err := store.OpenMemoryStore(cfg.SnapshotPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open document snapshot: %w", err)
		}
		return st, nil
	case "postgres":
		st, err := store.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func (a *App) openSettings(ctx context.Context, cfg config.Settings) (settings.KV, error) {
	switch cfg.Driver {
	case "", "memory":
		return settings.NewMemoryKV(), nil
	case "redis":
		kv, err := settings.NewRedisKV(settings.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, kv.Close)
		if err := kv.Ping(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return kv, nil
	default:
		return nil, fmt.Errorf("unknown settings driver %q", cfg.Driver)
	}
}

func (a *App) openPreferences(ctx context.Context, cfg config.Preferences) (preferences.Repository, error) {
	switch cfg.Driver {
	case "", "memory":
		return preferences.NewMemoryRepository(), nil
	case "file":
		return preferences.NewFileRepository(cfg.Path), nil
	case "postgres":
		repo, err := preferences.NewPostgresRepository(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres preferences: %w", err)
		}
		a.closers = append(a.closers, func() error { repo.Close(); return nil })
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown preferences driver %q", cfg.Driver)
	}
}

// openLLM builds the generation service. A key saved in the settings wins
// over the configured one.
func (a *App) openLLM(ctx context.Context, cfg config.LLM) (*llm.Service, error) {
	key := cfg.APIKey
	if saved, err := a.Settings.APIKey(ctx); err != nil {
		slog.Warn("failed to read saved api key", "error", err)
	} else if saved != "" {
		key = saved
	}

	switch cfg.Provider {
	case "", "gemini":
		gcfg := llm.DefaultGeminiConfig("")
		if len(cfg.Models) > 0 {
			gcfg.Models = cfg.Models
		}
		if cfg.Endpoint != "" {
			gcfg.BaseURL = cfg.Endpoint
		}
		if cfg.MaxTokens > 0 {
			gcfg.MaxOutputTokens = int32(cfg.MaxTokens)
		}
		return llm.NewService(llm.ServiceConfig{APIKey: key, Factory: llm.GeminiFactory(gcfg)}), nil
	case "openai":
		chat := llm.ChatConfig{
			BaseURL:    cfg.Endpoint,
			SocketPath: cfg.SocketPath,
			Model:      cfg.Model,
			MaxTokens:  cfg.MaxTokens,
		}
		factory := func(_ context.Context, apiKey string) (llm.Backend, error) {
			c := chat
			c.APIKey = apiKey
			return llm.NewChatBackend(c)
		}
		return llm.NewService(llm.ServiceConfig{APIKey: key, KeyOptional: true, Factory: factory}), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func openNotifier(cfg config.Telegram) (notify.Notifier, error) {
	if !cfg.Enabled {
		return notify.LogNotifier{}, nil
	}
	tg, err := notify.NewTelegram(notify.TelegramConfig{Token: cfg.Token, ChatID: cfg.ChatID})
	if err != nil {
		return nil, err
	}
	return tg, nil
}

func logEvent(e events.Event) {
	switch ev := e.(type) {
	case events.IngestionCompleteEvent:
		slog.Info("ingestion complete",
			"replay", ev.Replay,
			"sources", ev.Sources,
			"failed", len(ev.FailedSources),
			"stored", ev.DocsStored,
			"new", len(ev.NewDocuments),
			"duration", ev.Duration)
	case events.SweepCompleteEvent:
		slog.Info("sweep complete", "removed", ev.Removed)
	default:
		panic(fmt.Sprintf("app: unhandled event %T", e))
	}
}

// SetAPIKey saves key and switches the generation service to it.
func (a *App) SetAPIKey(ctx context.Context, key string) error {
	if err := a.Settings.SetAPIKey(ctx, key); err != nil {
		return err
	}
	a.LLM.Reconfigure(key)
	return nil
}

// Stats returns collection counts with the last ingestion time.
func (a *App) Stats(ctx context.Context) (models.Stats, error) {
	stats, err := a.Store.Stats(ctx, time.Now())
	if err != nil {
		return models.Stats{}, fmt.Errorf("failed to compute stats: %w", err)
	}
	last, err := a.Settings.LastIngestion(ctx)
	if err != nil {
		slog.Warn("failed to read last ingestion", "error", err)
	}
	stats.LastIngestion = last
	return stats, nil
}

// Scheduler builds the periodic jobs. Digests run only when enabled.
func (a *App) Scheduler(ctx context.Context) (*scheduler.Scheduler, error) {
	var digests scheduler.DigestSender
	if a.Config.Scheduler.Digests {
		digests = a.Digester
	}
	s := scheduler.New(a.Pipeline, digests, scheduler.Config{
		RefreshSpec: a.Config.Scheduler.Refresh,
		SweepSpec:   a.Config.Scheduler.Sweep,
		JobTimeout:  a.Config.Scheduler.JobTimeout,
	})

	prefs, err := a.Preferences.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	if err := s.Schedule(prefs.MorningConsolidation, prefs.EveningConsolidation); err != nil {
		return nil, err
	}
	return s, nil
}

// MCPServer builds the MCP tool server with its own conversation.
func (a *App) MCPServer() (*mcp.Server, error) {
	deps := mcp.Deps{
		Store:      a.Store,
		Assistant:  a.Assistant.NewSession(),
		Summarizer: a.Assistant,
		Refresher:  a.Pipeline,
		Clock:      a.Settings,
	}
	if a.Archive != nil {
		deps.Archive = a.Archive
	}
	return mcp.NewServer(mcp.Config{Name: a.Config.MCP.Name, Version: a.Config.MCP.Version}, deps)
}

// HTTPServer builds the HTTP API with its own conversation.
func (a *App) HTTPServer() *httpapi.Server {
	deps := httpapi.Deps{
		Store:       a.Store,
		Assistant:   a.Assistant.NewSession(),
		Preferences: a.Preferences,
		Summarizer:  a.Assistant,
		Refresher:   a.Pipeline,
		Clock:       a.Settings,
	}
	if a.Archive != nil {
		deps.Archive = a.Archive
	}
	return httpapi.New(deps)
}

// Close releases every opened resource in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
