package config

import (
	"time"

	"github.com/CristhianJ12/NewsApp/pkg/models"
)

// Config holds all application configuration.
type Config struct {
	Log         Log         `mapstructure:"log"`
	Feeds       Feeds       `mapstructure:"feeds"`
	Store       Store       `mapstructure:"store"`
	Preferences Preferences `mapstructure:"preferences"`
	Settings    Settings    `mapstructure:"settings"`
	LLM         LLM         `mapstructure:"llm"`
	Assistant   Assistant   `mapstructure:"assistant"`
	Archive     Archive     `mapstructure:"archive"`
	Storage     Storage     `mapstructure:"storage"`
	Scheduler   Scheduler   `mapstructure:"scheduler"`
	Telegram    Telegram    `mapstructure:"telegram"`
	MCP         MCP         `mapstructure:"mcp"`
	HTTP        HTTP        `mapstructure:"http"`
}

// Log holds logging configuration.
type Log struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
}

// Feeds holds feed fetching configuration.
type Feeds struct {
	Timeout   time.Duration   `mapstructure:"timeout"`
	UserAgent string          `mapstructure:"user_agent"`
	Sources   []models.Source `mapstructure:"sources"`
}

// Store selects the document store.
type Store struct {
	Driver       string `mapstructure:"driver"` // memory or postgres
	SnapshotPath string `mapstructure:"snapshot_path"`
	PostgresDSN  string `mapstructure:"postgres_dsn"`
}

// Preferences selects the configuration repository.
type Preferences struct {
	Driver      string `mapstructure:"driver"` // memory, file or postgres
	Path        string `mapstructure:"path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// Settings selects the key/value settings backend.
type Settings struct {
	Driver string `mapstructure:"driver"` // memory or redis
	Redis  Redis  `mapstructure:"redis"`
}

// Redis holds Redis connection configuration.
type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// LLM holds generation service configuration.
type LLM struct {
	Provider   string   `mapstructure:"provider"` // gemini or openai
	APIKey     string   `mapstructure:"api_key"`
	Models     []string `mapstructure:"models"`
	Endpoint   string   `mapstructure:"endpoint"`
	SocketPath string   `mapstructure:"socket_path"`
	Model      string   `mapstructure:"model"`
	MaxTokens  int      `mapstructure:"max_tokens"`
}

// Assistant holds assistant options.
type Assistant struct {
	ModelIntentFallback bool          `mapstructure:"model_intent_fallback"`
	FullTextSummaries   bool          `mapstructure:"full_text_summaries"`
	ReaderTimeout       time.Duration `mapstructure:"reader_timeout"`
}

// Archive holds the Elasticsearch archive configuration.
type Archive struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Index     string   `mapstructure:"index"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

// Storage holds S3/MinIO raw feed archive configuration.
type Storage struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// Scheduler holds the periodic job specs.
type Scheduler struct {
	Refresh    string        `mapstructure:"refresh"`
	Sweep      string        `mapstructure:"sweep"`
	Digests    bool          `mapstructure:"digests"`
	JobTimeout time.Duration `mapstructure:"job_timeout"`
}

// Telegram holds the digest notifier configuration.
type Telegram struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	ChatID  string `mapstructure:"chat_id"`
}

// MCP holds MCP server configuration.
type MCP struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// HTTP holds HTTP API configuration.
type HTTP struct {
	Addr string `mapstructure:"addr"`
}

// DefaultSources are the Peruvian outlets fetched out of the box.
func DefaultSources() []models.Source {
	return []models.Source{
		{Name: "RPP Noticias", URL: "https://rpp.pe/feed", Active: true},
		{Name: "El Comercio", URL: "https://elcomercio.pe/arcio/rss/", Active: true},
		{Name: "Gestión", URL: "https://gestion.pe/feed/", Active: true},
		{Name: "La República", URL: "https://larepublica.pe/rss", Active: true},
		{Name: "Perú21", URL: "https://peru21.pe/feed/", Active: true},
	}
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Log: Log{Level: "warn"},
		Feeds: Feeds{
			Timeout:   30 * time.Second,
			UserAgent: "NewsApp/1.0",
			Sources:   DefaultSources(),
		},
		Store: Store{
			Driver:       "memory",
			SnapshotPath: "data/documents.json",
		},
		Preferences: Preferences{
			Driver: "file",
			Path:   "data/preferences.yaml",
		},
		Settings: Settings{
			Driver: "memory",
			Redis: Redis{
				Addr:   "localhost:6379",
				Prefix: "newsapp:settings:",
			},
		},
		LLM: LLM{
			Provider:  "gemini",
			MaxTokens: 500,
			Model:     "ai/gemma3",
		},
		Assistant: Assistant{
			ModelIntentFallback: false,
			FullTextSummaries:   true,
			ReaderTimeout:       15 * time.Second,
		},
		Archive: Archive{
			Enabled:   false, // requires an Elasticsearch cluster
			Addresses: []string{"http://localhost:9200"},
			Index:     "newsapp-documents",
		},
		Storage: Storage{
			Enabled:         false, // requires MinIO or S3
			Endpoint:        "localhost:9002",
			Bucket:          "newsapp-feeds",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
			UseSSL:          false,
		},
		Scheduler: Scheduler{
			Refresh:    "@every 30m",
			Sweep:      "@hourly",
			Digests:    true,
			JobTimeout: 5 * time.Minute,
		},
		MCP: MCP{
			Name:    "newsapp",
			Version: "1.0.0",
		},
		HTTP: HTTP{
			Addr: ":8080",
		},
	}
}
