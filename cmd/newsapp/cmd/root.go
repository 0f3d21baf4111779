package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/CristhianJ12/NewsApp/internal/app"
	"github.com/CristhianJ12/NewsApp/internal/config"
)

var (
	cfgFile string
	verbose bool
	format  string
	cfg     config.Config
)

// GetConfig returns the loaded configuration.
func GetConfig() config.Config {
	return cfg
}

var rootCmd = &cobra.Command{
	Use:   "newsapp",
	Short: "NewsApp: Peruvian news aggregator with a conversational assistant",
	Long: `NewsApp fetches RSS/Atom feeds from Peruvian outlets, keeps the news of the
last 24 hours, and answers questions about them in Spanish.

Commands:
  ingest      Fetch every configured source once
  ask         Ask the assistant a question
  search      Search the stored news
  serve       Start the MCP server
  serve-http  Start the HTTP API
  schedule    Run the periodic refresh, sweep and digest jobs`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&format, "format", "text", "Output format: text or json")
}

func initLogger() {
	level := slog.LevelWarn
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelWarn
	}
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

func initConfig() {
	// .env values become environment variables; real env vars win.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env", "error", err)
	}

	// Start with defaults
	cfg = config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/newsapp")
		viper.AddConfigPath(".")
	}

	// NEWSAPP_LLM_API_KEY -> llm.api_key
	viper.SetEnvPrefix("NEWSAPP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// AutomaticEnv only sees keys viper already knows about.
	for _, key := range []string{
		"log.level",
		"feeds.timeout", "feeds.user_agent",
		"store.driver", "store.snapshot_path", "store.postgres_dsn",
		"preferences.driver", "preferences.path", "preferences.postgres_dsn",
		"settings.driver", "settings.redis.addr", "settings.redis.password", "settings.redis.db", "settings.redis.prefix",
		"llm.provider", "llm.api_key", "llm.endpoint", "llm.socket_path", "llm.model", "llm.max_tokens",
		"assistant.model_intent_fallback", "assistant.full_text_summaries",
		"archive.enabled", "archive.index", "archive.username", "archive.password",
		"storage.enabled", "storage.endpoint", "storage.bucket", "storage.access_key_id", "storage.secret_access_key", "storage.use_ssl",
		"scheduler.refresh", "scheduler.sweep", "scheduler.digests",
		"telegram.enabled", "telegram.token", "telegram.chat_id",
		"http.addr",
	} {
		viper.BindEnv(key)
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("config file error", "error", err)
		}
		// No config file - use defaults + env vars
	}

	// Unmarshal into struct (merges config file with defaults)
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Warn("failed to parse config", "error", err)
	}

	// Lists from env are comma-separated strings.
	if addrs := os.Getenv("NEWSAPP_ARCHIVE_ADDRESSES"); addrs != "" {
		cfg.Archive.Addresses = strings.Split(addrs, ",")
	}
	if models := os.Getenv("NEWSAPP_LLM_MODELS"); models != "" {
		cfg.LLM.Models = strings.Split(models, ",")
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// withApp builds the application, runs fn and closes it.
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := app.New(ctx, GetConfig())
	if err != nil {
		return err
	}
	runErr := fn(a)
	if err := a.Close(); err != nil {
		slog.Warn("failed to close application", "error", err)
	}
	return runErr
}

// printJSON writes v indented when --format json is set and reports whether it did.
func printJSON(w io.Writer, v any) (bool, error) {
	if format != "json" {
		return false, nil
	}
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return true, err
	}
	fmt.Fprintln(w, string(output))
	return true, nil
}
