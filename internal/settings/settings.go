// Package settings persists small user settings in a key/value backend.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyAPIKey        = "gemini_api_key"
	keyFirstRun      = "first_run"
	keyLastIngestion = "last_ingestion"
	keyVoiceMode     = "voice_mode"
	keyVoiceRate     = "voice_rate"
)

// Voice rate bounds.
const (
	MinVoiceRate     = 0.5
	MaxVoiceRate     = 2.0
	DefaultVoiceRate = 1.0
)

// KV is a string key/value backend. Get reports ok=false for missing keys.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// MemoryKV is a KV kept in memory.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryKV creates an empty in-memory KV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisKV stores settings as plain Redis strings under a key prefix.
type RedisKV struct {
	client *redis.Client
	prefix string
}

// NewRedisKV creates a Redis-backed KV.
func NewRedisKV(cfg RedisConfig) (*RedisKV, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "newsapp:settings:"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisKV{client: client, prefix: cfg.Prefix}, nil
}

// Ping checks the connection.
func (r *RedisKV) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return v, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis client.
func (r *RedisKV) Close() error {
	return r.client.Close()
}

// Settings is the typed view over a KV.
type Settings struct {
	kv KV
}

// New creates Settings over kv.
func New(kv KV) *Settings {
	return &Settings{kv: kv}
}

// APIKey returns the generation API key, empty when unset.
func (s *Settings) APIKey(ctx context.Context) (string, error) {
	v, _, err := s.kv.Get(ctx, keyAPIKey)
	return v, err
}

// SetAPIKey stores the generation API key.
func (s *Settings) SetAPIKey(ctx context.Context, key string) error {
	return s.kv.Set(ctx, keyAPIKey, key)
}

// IsFirstRun reports whether MarkUsed has never been called.
func (s *Settings) IsFirstRun(ctx context.Context) (bool, error) {
	v, ok, err := s.kv.Get(ctx, keyFirstRun)
	if err != nil || !ok {
		return true, err
	}
	return parseBool(v, true), nil
}

// MarkUsed clears the first-run flag.
func (s *Settings) MarkUsed(ctx context.Context) error {
	return s.kv.Set(ctx, keyFirstRun, "false")
}

// LastIngestion returns when the last successful refresh finished.
// The zero time means never.
func (s *Settings) LastIngestion(ctx context.Context) (time.Time, error) {
	v, ok, err := s.kv.Get(ctx, keyLastIngestion)
	if err != nil || !ok {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid last ingestion timestamp %q: %w", v, err)
	}
	return time.UnixMilli(ms), nil
}

// SetLastIngestion stores t as epoch milliseconds.
func (s *Settings) SetLastIngestion(ctx context.Context, t time.Time) error {
	return s.kv.Set(ctx, keyLastIngestion, strconv.FormatInt(t.UnixMilli(), 10))
}

// VoiceMode reports whether spoken replies are on. Defaults to true.
func (s *Settings) VoiceMode(ctx context.Context) (bool, error) {
	v, ok, err := s.kv.Get(ctx, keyVoiceMode)
	if err != nil || !ok {
		return true, err
	}
	return parseBool(v, true), nil
}

// SetVoiceMode turns spoken replies on or off.
func (s *Settings) SetVoiceMode(ctx context.Context, on bool) error {
	return s.kv.Set(ctx, keyVoiceMode, strconv.FormatBool(on))
}

// VoiceRate returns the speech rate. Defaults to 1.0.
func (s *Settings) VoiceRate(ctx context.Context) (float64, error) {
	v, ok, err := s.kv.Get(ctx, keyVoiceRate)
	if err != nil || !ok {
		return DefaultVoiceRate, err
	}
	rate, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return DefaultVoiceRate, nil
	}
	return ClampVoiceRate(rate), nil
}

// SetVoiceRate stores rate clamped to [MinVoiceRate, MaxVoiceRate].
func (s *Settings) SetVoiceRate(ctx context.Context, rate float64) error {
	return s.kv.Set(ctx, keyVoiceRate, strconv.FormatFloat(ClampVoiceRate(rate), 'f', -1, 64))
}

// ClampVoiceRate limits rate to the supported range.
func ClampVoiceRate(rate float64) float64 {
	return min(max(rate, MinVoiceRate), MaxVoiceRate)
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
