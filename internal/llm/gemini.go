package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// DefaultGeminiModels are tried in order until one answers.
var DefaultGeminiModels = []string{"gemini-2.5-flash", "gemini-2.5-flash-lite", "gemini-1.5-flash-latest"}

// GeminiConfig holds Gemini generation settings.
type GeminiConfig struct {
	APIKey          string
	Models          []string
	BaseURL         string // Overrides the API endpoint, used by tests
	Temperature     float32
	TopK            float32
	TopP            float32
	MaxOutputTokens int32
}

// DefaultGeminiConfig returns the sampling settings used by the assistant.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:          apiKey,
		Models:          DefaultGeminiModels,
		Temperature:     0.7,
		TopK:            40,
		TopP:            0.95,
		MaxOutputTokens: 500,
	}
}

// GeminiBackend generates text with the Gemini API.
type GeminiBackend struct {
	client *genai.Client
	models []string
	config GeminiConfig
}

// NewGeminiBackend creates a Gemini client.
func NewGeminiBackend(ctx context.Context, config GeminiConfig) (*GeminiBackend, error) {
	if config.APIKey == "" {
		return nil, ErrNotConfigured
	}
	models := config.Models
	if len(models) == 0 {
		models = DefaultGeminiModels
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiBackend{client: client, models: models, config: config}, nil
}

// Generate tries each configured model in order, moving on when a model is
// missing or rate limited.
func (g *GeminiBackend) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	genConfig := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.config.Temperature),
		TopK:            genai.Ptr(g.config.TopK),
		TopP:            genai.Ptr(g.config.TopP),
		MaxOutputTokens: g.config.MaxOutputTokens,
	}
	if maxTokens > 0 {
		genConfig.MaxOutputTokens = int32(maxTokens)
	}

	var lastErr error
	for _, model := range g.models {
		result, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), genConfig)
		if err != nil {
			if retryable(err) {
				slog.Debug("gemini model unavailable, trying next", "model", model, "error", err)
				lastErr = err
				continue
			}
			return "", fmt.Errorf("gemini %s: %w", model, err)
		}
		if result == nil {
			lastErr = ErrEmptyResponse
			continue
		}
		return strings.TrimSpace(result.Text()), nil
	}

	if lastErr == nil {
		lastErr = ErrEmptyResponse
	}
	return "", fmt.Errorf("all gemini models failed: %w", lastErr)
}

func retryable(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "rate limit", "exhausted", "404", "not found"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
