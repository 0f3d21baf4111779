// Package llm provides the text generation service used by the assistant.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/CristhianJ12/NewsApp/pkg/models"
)

var (
	// ErrNotConfigured is returned when no API key is available.
	ErrNotConfigured = errors.New("generation service is not configured")
	// ErrEmptyResponse is returned when the model answers with blank text.
	ErrEmptyResponse = errors.New("empty response from model")
)

// NotConfiguredMessage is shown to users when ErrNotConfigured is hit.
const NotConfiguredMessage = "Para usar el asistente, necesitas configurar tu API key de Gemini. Ve a Configuración y agrega tu clave."

const (
	// SummaryInputLength is how much content is sent for summarization.
	SummaryInputLength = 3000
	summaryMaxTokens   = 300
	intentMaxTokens    = 20
)

// Backend generates text for a prompt.
type Backend interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// BackendFactory builds a backend for an API key.
type BackendFactory func(ctx context.Context, apiKey string) (Backend, error)

// GeminiFactory returns a factory producing Gemini backends with config's
// sampling settings and the given key.
func GeminiFactory(config GeminiConfig) BackendFactory {
	return func(ctx context.Context, apiKey string) (Backend, error) {
		c := config
		c.APIKey = apiKey
		return NewGeminiBackend(ctx, c)
	}
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	APIKey string
	// KeyOptional marks backends that work without a key, such as a local model runner.
	KeyOptional bool
	Factory     BackendFactory
}

// Service owns the API key and a lazily built backend.
type Service struct {
	mu          sync.Mutex
	apiKey      string
	keyOptional bool
	factory     BackendFactory
	backend     Backend
}

// NewService creates a generation service. The backend is built on first use.
func NewService(config ServiceConfig) *Service {
	return &Service{
		apiKey:      strings.TrimSpace(config.APIKey),
		keyOptional: config.KeyOptional,
		factory:     config.Factory,
	}
}

// Reconfigure replaces the API key and drops the cached backend.
func (s *Service) Reconfigure(apiKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = strings.TrimSpace(apiKey)
	s.backend = nil
}

// IsConfigured reports whether generation calls can be attempted.
func (s *Service) IsConfigured() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.factory != nil && (s.apiKey != "" || s.keyOptional)
}

func (s *Service) getBackend(ctx context.Context) (Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.factory == nil || (s.apiKey == "" && !s.keyOptional) {
		return nil, ErrNotConfigured
	}
	if s.backend != nil {
		return s.backend, nil
	}
	backend, err := s.factory(ctx, s.apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend: %w", err)
	}
	s.backend = backend
	return backend, nil
}

func (s *Service) generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	backend, err := s.getBackend(ctx)
	if err != nil {
		return "", err
	}
	text, err := backend.Generate(ctx, prompt, maxTokens)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Complete answers query grounded on contextText.
func (s *Service) Complete(ctx context.Context, systemPrompt, contextText, query string) (string, error) {
	return s.generate(ctx, CompletionPrompt(systemPrompt, contextText, query), 0)
}

// CompletionPrompt lays out the grounded prompt sent by Complete.
func CompletionPrompt(systemPrompt, contextText, query string) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nCONTEXTO DISPONIBLE:\n")
	b.WriteString(contextText)
	b.WriteString("\n\nCONSULTA DEL USUARIO:\n")
	b.WriteString(query)
	b.WriteString("\n\nRESPUESTA:")
	return b.String()
}

// Summarize returns a summary of at most 100 words of the first
// SummaryInputLength runes of content.
func (s *Service) Summarize(ctx context.Context, content string) (string, error) {
	prompt := fmt.Sprintf(`Resume el siguiente texto en EXACTAMENTE 100 palabras o menos.
Usa un lenguaje claro y directo. No agregues opiniones ni información que no esté en el texto.
Estructura: QUÉ ocurrió, QUIÉN está involucrado, CÓMO afecta.

TEXTO:
%s

RESUMEN (máximo 100 palabras):`, models.Truncate(content, SummaryInputLength))

	return s.generate(ctx, prompt, summaryMaxTokens)
}

// ClassifyIntent asks the model for an intent label such as
// "buscar_categoria:Deportes".
func (s *Service) ClassifyIntent(ctx context.Context, query string) (string, error) {
	prompt := fmt.Sprintf(`Clasifica la intención del usuario en UNA de estas opciones:
- resumen_dia
- buscar_categoria:NOMBRE
- buscar_texto:TEXTO
- configurar:TIPO
- no_reconocida

Categorías válidas: %s

CONSULTA: %s

Responde SOLO con la etiqueta, sin explicaciones.`, models.JoinCategories(models.AllCategories()), query)

	return s.generate(ctx, prompt, intentMaxTokens)
}
