package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// dmrBaseURL is the chat completions root exposed by Docker Model Runner on its unix socket.
const dmrBaseURL = "http://localhost/exp/vDD4.40/engines/llama.cpp/v1"

// ChatConfig holds configuration for an OpenAI-compatible chat completions endpoint.
type ChatConfig struct {
	BaseURL    string // e.g. "http://localhost:11434/v1"; ignored when SocketPath is set
	SocketPath string // Unix socket path for Docker Model Runner
	Model      string // Model name (e.g., "ai/gemma3")
	APIKey     string // Sent as a bearer token when set
	MaxTokens  int    // Default response limit, 0 for none
}

// ChatBackend talks to an OpenAI-compatible chat completions API.
type ChatBackend struct {
	httpClient *http.Client
	endpoint   string
	model      string
	apiKey     string
	maxTokens  int
}

// NewChatBackend creates a chat completions backend.
func NewChatBackend(config ChatConfig) (*ChatBackend, error) {
	if config.SocketPath == "" && config.BaseURL == "" {
		return nil, fmt.Errorf("socket path or base URL is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	httpClient := &http.Client{}
	base := strings.TrimRight(config.BaseURL, "/")
	if config.SocketPath != "" {
		socket := config.SocketPath
		httpClient.Transport = &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socket)
			},
		}
		base = dmrBaseURL
	}

	return &ChatBackend{
		httpClient: httpClient,
		endpoint:   base + "/chat/completions",
		model:      config.Model,
		apiKey:     config.APIKey,
		maxTokens:  config.MaxTokens,
	}, nil
}

// chatRequest is the request payload for the chat completions API.
type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the response from the chat completions API.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate sends prompt as a single user message. If maxTokens is 0 the
// backend default applies.
func (c *ChatBackend) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		MaxTokens: maxTokens,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}
