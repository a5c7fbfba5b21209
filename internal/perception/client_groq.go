package perception

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"uiforge/internal/logging"
	"uiforge/internal/types"
)

// GroqConfig holds configuration for the Groq client.
type GroqConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// DefaultGroqConfig returns defaults for the Groq OpenAI-compatible API.
func DefaultGroqConfig(apiKey, model string) GroqConfig {
	return GroqConfig{
		APIKey:  apiKey,
		BaseURL: "https://api.groq.com/openai/v1",
		Model:   model,
		Timeout: 120 * time.Second,
	}
}

// GroqClient implements Client for Groq's OpenAI-compatible chat API.
type GroqClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewGroqClient creates a new Groq client.
func NewGroqClient(config GroqConfig) *GroqClient {
	return &GroqClient{
		apiKey:  config.APIKey,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		model:   config.Model,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string              `json:"model"`
	Messages       []chatMessage       `json:"messages"`
	Temperature    float64             `json:"temperature"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// GetModel returns the configured model.
func (c *GroqClient) GetModel() string {
	return c.model
}

// CompleteWithSystem sends a free-text completion request.
func (c *GroqClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.complete(ctx, systemPrompt, userPrompt, false)
}

// CompleteStructured requests JSON mode. Groq's JSON mode takes no schema,
// so the shape is carried by the system instruction.
func (c *GroqClient) CompleteStructured(ctx context.Context, systemPrompt, userPrompt string, _ map[string]interface{}) (string, error) {
	return c.complete(ctx, systemPrompt, userPrompt, true)
}

func (c *GroqClient) complete(ctx context.Context, systemPrompt, userPrompt string, jsonMode bool) (string, error) {
	if c.model == "" {
		return "", fmt.Errorf("%w: Groq model not configured", types.ErrConfiguration)
	}
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: Groq API key not configured", types.ErrConfiguration)
	}

	startTime := time.Now()
	logging.APIDebug("[Groq] complete: model=%s json=%v system_len=%d user_len=%d", c.model, jsonMode, len(systemPrompt), len(userPrompt))

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0,
	}
	if jsonMode {
		reqBody.ResponseFormat = &chatResponseFormat{Type: "json_object"}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.APIError("[Groq] request failed after %v: %v", time.Since(startTime), err)
		return "", fmt.Errorf("%w: request failed: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", ErrUpstreamUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: Groq rejected credentials (%d): %s", types.ErrConfiguration, resp.StatusCode, truncate(string(body), 200))
	case resp.StatusCode != http.StatusOK:
		logging.APIError("[Groq] status %d after %v", resp.StatusCode, time.Since(startTime))
		return "", fmt.Errorf("%w: API request failed with status %d: %s", ErrUpstreamUnavailable, resp.StatusCode, truncate(string(body), 200))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("%w: failed to parse response: %v", ErrUpstreamUnavailable, err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("%w: API error: %s", ErrUpstreamUnavailable, chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("%w: no completion returned", ErrUpstreamUnavailable)
	}

	response := chatResp.Choices[0].Message.Content
	logging.APIDebug("[Groq] completed in %v response_len=%d", time.Since(startTime), len(response))
	return response, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
