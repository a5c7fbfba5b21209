package perception

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"uiforge/internal/logging"
	"uiforge/internal/types"
)

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	// BaseURL overrides the API endpoint. Empty uses the SDK default.
	BaseURL string
}

// GeminiClient implements Client on the Google GenAI SDK.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(ctx context.Context, config GeminiConfig) (*GeminiClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: Gemini API key is required", types.ErrConfiguration)
	}

	cc := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{
		client:  client,
		model:   config.Model,
		timeout: config.Timeout,
	}, nil
}

// GetModel returns the configured model.
func (c *GeminiClient) GetModel() string {
	return c.model
}

// CompleteWithSystem sends a free-text completion request.
func (c *GeminiClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.generate(ctx, systemPrompt, userPrompt, nil, false)
}

// CompleteStructured requests application/json output constrained by schema.
func (c *GeminiClient) CompleteStructured(ctx context.Context, systemPrompt, userPrompt string, schema map[string]interface{}) (string, error) {
	return c.generate(ctx, systemPrompt, userPrompt, schema, true)
}

func (c *GeminiClient) generate(ctx context.Context, systemPrompt, userPrompt string, schema map[string]interface{}, jsonMode bool) (string, error) {
	if c.model == "" {
		return "", fmt.Errorf("%w: Gemini model not configured", types.ErrConfiguration)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	startTime := time.Now()
	logging.APIDebug("[Gemini] generate: model=%s json=%v system_len=%d user_len=%d", c.model, jsonMode, len(systemPrompt), len(userPrompt))

	gc := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(systemPrompt)},
		},
		Temperature: genai.Ptr[float32](0),
	}
	if jsonMode {
		gc.ResponseMIMEType = "application/json"
		if schema != nil {
			gc.ResponseJsonSchema = schema
		}
	}

	contents := []*genai.Content{
		genai.NewContentFromText(userPrompt, genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, gc)
	if err != nil {
		logging.APIError("[Gemini] request failed after %v: %v", time.Since(startTime), err)
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: no completion returned", ErrUpstreamUnavailable)
	}

	logging.APIDebug("[Gemini] completed in %v response_len=%d", time.Since(startTime), len(text))
	return text, nil
}
