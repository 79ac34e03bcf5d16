// Package llm talks to an OpenAI-compatible chat completions API in JSON mode.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Nicortesm/GamepassCopilot/internal/metrics"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"

	temperature     = 0.1
	maxErrorSnippet = 300
)

var (
	ErrMissingCredential = errors.New("llm api key is not configured")
	ErrMalformedResponse = errors.New("llm returned a malformed response")
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// Client overrides the default traced HTTP client.
	Client *http.Client
}

type Client struct {
	api     *openai.Client
	enabled bool
	model   string
}

func NewClient(cfg Config) *Client {
	apiKey := strings.TrimSpace(cfg.APIKey)
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	httpClient := cfg.Client
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	openAIConfig := openai.DefaultConfig(apiKey)
	openAIConfig.BaseURL = baseURL
	openAIConfig.HTTPClient = httpClient
	return &Client{
		api:     openai.NewClientWithConfig(openAIConfig),
		enabled: apiKey != "",
		model:   model,
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.enabled
}

// completeJSON sends one system+user exchange and decodes the assistant's JSON
// object into out. operation labels metrics.
func (c *Client) completeJSON(ctx context.Context, operation, system, user string, out any) (err error) {
	if !c.Enabled() {
		return ErrMissingCredential
	}
	started := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.LLMRequestsTotal.WithLabelValues(operation, status).Inc()
		metrics.LLMRequestDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	}()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return describeError(operation, err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("%w: %s returned no choices", ErrMalformedResponse, operation)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("%w: %s content: %v", ErrMalformedResponse, operation, err)
	}
	return nil
}

// describeError keeps API failures short enough to log and surface as notices.
func describeError(operation string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 0 {
			return fmt.Errorf("%s api error (%s): %s", operation, apiErr.Type, compactSnippet(apiErr.Message, maxErrorSnippet))
		}
		return fmt.Errorf("%s request failed: status %d: %s", operation, apiErr.HTTPStatusCode, compactSnippet(apiErr.Message, maxErrorSnippet))
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("%s request failed: status %d: %s", operation, reqErr.HTTPStatusCode, compactSnippet(reqErr.Error(), maxErrorSnippet))
	}
	return fmt.Errorf("%s request: %w", operation, err)
}

func compactSnippet(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
