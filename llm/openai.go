package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/use-agent/markdowner/config"
	"github.com/use-agent/markdowner/models"
)

// ErrNotConfigured is returned by Filter when no endpoint or key is set.
var ErrNotConfigured = errors.New("llm filter not configured")

// Client filters markdown through an OpenAI-compatible chat completions
// endpoint. Workers AI, OpenRouter and local gateways all speak it.
type Client struct {
	api            openai.Client
	model          string
	timeout        time.Duration
	maxInputTokens int
	configured     bool
}

// NewClient creates a Client from cfg.
func NewClient(cfg config.LLMConfig) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(1),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		api:            openai.NewClient(opts...),
		model:          cfg.Model,
		timeout:        timeout,
		maxInputTokens: cfg.MaxInputTokens,
		configured:     cfg.BaseURL != "" || cfg.APIKey != "",
	}
}

// Configured reports whether an endpoint or key was provided.
func (c *Client) Configured() bool { return c.configured }

// Filter asks the model to strip ads and boilerplate from markdown and
// returns its answer verbatim.
func (c *Client) Filter(ctx context.Context, markdown string) (string, error) {
	if !c.configured {
		return "", models.NewScrapeError(models.ErrCodeLLMFailure, "no model endpoint", ErrNotConfigured)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := FilterPrompt(Truncate(markdown, c.maxInputTokens))
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	})
	if err != nil {
		return "", classifyLLMError(err)
	}
	if len(resp.Choices) == 0 {
		return "", models.NewScrapeError(models.ErrCodeLLMFailure, "LLM returned no choices", nil)
	}

	answer := resp.Choices[0].Message.Content
	if strings.TrimSpace(answer) == "" {
		return "", models.NewScrapeError(models.ErrCodeLLMFailure, "LLM returned an empty answer", nil)
	}
	return answer, nil
}

// classifyLLMError maps SDK errors to ScrapeErrors.
func classifyLLMError(err error) *models.ScrapeError {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewScrapeError(models.ErrCodeTimeout, "LLM request timed out", err)
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return models.NewScrapeError(models.ErrCodeLLMFailure, fmt.Sprintf("LLM API returned %d", apiErr.StatusCode), err)
	}
	return models.NewScrapeError(models.ErrCodeLLMFailure, "LLM request failed", err)
}
