package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/markdowner/config"
	"github.com/use-agent/markdowner/models"
)

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("hi"))
	assert.Equal(t, 3, EstimateTokens("123456789"))
	assert.Equal(t, 1, EstimateTokens("日本語"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abcdef", Truncate("abcdef", 0))
	assert.Equal(t, "abcdef", Truncate("abcdef", 2))
	assert.Equal(t, "abc", Truncate("abcdefghij", 1))

	got := Truncate(strings.Repeat("日", 10), 2)
	assert.Equal(t, strings.Repeat("日", 6), got)
}

func TestFilterPrompt(t *testing.T) {
	p := FilterPrompt("# Page")
	assert.Contains(t, p, "Input: # Page\n")
	assert.True(t, strings.HasSuffix(p, "Output:```markdown\n"))
	assert.Contains(t, p, "Answer in English.")
}

func chatServer(t *testing.T, status int, body string, gotPrompt *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.Unmarshal(raw, &req)
		if gotPrompt != nil && len(req.Messages) > 0 {
			*gotPrompt = req.Model + "|" + req.Messages[0].Role + "|" + req.Messages[0].Content
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

const okCompletion = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "test-model",
	"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "# Clean page"}}]
}`

func TestFilter_Success(t *testing.T) {
	var prompt string
	srv := chatServer(t, http.StatusOK, okCompletion, &prompt)

	c := NewClient(config.LLMConfig{BaseURL: srv.URL, APIKey: "k", Model: "test-model", Timeout: 5 * time.Second})
	out, err := c.Filter(context.Background(), "# Page\n\nBuy now!")
	require.NoError(t, err)
	assert.Equal(t, "# Clean page", out)
	assert.True(t, strings.HasPrefix(prompt, "test-model|user|You are an AI assistant"))
	assert.Contains(t, prompt, "Buy now!")
}

func TestFilter_TruncatesInput(t *testing.T) {
	var prompt string
	srv := chatServer(t, http.StatusOK, okCompletion, &prompt)

	c := NewClient(config.LLMConfig{BaseURL: srv.URL, APIKey: "k", Model: "m", MaxInputTokens: 2})
	_, err := c.Filter(context.Background(), "abcdefghijklmnop")
	require.NoError(t, err)
	assert.Contains(t, prompt, "Input: abcdef\n")
}

func TestFilter_APIError(t *testing.T) {
	srv := chatServer(t, http.StatusBadRequest, `{"error": {"message": "bad model", "type": "invalid_request_error"}}`, nil)

	c := NewClient(config.LLMConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	_, err := c.Filter(context.Background(), "x")
	require.Error(t, err)

	var se *models.ScrapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.ErrCodeLLMFailure, se.Code)
}

func TestFilter_NoChoices(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`, nil)

	c := NewClient(config.LLMConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	_, err := c.Filter(context.Background(), "x")
	assert.Error(t, err)
}

func TestFilter_NotConfigured(t *testing.T) {
	c := NewClient(config.LLMConfig{Model: "m"})
	assert.False(t, c.Configured())
	_, err := c.Filter(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
