package engine

import (
	"context"
	"log/slog"

	"github.com/use-agent/markdowner/metrics"
	"github.com/use-agent/markdowner/models"
)

// chargeLLM consumes LLMCost extra limiter units against the caller's IP.
// The outcome of each unit is ignored; the charge only drains the budget
// for later requests.
func (e *Engine) chargeLLM(ctx context.Context, req Request) {
	if e.trusted(req) {
		return
	}
	for i := 0; i < e.opts.LLMCost; i++ {
		if _, err := e.deps.Limiter.Limit(ctx, req.ClientIP); err != nil {
			slog.Warn("rate limiter failed during LLM surcharge", "ip", req.ClientIP, "error", err)
			return
		}
	}
}

// filter replaces md with the model's answer, or the LLM failure sentinel.
func (e *Engine) filter(ctx context.Context, u, md string) string {
	if e.deps.LLM == nil {
		metrics.ObserveLLMFilter(false)
		return models.SentinelLLMFailed
	}
	out, err := e.deps.LLM.Filter(ctx, md)
	metrics.ObserveLLMFilter(err == nil)
	if err != nil {
		slog.Warn("llm filter failed", "url", u, "error", err)
		return models.SentinelLLMFailed
	}
	return out
}
