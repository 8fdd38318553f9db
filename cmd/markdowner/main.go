package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/markdowner/api"
	"github.com/use-agent/markdowner/browser"
	"github.com/use-agent/markdowner/cache"
	"github.com/use-agent/markdowner/cleaner"
	"github.com/use-agent/markdowner/config"
	"github.com/use-agent/markdowner/engine"
	"github.com/use-agent/markdowner/llm"
	"github.com/use-agent/markdowner/metrics"
	"github.com/use-agent/markdowner/ratelimit"
	"github.com/use-agent/markdowner/scraper"
	"github.com/use-agent/markdowner/tweet"
)

// closingStore is a cache backend that owns resources.
type closingStore interface {
	cache.Store
	Close() error
}

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging and metrics ────────────────
	initLogger(cfg.Log)
	metrics.Init()
	slog.Info("markdowner starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"cache", cfg.Cache.Backend,
		"maxTabs", cfg.Scraper.MaxTabs,
	)

	// ── 3. Cache backend ────────────────────────────────────────────
	store, err := openCache(cfg.Cache)
	if err != nil {
		slog.Error("failed to open cache", "backend", cfg.Cache.Backend, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// ── 4. Rate limiter ─────────────────────────────────────────────
	limiter := ratelimit.NewKeyed(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer limiter.Close()

	// ── 5. Browser manager (launches lazily on first request) ───────
	mgr := browser.NewManager(browser.NewRodProvider(cfg.Browser), cfg.Browser, metrics.BrowserObserver{})
	defer func() {
		if err := mgr.Close(); err != nil {
			slog.Warn("browser close failed", "error", err)
		}
	}()

	// ── 6. Engine ───────────────────────────────────────────────────
	llmClient := llm.NewClient(cfg.LLM)
	if !llmClient.Configured() {
		slog.Warn("LLM filter not configured, llmFilter requests will return the failure sentinel")
	}

	eng := engine.New(engine.Deps{
		Browser:   mgr,
		Pages:     scraper.New(cfg.Scraper),
		Converter: cleaner.NewCleaner(),
		Tweets:    tweet.NewResolver(cfg.Tweet, store),
		LLM:       llmClient,
		Cache:     store,
		Limiter:   limiter,
	}, engine.Options{
		TrustedToken: cfg.RateLimit.TrustedToken,
		CacheTTL:     cfg.Cache.TTL,
		LLMCost:      cfg.LLM.Cost,
		MaxTabs:      cfg.Scraper.MaxTabs,
		MaxSubpages:  10,
	})

	// ── 7. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(eng, mgr, cfg, startTime)

	// ── 8. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 9. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// Deferred closes run in reverse: browser, limiter, cache.
	slog.Info("markdowner stopped")
}

func openCache(cfg config.CacheConfig) (closingStore, error) {
	switch cfg.Backend {
	case "sqlite":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return cache.OpenSQLite(ctx, cfg.Path, cfg.MaxEntries)
	case "memory", "":
		return cache.NewMemory(cfg.MaxEntries), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
