package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	apihttp "github.com/Nicortesm/GamepassCopilot/internal/api/http"
	"github.com/Nicortesm/GamepassCopilot/internal/app"
	"github.com/Nicortesm/GamepassCopilot/internal/catalog"
	"github.com/Nicortesm/GamepassCopilot/internal/events"
	"github.com/Nicortesm/GamepassCopilot/internal/metrics"
	"github.com/Nicortesm/GamepassCopilot/internal/telemetry"
)

func main() {
	cfg := app.LoadConfig()
	logger := app.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "gamepass-search")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "gamepass-search"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("catalogDB", cfg.CatalogDBPath),
		slog.String("model", cfg.OpenAIModel),
		slog.Bool("hasAPIKey", cfg.OpenAIAPIKey != ""),
		slog.Bool("hasRedis", strings.TrimSpace(cfg.RedisURL) != ""),
		slog.Bool("hasNATS", strings.TrimSpace(cfg.NATSURL) != ""),
		slog.Bool("cacheDisabled", cfg.CacheDisabled),
		slog.Duration("cacheTTL", cfg.CacheTTL),
	)

	store, err := catalog.Open(cfg.CatalogDBPath)
	if err != nil {
		logger.Error("open catalog failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("close catalog failed", slog.String("error", err.Error()))
		}
	}()
	if total, err := store.Count(context.Background()); err == nil {
		metrics.CatalogGames.Set(float64(total))
		if total == 0 {
			logger.Warn("catalog is empty, run `catalogctl scrape` to populate it")
		}
	}

	searchService := app.NewSearchService(cfg, store, logger)

	if nc := app.ConnectEvents(cfg, "gamepass-search", logger); nc != nil {
		defer nc.Drain()
		_, err := events.SubscribeCatalogRebuilt(nc, cfg.EventsSubject, func(ctx context.Context, ev events.CatalogRebuilt) {
			logger.Info("catalog rebuilt, invalidating search memo",
				slog.Int("saved", ev.Saved),
				slog.Int("failed", ev.Failed),
			)
			searchService.InvalidateCache(ctx)
			if total, err := store.Count(ctx); err == nil {
				metrics.CatalogGames.Set(float64(total))
			}
		})
		if err != nil {
			logger.Warn("catalog event subscription failed", slog.String("error", err.Error()))
		}
	}

	handler := apihttp.NewServer(searchService, apihttp.WithLogger(logger)).Handler()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Assistant searches wait on two LLM round trips.
		WriteTimeout: 2*cfg.LLMTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("gamepass search service started", slog.String("addr", cfg.HTTPAddr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("gamepass search service stopped")
}
