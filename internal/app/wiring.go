package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/Nicortesm/GamepassCopilot/internal/events"
	"github.com/Nicortesm/GamepassCopilot/internal/llm"
	"github.com/Nicortesm/GamepassCopilot/internal/search"
)

// NewSearchService assembles the search pipeline over store using the LLM and
// cache settings in cfg.
func NewSearchService(cfg Config, store search.Store, logger *slog.Logger) *search.Service {
	client := llm.NewClient(llm.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Timeout: cfg.LLMTimeout,
	})
	if !client.Enabled() {
		logger.Warn("OPENAI_API_KEY not set, assistant searches will report a classification error")
	}
	return search.NewService(store,
		llm.NewClassifier(client),
		llm.NewRecommender(client),
		buildServiceOptions(cfg, logger)...,
	)
}

func buildServiceOptions(cfg Config, logger *slog.Logger) []search.ServiceOption {
	opts := []search.ServiceOption{search.WithLogger(logger)}
	if cfg.CacheDisabled {
		logger.Info("search memo disabled")
		return opts
	}

	var backend *search.RedisMemoBackend
	redisURL := strings.TrimSpace(cfg.RedisURL)
	if redisURL != "" {
		redisOpts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Warn("invalid redis url, using in-memory memo only", slog.String("error", err.Error()))
		} else {
			client := redis.NewClient(redisOpts)
			candidate := search.NewRedisMemoBackend(client, cfg.CacheTTL)
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := candidate.Ping(ctx); err != nil {
				logger.Warn("redis not reachable, using in-memory memo only", slog.String("error", err.Error()))
				_ = client.Close()
			} else {
				logger.Info("redis connected", slog.String("addr", redisOpts.Addr))
				backend = candidate
			}
		}
	}
	return append(opts, search.WithMemo(search.NewMemo(backend, logger)))
}

// ConnectEvents returns nil when NATS_URL is unset or the server is unreachable;
// catalog events are optional.
func ConnectEvents(cfg Config, name string, logger *slog.Logger) *nats.Conn {
	url := strings.TrimSpace(cfg.NATSURL)
	if url == "" {
		return nil
	}
	nc, err := events.Connect(url, name)
	if err != nil {
		logger.Warn("catalog events disabled", slog.String("error", err.Error()))
		return nil
	}
	logger.Info("nats connected", slog.String("url", nc.ConnectedUrl()))
	return nc
}
