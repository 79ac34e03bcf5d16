package apihttp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Nicortesm/GamepassCopilot/internal/domain"
)

type SearchService interface {
	Search(ctx context.Context, request domain.SearchRequest) domain.SearchResponse
	Count(ctx context.Context) (int64, error)
}

type Server struct {
	search SearchService
	logger *slog.Logger
}

const maxQueryLength = 500

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(searchService SearchService, options ...ServerOption) *Server {
	server := &Server{
		search: searchService,
		logger: slog.Default(),
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/search", s.handleSearch)
	mux.HandleFunc("/games/count", s.handleCount)
	mux.HandleFunc("/", s.handleIndex)
	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "gamepass-search",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger, rateLimitMiddleware(50, 100, metricsMiddleware(traced)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	request, code, message := parseSearchRequest(r)
	if code != "" {
		writeError(w, http.StatusBadRequest, code, message)
		return
	}
	writeJSON(w, http.StatusOK, s.search.Search(r.Context(), request))
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	total, err := s.search.Count(r.Context())
	if err != nil {
		s.logger.Warn("catalog count failed", slog.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", "catalog is unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"total": total})
}

// parseSearchRequest returns a non-empty error code when the request is invalid.
func parseSearchRequest(r *http.Request) (domain.SearchRequest, string, string) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		return domain.SearchRequest{}, "invalid_request", domain.ErrInvalidQuery.Error()
	}
	if utf8.RuneCountInString(query) > maxQueryLength {
		return domain.SearchRequest{}, "invalid_request", "query too long (max 500 characters)"
	}
	mode, ok := domain.ParseSearchMode(r.URL.Query().Get("mode"))
	if !ok {
		return domain.SearchRequest{}, "invalid_request", "mode must be keyword or assistant"
	}
	return domain.SearchRequest{Query: query, Mode: mode}, "", ""
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
