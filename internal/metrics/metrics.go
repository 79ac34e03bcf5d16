package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gamepass",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gamepass",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20},
	}, []string{"method", "path"})

	SearchRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gamepass",
		Name:      "search_requests_total",
		Help:      "Total searches by mode, query kind and the stage that produced the results.",
	}, []string{"mode", "kind", "stage"})

	SearchNoticesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gamepass",
		Name:      "search_notices_total",
		Help:      "Degraded search stages by stage name.",
	}, []string{"stage"})

	LLMRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gamepass",
		Name:      "llm_requests_total",
		Help:      "Total language model calls by operation and result status.",
	}, []string{"operation", "status"})

	LLMRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gamepass",
		Name:      "llm_request_duration_seconds",
		Help:      "Language model call duration in seconds.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"operation"})

	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gamepass",
		Name:      "cache_hits_total",
		Help:      "Total number of search memo hits.",
	})

	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gamepass",
		Name:      "cache_misses_total",
		Help:      "Total number of search memo misses.",
	})

	ScrapePagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gamepass",
		Name:      "scrape_pages_total",
		Help:      "Detail pages processed by the scraper by outcome.",
	}, []string{"outcome"})

	ScrapePageDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gamepass",
		Name:      "scrape_page_duration_seconds",
		Help:      "Detail page load and extraction duration in seconds.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 15, 30, 60},
	})

	CatalogGames = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gamepass",
		Name:      "catalog_games",
		Help:      "Number of games saved by the last catalog rebuild.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		SearchRequestsTotal,
		SearchNoticesTotal,
		LLMRequestsTotal,
		LLMRequestDuration,
		CacheHitsTotal,
		CacheMissesTotal,
		ScrapePagesTotal,
		ScrapePageDuration,
		CatalogGames,
	)
}
