// Package scraper rebuilds the catalog from the live Game Pass listing.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Nicortesm/GamepassCopilot/internal/domain"
	"github.com/Nicortesm/GamepassCopilot/internal/events"
	"github.com/Nicortesm/GamepassCopilot/internal/extract"
	"github.com/Nicortesm/GamepassCopilot/internal/metrics"
)

const DefaultCatalogURL = "https://www.xbox.com/es-CO/xbox-game-pass/games"

type Store interface {
	Reset(ctx context.Context) error
	Upsert(ctx context.Context, rec domain.GameRecord) error
}

type EventPublisher interface {
	PublishCatalogRebuilt(ctx context.Context, event events.CatalogRebuilt) error
}

type RunStats struct {
	Links   int
	Saved   int
	Skipped int
	Failed  int
	Elapsed time.Duration
}

type Scraper struct {
	browser       Browser
	store         Store
	catalogURL    string
	detailTimeout time.Duration
	maxLoadMore   int
	retry         RetryConfig
	limiter       *rate.Limiter
	publisher     EventPublisher
	logger        *slog.Logger
}

type Option func(*Scraper)

func WithCatalogURL(url string) Option {
	return func(s *Scraper) {
		if url = strings.TrimSpace(url); url != "" {
			s.catalogURL = url
		}
	}
}

func WithDetailTimeout(timeout time.Duration) Option {
	return func(s *Scraper) {
		if timeout > 0 {
			s.detailTimeout = timeout
		}
	}
}

// WithMaxLoadMore bounds the number of "load more" clicks on the listing.
func WithMaxLoadMore(n int) Option {
	return func(s *Scraper) {
		if n > 0 {
			s.maxLoadMore = n
		}
	}
}

func WithRetry(cfg RetryConfig) Option {
	return func(s *Scraper) {
		s.retry = cfg
	}
}

// WithPagesPerMinute throttles detail page loads. Zero or less disables throttling.
func WithPagesPerMinute(n int) Option {
	return func(s *Scraper) {
		if n <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
	}
}

func WithPublisher(p EventPublisher) Option {
	return func(s *Scraper) {
		s.publisher = p
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scraper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(browser Browser, store Store, opts ...Option) *Scraper {
	s := &Scraper{
		browser:       browser,
		store:         store,
		catalogURL:    DefaultCatalogURL,
		detailTimeout: 15 * time.Second,
		maxLoadMore:   500,
		retry:         DefaultRetryConfig(),
		limiter:       rate.NewLimiter(rate.Every(time.Second), 1),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run wipes the catalog and rebuilds it from the listing. Per-page failures are
// counted and skipped; only reset, listing and cancellation errors abort the run.
func (s *Scraper) Run(ctx context.Context) (RunStats, error) {
	started := time.Now()
	var stats RunStats

	if err := s.store.Reset(ctx); err != nil {
		return stats, fmt.Errorf("reset catalog: %w", err)
	}

	links, err := s.collectLinks(ctx)
	if err != nil {
		return stats, err
	}
	stats.Links = len(links)
	s.logger.Info("catalog listing loaded", slog.Int("links", len(links)))

	for i, link := range links {
		if err := s.limiter.Wait(ctx); err != nil {
			stats.Elapsed = time.Since(started)
			return stats, err
		}
		switch s.scrapeOne(ctx, link) {
		case outcomeSaved:
			stats.Saved++
		case outcomeSkipped:
			stats.Skipped++
		case outcomeFailed:
			stats.Failed++
		}
		if err := ctx.Err(); err != nil {
			stats.Elapsed = time.Since(started)
			return stats, err
		}
		if (i+1)%50 == 0 {
			s.logger.Info("scrape progress",
				slog.Int("done", i+1),
				slog.Int("total", len(links)),
				slog.Int("saved", stats.Saved),
			)
		}
	}

	metrics.CatalogGames.Set(float64(stats.Saved))
	stats.Elapsed = time.Since(started)
	s.logger.Info("catalog rebuilt",
		slog.Int("saved", stats.Saved),
		slog.Int("skipped", stats.Skipped),
		slog.Int("failed", stats.Failed),
		slog.Duration("elapsed", stats.Elapsed),
	)
	s.publish(ctx, stats)
	return stats, nil
}

func (s *Scraper) collectLinks(ctx context.Context) ([]string, error) {
	if err := s.browser.Open(ctx, s.catalogURL); err != nil {
		return nil, fmt.Errorf("open listing: %w", err)
	}
	clicks := 0
	for clicks < s.maxLoadMore {
		more, err := s.browser.LoadMore(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			s.logger.Warn("load more failed, using what is loaded",
				slog.Int("clicks", clicks),
				slog.String("error", err.Error()),
			)
			break
		}
		if !more {
			break
		}
		clicks++
		s.logger.Debug("load more clicked", slog.Int("clicks", clicks))
	}

	content, err := s.browser.Content()
	if err != nil {
		return nil, fmt.Errorf("read listing: %w", err)
	}
	doc, err := extract.ParseHTML(strings.NewReader(content))
	if err != nil {
		return nil, err
	}
	return extract.ListingLinks(doc), nil
}

type outcome int

const (
	outcomeSaved outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (o outcome) String() string {
	switch o {
	case outcomeSaved:
		return "saved"
	case outcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

func (s *Scraper) scrapeOne(ctx context.Context, link string) (result outcome) {
	started := time.Now()
	defer func() {
		metrics.ScrapePagesTotal.WithLabelValues(result.String()).Inc()
		metrics.ScrapePageDuration.Observe(time.Since(started).Seconds())
	}()

	var content string
	err := RetryWithBackoff(ctx, s.retry, func() error {
		if err := s.browser.Open(ctx, link); err != nil {
			return err
		}
		if err := s.browser.WaitFor(ctx, extract.TitleSelector, s.detailTimeout); err != nil {
			return err
		}
		var err error
		content, err = s.browser.Content()
		return err
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("detail page skipped",
				slog.String("url", link),
				slog.String("error", err.Error()),
			)
		}
		return outcomeSkipped
	}

	doc, err := extract.ParseHTML(strings.NewReader(content))
	if err != nil {
		s.logger.Warn("detail page unreadable", slog.String("url", link), slog.String("error", err.Error()))
		return outcomeSkipped
	}
	rec, ok := extract.Extract(doc, link)
	if !ok {
		s.logger.Warn("detail page has no title", slog.String("url", link))
		return outcomeSkipped
	}
	if err := s.store.Upsert(ctx, rec); err != nil {
		s.logger.Error("save game failed",
			slog.String("title", rec.Title),
			slog.String("error", err.Error()),
		)
		return outcomeFailed
	}
	return outcomeSaved
}

func (s *Scraper) publish(ctx context.Context, stats RunStats) {
	if s.publisher == nil {
		return
	}
	event := events.CatalogRebuilt{
		Saved:      stats.Saved,
		Skipped:    stats.Skipped,
		Failed:     stats.Failed,
		FinishedAt: time.Now().UTC(),
	}
	if err := s.publisher.PublishCatalogRebuilt(ctx, event); err != nil {
		s.logger.Warn("publish catalog event failed", slog.String("error", err.Error()))
	}
}
