package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nicortesm/GamepassCopilot/internal/app"
	"github.com/Nicortesm/GamepassCopilot/internal/catalog"
	"github.com/Nicortesm/GamepassCopilot/internal/domain"
	"github.com/Nicortesm/GamepassCopilot/internal/events"
	"github.com/Nicortesm/GamepassCopilot/internal/scraper"
	"github.com/Nicortesm/GamepassCopilot/internal/telemetry"
)

func main() {
	cfg := app.LoadConfig()
	logger := app.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Build and query the Game Pass catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfg.CatalogDBPath, "db", cfg.CatalogDBPath, "catalog database path")

	root.AddCommand(newScrapeCommand(&cfg, logger))
	root.AddCommand(newSearchCommand(&cfg, logger))
	root.AddCommand(newCountCommand(&cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("command failed", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}

func newScrapeCommand(cfg *app.Config, logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Rebuild the catalog from the Game Pass listing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			shutdownTracer, err := telemetry.Init(ctx, "gamepass-scraper")
			if err != nil {
				logger.Warn("otel init failed", slog.String("error", err.Error()))
			}
			defer func() {
				if shutdownTracer != nil {
					_ = shutdownTracer(context.Background())
				}
			}()

			store, err := catalog.Open(cfg.CatalogDBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			browser, err := scraper.NewPlaywrightBrowser(scraper.PlaywrightConfig{
				Headless:          cfg.ScraperHeadless,
				ExecutablePath:    cfg.ScraperBrowserPath,
				NavigationTimeout: cfg.ScraperNavTimeout,
				LoadMoreTimeout:   cfg.ScraperLoadMoreTimeout,
				SettleDelay:       cfg.ScraperSettleDelay,
			})
			if err != nil {
				return err
			}
			defer func() {
				if err := browser.Close(); err != nil {
					logger.Warn("close browser failed", slog.String("error", err.Error()))
				}
			}()

			retry := scraper.DefaultRetryConfig()
			retry.MaxAttempts = cfg.ScraperDetailAttempts
			opts := []scraper.Option{
				scraper.WithCatalogURL(cfg.CatalogURL),
				scraper.WithDetailTimeout(cfg.ScraperDetailTimeout),
				scraper.WithMaxLoadMore(cfg.ScraperMaxLoadMore),
				scraper.WithRetry(retry),
				scraper.WithPagesPerMinute(cfg.ScraperPagesPerMinute),
				scraper.WithLogger(logger),
			}
			if nc := app.ConnectEvents(*cfg, "gamepass-scraper", logger); nc != nil {
				defer nc.Close()
				opts = append(opts, scraper.WithPublisher(events.NewPublisher(nc, cfg.EventsSubject)))
			}

			stats, err := scraper.New(browser, store, opts...).Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "links=%d saved=%d skipped=%d failed=%d elapsed=%s\n",
				stats.Links, stats.Saved, stats.Skipped, stats.Failed, stats.Elapsed.Round(time.Second))
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.CatalogURL, "url", cfg.CatalogURL, "catalog listing URL")
	cmd.Flags().BoolVar(&cfg.ScraperHeadless, "headless", cfg.ScraperHeadless, "run the browser without a window")
	cmd.Flags().IntVar(&cfg.ScraperMaxLoadMore, "max-load-more", cfg.ScraperMaxLoadMore, "maximum number of \"load more\" clicks")
	return cmd
}

func newSearchCommand(cfg *app.Config, logger *slog.Logger) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a search against the local catalog and print JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			searchMode, ok := domain.ParseSearchMode(mode)
			if !ok {
				return fmt.Errorf("unknown mode %q (keyword|assistant)", mode)
			}
			store, err := catalog.Open(cfg.CatalogDBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			service := app.NewSearchService(*cfg, store, logger)
			response := service.Search(cmd.Context(), domain.SearchRequest{
				Query: strings.Join(args, " "),
				Mode:  searchMode,
			})
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(response)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(domain.SearchModeAssistant), "keyword or assistant")
	return cmd
}

func newCountCommand(cfg *app.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of games in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := catalog.Open(cfg.CatalogDBPath)
			if err != nil {
				return err
			}
			defer store.Close()
			total, err := store.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), total)
			return nil
		},
	}
}
