package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Browser is the page driver the scraper needs. Implementations hold a single page.
type Browser interface {
	Open(ctx context.Context, url string) error
	// LoadMore clicks the listing's "load more" control; false means it is gone.
	LoadMore(ctx context.Context) (bool, error)
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	Content() (string, error)
	Close() error
}

const loadMoreSelector = "button:has-text('Cargar más')"

var blockedResourceTypes = map[string]struct{}{
	"image": {},
	"font":  {},
	"media": {},
}

var blockedHosts = []string{
	"google-analytics",
	"googletagmanager",
	"doubleclick",
	"facebook.net",
	"clarity.ms",
	"hotjar",
}

func shouldBlock(resourceType, url string) bool {
	if _, ok := blockedResourceTypes[resourceType]; ok {
		return true
	}
	url = strings.ToLower(url)
	for _, host := range blockedHosts {
		if strings.Contains(url, host) {
			return true
		}
	}
	return false
}

type PlaywrightConfig struct {
	Headless          bool
	ExecutablePath    string
	NavigationTimeout time.Duration
	LoadMoreTimeout   time.Duration
	// SettleDelay is waited after every navigation and click so lazy content renders.
	SettleDelay time.Duration
}

// PlaywrightBrowser drives headless Chromium through playwright-go.
type PlaywrightBrowser struct {
	cfg     PlaywrightConfig
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
}

func NewPlaywrightBrowser(cfg PlaywrightConfig) (*PlaywrightBrowser, error) {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if cfg.LoadMoreTimeout <= 0 {
		cfg.LoadMoreTimeout = 20 * time.Second
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Args:     []string{"--no-sandbox", "--disable-gpu", "--disable-dev-shm-usage"},
	}
	if cfg.ExecutablePath != "" {
		launch.ExecutablePath = playwright.String(cfg.ExecutablePath)
	}
	browser, err := pw.Chromium.Launch(launch)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	page, err := browser.NewPage(playwright.BrowserNewPageOptions{
		Locale:   playwright.String("es-CO"),
		Viewport: &playwright.Size{Width: 1920, Height: 1080},
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("open page: %w", err)
	}
	page.SetDefaultNavigationTimeout(millis(cfg.NavigationTimeout))
	if err := page.Route("**/*", func(route playwright.Route) {
		req := route.Request()
		if shouldBlock(req.ResourceType(), req.URL()) {
			_ = route.Abort("blockedbyclient")
			return
		}
		_ = route.Continue()
	}); err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("install resource filter: %w", err)
	}
	return &PlaywrightBrowser{cfg: cfg, pw: pw, browser: browser, page: page}, nil
}

func (b *PlaywrightBrowser) Open(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := b.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(millis(b.cfg.NavigationTimeout)),
	}); err != nil {
		return fmt.Errorf("goto %s: %w", url, err)
	}
	return sleep(ctx, b.cfg.SettleDelay)
}

func (b *PlaywrightBrowser) LoadMore(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	button := b.page.Locator(loadMoreSelector).First()
	err := button.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(millis(b.cfg.LoadMoreTimeout)),
	})
	if errors.Is(err, playwright.ErrTimeout) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("wait for load more: %w", err)
	}
	if err := button.ScrollIntoViewIfNeeded(); err != nil {
		return false, fmt.Errorf("scroll to load more: %w", err)
	}
	if err := button.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(millis(b.cfg.LoadMoreTimeout)),
	}); err != nil {
		return false, fmt.Errorf("click load more: %w", err)
	}
	return true, sleep(ctx, b.cfg.SettleDelay)
}

func (b *PlaywrightBrowser) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(millis(timeout)),
	})
}

func (b *PlaywrightBrowser) Content() (string, error) {
	return b.page.Content()
}

func (b *PlaywrightBrowser) Close() error {
	var errs []error
	if b.page != nil {
		errs = append(errs, b.page.Close())
	}
	if b.browser != nil {
		errs = append(errs, b.browser.Close())
	}
	if b.pw != nil {
		errs = append(errs, b.pw.Stop())
	}
	return errors.Join(errs...)
}

func millis(d time.Duration) float64 {
	return float64(d / time.Millisecond)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
