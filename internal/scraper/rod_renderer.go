package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"auctionharvester/internal/logger"
)

const (
	initialScrollTries = 5
	initialScrollWait  = 3 * time.Second
	maxScrolls         = 50
	scrollWait         = 2 * time.Second
	quietPeriod        = time.Second
)

// RodConfig configures the headless browser
type RodConfig struct {
	BaseURL     string
	Headless    bool
	ChromeBin   string
	ContentWait time.Duration
}

// RodRenderer renders pages in a single headless Chromium, one page at a time
type RodRenderer struct {
	cfg     RodConfig
	log     logger.Logger
	mu      sync.Mutex
	browser *rod.Browser
}

// NewRodRenderer creates a renderer; the browser is launched on first use
func NewRodRenderer(cfg RodConfig, log logger.Logger) *RodRenderer {
	if cfg.ContentWait <= 0 {
		cfg.ContentWait = 20 * time.Second
	}
	return &RodRenderer{cfg: cfg, log: log}
}

func (r *RodRenderer) initBrowser() error {
	l := launcher.New().
		Headless(r.cfg.Headless).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-gpu").
		Set("disable-extensions").
		Set("disable-background-timer-throttling").
		Set("disable-renderer-backgrounding").
		Set("window-size", "1920,1080")

	if bin := findChromiumPath(r.cfg.ChromeBin); bin != "" {
		r.log.Info("using chromium binary", logger.String("path", bin))
		l = l.Bin(bin)
	}
	if isDockerEnvironment() {
		r.log.Info("container environment detected, applying sandbox flags")
		l = l.Set("disable-setuid-sandbox").
			Set("no-first-run").
			Set("disable-default-apps")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to browser: %w", err)
	}
	r.browser = browser
	r.log.Info("browser initialized", logger.Bool("headless", r.cfg.Headless))
	return nil
}

// Render implements Renderer
func (r *RodRenderer) Render(ctx context.Context, req RenderRequest) (html string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			html, err = "", NewFailure(req.URL, fmt.Errorf("browser panic: %v", p))
		}
	}()

	if r.browser == nil {
		if err := r.initBrowser(); err != nil {
			return "", NewFailure(req.URL, err)
		}
	}

	page, err := stealth.Page(r.browser)
	if err != nil {
		return "", NewFailure(req.URL, fmt.Errorf("open page: %w", err))
	}
	defer func() { _ = page.Close() }()

	if err := page.SetCookies(cookieParams(r.cfg.BaseURL, req.Credentials)); err != nil {
		return "", NewFailure(req.URL, fmt.Errorf("set cookies: %w", err))
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	p := page.Context(pctx)

	if err := p.Navigate(req.URL); err != nil {
		return "", classify(req.URL, err, KindFailure)
	}
	if err := p.WaitLoad(); err != nil {
		r.log.Warn("wait load failed, continuing", logger.String("url", req.URL), logger.Error(err))
	}

	if req.WaitFor != "" {
		if _, err := p.Timeout(r.cfg.ContentWait).Element(req.WaitFor); err != nil {
			if pctx.Err() != nil {
				return "", classify(req.URL, err, KindTimeout)
			}
			// marker missing; lazy loading may still bring it in
			r.log.Debug("content marker not found", logger.String("url", req.URL), logger.String("selector", req.WaitFor))
		}
	}

	if req.ScrollSelector != "" {
		if err := r.scrollUntilStable(pctx, p, req.ScrollSelector); err != nil {
			return "", classify(req.URL, err, KindTimeout)
		}
	}

	if len(req.Clicks) > 0 {
		if err := r.clickFirst(p, req); err != nil {
			r.log.Debug("gallery click failed", logger.String("url", req.URL), logger.Error(err))
		}
	}

	if err := p.WaitStable(quietPeriod); err != nil && pctx.Err() != nil {
		return "", classify(req.URL, err, KindTimeout)
	}

	html, err = p.HTML()
	if err != nil {
		return "", classify(req.URL, err, KindFailure)
	}
	return html, nil
}

// scrollUntilStable scrolls to the bottom until the number of rows stops
// growing. When no rows are present yet, a few slower tries give the SPA
// time to start loading.
func (r *RodRenderer) scrollUntilStable(ctx context.Context, p *rod.Page, selector string) error {
	count := func() int {
		els, err := p.Elements(selector)
		if err != nil {
			return 0
		}
		return len(els)
	}
	scroll := func() { _, _ = p.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`) }

	for i := 0; i < initialScrollTries && count() == 0; i++ {
		scroll()
		if err := sleep(ctx, initialScrollWait); err != nil {
			return err
		}
	}

	last := count()
	for i := 0; i < maxScrolls; i++ {
		scroll()
		if err := sleep(ctx, scrollWait); err != nil {
			return err
		}
		n := count()
		if n == last {
			break
		}
		last = n
	}
	r.log.Debug("scroll loop finished", logger.Int("rows", last))
	return nil
}

// clickFirst clicks the first selector present and waits for its target
func (r *RodRenderer) clickFirst(p *rod.Page, req RenderRequest) error {
	for _, sel := range req.Clicks {
		has, el, err := p.Has(sel)
		if err != nil || !has {
			continue
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			continue
		}
		if req.ClickWaitFor != "" {
			if _, err := p.Timeout(r.cfg.ContentWait).Element(req.ClickWaitFor); err != nil {
				return fmt.Errorf("wait for %s: %w", req.ClickWaitFor, err)
			}
		}
		return nil
	}
	return errors.New("no gallery trigger present")
}

// Close shuts the browser down
func (r *RodRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.browser = nil
	return err
}

func classify(u string, err error, fallback FailureKind) *RenderError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeout(u, err)
	}
	return &RenderError{Kind: fallback, URL: u, Err: err}
}

// cookieParams splits a raw "a=b; c=d" cookie header into browser cookies
// scoped to the base URL's host
func cookieParams(baseURL string, creds Credentials) []*proto.NetworkCookieParam {
	domain := ""
	if u, err := url.Parse(baseURL); err == nil {
		domain = u.Hostname()
	}

	var params []*proto.NetworkCookieParam
	for _, part := range strings.Split(string(creds), ";") {
		name, value, ok := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		params = append(params, &proto.NetworkCookieParam{
			Name:   name,
			Value:  strings.TrimSpace(value),
			Domain: domain,
			Path:   "/",
		})
	}
	return params
}

// findChromiumPath looks for a Chromium/Chrome binary in common locations
func findChromiumPath(configured string) string {
	if configured != "" {
		if _, err := os.Stat(configured); err == nil {
			return configured
		}
	}
	paths := []string{
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/snap/bin/chromium",
		"/opt/google/chrome/chrome",
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func isDockerEnvironment() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if data, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		return strings.Contains(string(data), "docker") || strings.Contains(string(data), "containerd")
	}
	return false
}
