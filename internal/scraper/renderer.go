package scraper

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"auctionharvester/internal/logger"
)

// Credentials is the opaque session value handed to the renderer
type Credentials string

// RenderRequest describes one page render
type RenderRequest struct {
	URL         string
	Credentials Credentials
	Timeout     time.Duration

	// WaitFor is the primary content marker awaited after navigation
	WaitFor string
	// ScrollSelector, when set, triggers lazy loading: scroll until the
	// number of matching elements stops growing
	ScrollSelector string
	// Clicks are tried in order; the first present element is clicked
	Clicks []string
	// ClickWaitFor is awaited after a successful click
	ClickWaitFor string
}

// Renderer turns a URL into rendered HTML. Implementations return a
// *RenderError (or an error wrapping one) so the kind can be logged.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (string, error)
}

// renderLoop retries a render with exponential backoff and paces page
// loads so consecutive renders are at least the unit delay apart
type renderLoop struct {
	renderer Renderer
	attempts int
	backoff  time.Duration
	pacer    *rate.Limiter
	log      logger.Logger
}

func newRenderLoop(r Renderer, attempts int, backoff, unitDelay time.Duration, log logger.Logger) *renderLoop {
	if attempts <= 0 {
		attempts = 1
	}
	limit := rate.Inf
	if unitDelay > 0 {
		limit = rate.Every(unitDelay)
	}
	return &renderLoop{
		renderer: r,
		attempts: attempts,
		backoff:  backoff,
		pacer:    rate.NewLimiter(limit, 1),
		log:      log,
	}
}

// do renders req. accept, when non-nil, validates the HTML; a rejected page
// counts as a timeout except on the final attempt, where it is returned as-is.
func (l *renderLoop) do(ctx context.Context, req RenderRequest, accept func(string) bool) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= l.attempts; attempt++ {
		if attempt > 1 {
			delay := l.backoff << (attempt - 2)
			l.log.Info("retrying render",
				logger.String("url", req.URL),
				logger.Int("attempt", attempt),
				logger.Duration("backoff", delay))
			if err := sleep(ctx, delay); err != nil {
				return "", err
			}
		}
		if err := l.pacer.Wait(ctx); err != nil {
			return "", err
		}

		html, err := l.renderer.Render(ctx, req)
		if err == nil && accept != nil && !accept(html) {
			if attempt == l.attempts {
				return html, nil
			}
			err = NewTimeout(req.URL, errContentMissing)
		}
		if err == nil {
			if attempt > 1 {
				l.log.Info("render succeeded on retry", logger.String("url", req.URL), logger.Int("attempt", attempt))
			}
			return html, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		re := asRenderError(err, req.URL, attempt)
		if re.Kind == KindTimeout {
			l.log.Warn("render timed out", logger.String("url", req.URL), logger.Int("attempt", attempt), logger.Error(re.Err))
		} else {
			l.log.Error("render failed", logger.String("url", req.URL), logger.Int("attempt", attempt), logger.Error(re.Err))
		}
		lastErr = re
	}
	return "", lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
