package scraper

import (
	"context"
	"errors"
	"strings"
	"time"

	"auctionharvester/internal/logger"
	"auctionharvester/internal/models"
)

// Options configures the processor and the retry coordinator
type Options struct {
	BaseURL     string
	Credentials Credentials
	Filter      Filter
	Gallery     GalleryExtractor

	PageTimeout     time.Duration
	RenderAttempts  int
	RenderBackoff   time.Duration
	ImageAttempts   int
	ImageRetryDelay time.Duration
	UnitDelay       time.Duration
	SmartRounds     int

	// Now is used to stamp records; defaults to time.Now
	Now func() time.Time
}

// Processor runs the per-auction pipeline: listing, filter, galleries, status
type Processor struct {
	opts   Options
	render *renderLoop
	log    logger.Logger
}

// NewProcessor creates a processor rendering through r
func NewProcessor(r Renderer, opts Options, log logger.Logger) *Processor {
	if opts.ImageAttempts <= 0 {
		opts.ImageAttempts = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Processor{
		opts:   opts,
		render: newRenderLoop(r, opts.RenderAttempts, opts.RenderBackoff, opts.UnitDelay, log),
		log:    log,
	}
}

// ListingURL is the SPA route of an auction listing
func (p *Processor) ListingURL(slug string) string {
	return strings.TrimRight(p.opts.BaseURL, "/") + "/#/auctionDetail/" + slug
}

// DetailURL is the SPA route of a vehicle detail page
func (p *Processor) DetailURL(v *models.VehicleRecord) string {
	base := strings.TrimRight(p.opts.BaseURL, "/")
	switch link := v.VehicleLink; {
	case link == "":
		return base + "/#/auction/vehicleDetail/" + v.VID + "/" + v.ItemID
	case strings.HasPrefix(link, "/"):
		return base + link
	case strings.HasPrefix(link, "http"):
		return link
	default:
		return base + "/" + link
	}
}

// listingResult is the outcome of rendering and parsing one listing
type listingResult struct {
	loaded   int
	filtered []models.VehicleRecord
}

// fetchListing renders the listing and returns its filtered stubs
func (p *Processor) fetchListing(ctx context.Context, rec *models.AuctionRecord, log logger.Logger) (listingResult, error) {
	html, err := p.render.do(ctx, RenderRequest{
		URL:            p.ListingURL(rec.Slug),
		Credentials:    p.opts.Credentials,
		Timeout:        p.opts.PageTimeout,
		WaitFor:        detailLinkSelector + ", " + rowSelector,
		ScrollSelector: rowSelector,
	}, hasListingMarkers)
	if err != nil {
		return listingResult{}, err
	}

	stubs, err := ExtractVehicles(html)
	if err != nil {
		return listingResult{}, NewFailure(p.ListingURL(rec.Slug), err)
	}
	log.Info("extracted vehicles from listing", logger.Int("loaded", len(stubs)))

	matched, missing := p.opts.Filter.Apply(stubs)
	for _, m := range missing {
		log.Warn("vehicle excluded", logger.Error(m))
	}
	return listingResult{loaded: len(stubs), filtered: matched}, nil
}

// ProcessAuction runs the full pass for one auction and updates rec in place.
// Render and extraction failures are recorded on rec; only context
// cancellation is returned.
func (p *Processor) ProcessAuction(ctx context.Context, rec *models.AuctionRecord) error {
	log := p.log.With(logger.String("auction_id", rec.ID()), logger.String("title", rec.Title))
	log.Info("processing auction", logger.Int("expected", rec.Expected()))

	res, err := p.fetchListing(ctx, rec, log)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rec.Vehicles = []models.VehicleRecord{}
		rec.LoadedCount = 0
		rec.FetchFailed = IsHardFailure(err)
		rec.FetchError = err.Error()
		p.finish(rec, log)
		return nil
	}

	rec.FetchFailed = false
	rec.FetchError = ""
	rec.LoadedCount = res.loaded
	if res.loaded == 0 && rec.Expected() > 0 {
		log.Warn("listing loaded no vehicles", logger.Int("expected", rec.Expected()))
	}
	if res.loaded > 0 && len(res.filtered) == 0 {
		log.Warn("no vehicles match filters",
			logger.String("region_prefix", p.opts.Filter.RegionPrefix),
			logger.String("status_phrase", p.opts.Filter.StatusPhrase))
	}

	for i := range res.filtered {
		if err := p.FetchImages(ctx, &res.filtered[i], log); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}
	rec.Vehicles = res.filtered
	p.finish(rec, log)
	return nil
}

// FetchImages renders the vehicle's detail page, opens the gallery and
// extracts images, retrying an empty result. Images are only replaced on
// success. The returned error is informational unless ctx is done.
func (p *Processor) FetchImages(ctx context.Context, v *models.VehicleRecord, log logger.Logger) error {
	log = log.With(logger.String("vid", v.VID), logger.String("registration", v.RegistrationNumber))
	if v.VID == "" || v.ItemID == "" {
		v.LastError = ErrMissingField.Error() + ": vid/item_id"
		log.Warn("vehicle lacks identity, skipping gallery")
		return ErrMissingField
	}
	if v.Images == nil {
		v.Images = []string{}
	}

	req := RenderRequest{
		URL:          p.DetailURL(v),
		Credentials:  p.opts.Credentials,
		Timeout:      p.opts.PageTimeout,
		WaitFor:      detailWaitFor,
		Clicks:       galleryClicks,
		ClickWaitFor: galleryWaitFor,
	}

	var lastErr error
	for attempt := 1; attempt <= p.opts.ImageAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, p.opts.ImageRetryDelay); err != nil {
				return err
			}
		}
		v.ImageAttempts++

		html, err := p.render.do(ctx, req, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}

		urls := p.opts.Gallery.ExtractImageURLs(html)
		if len(urls) > 0 {
			v.SetImages(urls)
			v.LastError = ""
			log.Info("gallery images found", logger.Int("images", len(urls)), logger.Int("attempt", attempt))
			return nil
		}
		lastErr = ErrExtractionEmpty
		log.Warn("gallery yielded no images", logger.Int("attempt", attempt), logger.Int("max_attempts", p.opts.ImageAttempts))
	}

	v.LastError = lastErr.Error()
	if !errors.Is(lastErr, ErrExtractionEmpty) {
		log.Error("detail page unavailable", logger.Error(lastErr))
	}
	return lastErr
}

func (p *Processor) finish(rec *models.AuctionRecord, log logger.Logger) {
	rec.UpdatedAt = p.opts.Now()
	rec.Recompute()
	log.Info("auction processed", logger.String("status", string(rec.Status)), logger.String("summary", rec.Summary))
}
