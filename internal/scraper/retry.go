package scraper

import (
	"context"
	"fmt"
	"strings"

	"auctionharvester/internal/logger"
	"auctionharvester/internal/models"
)

// Store persists the auction collection as one document
type Store interface {
	Load(ctx context.Context) (models.Collection, error)
	Save(ctx context.Context, c models.Collection) error
}

// Coordinator runs the retry rounds over a whole collection
type Coordinator struct {
	processor *Processor
	store     Store
	rounds    int
	log       logger.Logger
}

// NewCoordinator creates a coordinator with the given smart-round budget
func NewCoordinator(p *Processor, st Store, rounds int, log logger.Logger) *Coordinator {
	return &Coordinator{processor: p, store: st, rounds: rounds, log: log}
}

// Run executes the timeout round, the smart rounds and completion synthesis,
// saving after every unit. The returned collection may have grown by the
// appended derivative records.
func (c *Coordinator) Run(ctx context.Context, coll models.Collection) (models.Collection, error) {
	if err := c.TimeoutRound(ctx, coll); err != nil {
		return coll, err
	}
	if err := c.SmartRounds(ctx, coll); err != nil {
		return coll, err
	}
	return c.Synthesize(ctx, coll)
}

// TimeoutRound reprocesses every timed-out auction exactly once
func (c *Coordinator) TimeoutRound(ctx context.Context, coll models.Collection) error {
	targets := selectOriginals(coll, func(s models.Status) bool { return s == models.StatusTimeout })
	if len(targets) == 0 {
		return nil
	}
	c.log.Info("retrying timed-out auctions", logger.Int("auctions", len(targets)))

	recovered := 0
	for _, rec := range targets {
		rec.RetryRounds++
		if err := c.processor.ProcessAuction(ctx, rec); err != nil {
			return err
		}
		if rec.Status != models.StatusTimeout {
			recovered++
		}
		if err := c.save(ctx, coll); err != nil {
			return err
		}
	}
	c.log.Info("timeout round complete", logger.Int("recovered", recovered), logger.Int("auctions", len(targets)))
	return nil
}

// SmartRounds retries partial and failed auctions, refetching only vehicles
// outside the success set, until none remain or the budget is spent
func (c *Coordinator) SmartRounds(ctx context.Context, coll models.Collection) error {
	for round := 1; round <= c.rounds; round++ {
		targets := selectOriginals(coll, models.Status.NeedsSmartRetry)
		if len(targets) == 0 {
			c.log.Info("no partial or failed auctions left", logger.Int("round", round))
			return nil
		}
		c.log.Info("smart retry round",
			logger.Int("round", round),
			logger.Int("max_rounds", c.rounds),
			logger.Int("auctions", len(targets)))

		improved := 0
		for _, rec := range targets {
			before := rec.Status
			if err := c.smartRetry(ctx, rec); err != nil {
				return err
			}
			if rec.Status != before {
				improved++
			}
			if err := c.save(ctx, coll); err != nil {
				return err
			}
		}
		c.log.Info("smart retry round complete", logger.Int("round", round), logger.Int("improved", improved))
	}
	return nil
}

func (c *Coordinator) smartRetry(ctx context.Context, rec *models.AuctionRecord) error {
	log := c.log.With(logger.String("auction_id", rec.ID()), logger.String("title", rec.Title))
	success := rec.SuccessSet()
	vehicles := rec.Vehicles

	if rec.Expected() != rec.LoadedCount || rec.FetchFailed {
		log.Info("re-rendering listing",
			logger.Int("expected", rec.Expected()),
			logger.Int("loaded", rec.LoadedCount))
		res, err := c.processor.fetchListing(ctx, rec, log)
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			rec.FetchError = err.Error()
			log.Warn("listing re-render failed, keeping previous vehicles", logger.Error(err))
		case res.loaded == 0:
			log.Warn("listing re-render loaded no vehicles, keeping previous vehicles")
		default:
			rec.LoadedCount = res.loaded
			rec.FetchFailed = false
			rec.FetchError = ""
			vehicles = Merge(vehicles, res.filtered)
		}
	}

	var retried []models.VehicleRecord
	for i := range vehicles {
		if success.Has(vehicles[i].Key()) {
			continue
		}
		v := vehicles[i].Clone()
		if err := c.processor.FetchImages(ctx, &v, log); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		retried = append(retried, v)
	}
	log.Info("retried vehicles", logger.Int("retried", len(retried)), logger.Int("kept", len(success)))

	rec.Vehicles = Merge(vehicles, retried)
	rec.RetryRounds++
	c.processor.finish(rec, log)

	if after := rec.SuccessSet(); !success.SubsetOf(after) {
		// Merge keeps every previous success, so this is a programming error
		var lost []string
		for _, k := range success.Keys() {
			if !after.Has(k) {
				lost = append(lost, k.String())
			}
		}
		return fmt.Errorf("auction %s: success set lost %s", rec.ID(), strings.Join(lost, ", "))
	}
	return nil
}

// Synthesize appends one complete derivative for every auction still
// partial. Auctions that already have a derivative are skipped.
func (c *Coordinator) Synthesize(ctx context.Context, coll models.Collection) (models.Collection, error) {
	partial := selectOriginals(coll, func(s models.Status) bool { return s == models.StatusPartial })

	added := 0
	for _, rec := range partial {
		if coll.HasDerivative(rec.ID()) {
			continue
		}
		derived, ok := rec.CompleteDerivative(c.processor.opts.Now())
		if !ok {
			c.log.Warn("partial auction has no complete vehicles to derive", logger.String("auction_id", rec.ID()))
			continue
		}
		coll = append(coll, derived)
		added++
		c.log.Info("appended complete derivative",
			logger.String("auction_id", rec.ID()),
			logger.Int("vehicles", len(derived.Vehicles)),
			logger.Int("original_vehicles", len(rec.Vehicles)))
	}
	if added == 0 {
		return coll, nil
	}
	return coll, c.save(ctx, coll)
}

func (c *Coordinator) save(ctx context.Context, coll models.Collection) error {
	if err := c.store.Save(ctx, coll); err != nil {
		return fmt.Errorf("save collection: %w", err)
	}
	return nil
}

func selectOriginals(coll models.Collection, pred func(models.Status) bool) []*models.AuctionRecord {
	var out []*models.AuctionRecord
	for _, rec := range coll {
		if !rec.Derived && rec.Processed() && pred(rec.Status) {
			out = append(out, rec)
		}
	}
	return out
}
