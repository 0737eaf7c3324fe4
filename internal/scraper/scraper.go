package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"auctionharvester/internal/logger"
	"auctionharvester/internal/models"
	"auctionharvester/internal/validation"
)

// Engine drives a full harvest: seeding, first pass and retry rounds
type Engine struct {
	processor   *Processor
	coordinator *Coordinator
	store       Store
	log         logger.Logger
}

// NewEngine wires a processor and a retry coordinator around r and st
func NewEngine(r Renderer, st Store, opts Options, log logger.Logger) *Engine {
	p := NewProcessor(r, opts, log)
	return &Engine{
		processor:   p,
		coordinator: NewCoordinator(p, st, opts.SmartRounds, log),
		store:       st,
		log:         log,
	}
}

// Seed merges descriptors into coll by auction id. Existing records are left
// alone, so a rerun resumes where the previous one stopped. Invalid
// descriptors are skipped and reported.
func Seed(coll models.Collection, descriptors []models.AuctionDescriptor) (models.Collection, int, []error) {
	added := 0
	var skipped []error
	for _, d := range descriptors {
		if err := validation.ValidateDescriptor(d); err != nil {
			skipped = append(skipped, err)
			continue
		}
		if coll.Find(d.ID()) != nil {
			continue
		}
		d.Slug = strings.TrimSpace(d.Slug)
		coll = append(coll, models.NewAuctionRecord(d))
		added++
	}
	return coll, added, skipped
}

// SelectByTitleDate keeps the descriptors whose title carries day. Titles
// without a parseable date are dropped.
func SelectByTitleDate(descriptors []models.AuctionDescriptor, day time.Time) []models.AuctionDescriptor {
	y, m, d := day.Date()
	out := make([]models.AuctionDescriptor, 0, len(descriptors))
	for _, desc := range descriptors {
		td, ok := desc.TitleDate()
		if !ok {
			continue
		}
		if ty, tm, tdd := td.Date(); ty == y && tm == m && tdd == d {
			out = append(out, desc)
		}
	}
	return out
}

// Harvest processes every unprocessed auction named by descriptors once,
// saving after each, and then runs the retry rounds over the whole collection
func (e *Engine) Harvest(ctx context.Context, descriptors []models.AuctionDescriptor) (models.Collection, error) {
	coll, err := e.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load collection: %w", err)
	}
	coll, added, skipped := Seed(coll, descriptors)
	for _, err := range skipped {
		e.log.Warn("skipping auction descriptor", logger.Error(err))
	}
	if added > 0 {
		if err := e.store.Save(ctx, coll); err != nil {
			return coll, fmt.Errorf("save collection: %w", err)
		}
	}

	wanted := make(map[string]bool, len(descriptors))
	for _, d := range descriptors {
		wanted[d.ID()] = true
	}
	firstPass := func(rec *models.AuctionRecord) bool {
		return !rec.Derived && !rec.Processed() && wanted[rec.ID()]
	}

	pending := 0
	for _, rec := range coll {
		if firstPass(rec) {
			pending++
		}
	}
	e.log.Info("starting harvest",
		logger.Int("auctions", len(coll)),
		logger.Int("new", added),
		logger.Int("pending", pending))

	done := 0
	for _, rec := range coll {
		if !firstPass(rec) {
			continue
		}
		if err := e.processor.ProcessAuction(ctx, rec); err != nil {
			return coll, err
		}
		done++
		if err := e.store.Save(ctx, coll); err != nil {
			return coll, fmt.Errorf("save collection: %w", err)
		}
		e.log.Info("harvest progress", logger.Int("done", done), logger.Int("pending", pending))
	}

	coll, err = e.coordinator.Run(ctx, coll)
	if err != nil {
		return coll, err
	}
	e.logTotals(coll)
	return coll, nil
}

// Retry runs only the retry rounds over the stored collection
func (e *Engine) Retry(ctx context.Context) (models.Collection, error) {
	coll, err := e.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load collection: %w", err)
	}
	coll, err = e.coordinator.Run(ctx, coll)
	if err != nil {
		return coll, err
	}
	e.logTotals(coll)
	return coll, nil
}

func (e *Engine) logTotals(coll models.Collection) {
	byStatus := make(map[models.Status]int)
	images, unsettled := 0, 0
	for _, rec := range coll {
		if rec.Derived {
			continue
		}
		byStatus[rec.Status]++
		images += rec.WithImagesCount
		if !rec.Status.Terminal() {
			unsettled++
		}
	}
	e.log.Info("harvest finished",
		logger.Int("complete", byStatus[models.StatusComplete]),
		logger.Int("partial", byStatus[models.StatusPartial]),
		logger.Int("no_match", byStatus[models.StatusNoMatch]),
		logger.Int("timeout", byStatus[models.StatusTimeout]),
		logger.Int("failed", byStatus[models.StatusFailed]),
		logger.Int("unsettled", unsettled),
		logger.Int("vehicles_with_images", images))
}
