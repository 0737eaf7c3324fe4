// Auction Harvester
// @title Auction Harvester Status API
// @version 1.0
// @description Read-only view of harvested auction records and their extraction status
// @host localhost:8080
// @BasePath /

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"auctionharvester/internal/api"
	"auctionharvester/internal/cache"
	"auctionharvester/internal/config"
	"auctionharvester/internal/download"
	"auctionharvester/internal/logger"
	"auctionharvester/internal/middleware"
	"auctionharvester/internal/models"
	"auctionharvester/internal/scraper"
	"auctionharvester/internal/store"
)

func usage() {
	fmt.Println("Usage: harvester <command>")
	fmt.Println("Commands:")
	fmt.Println("  harvest      - Process new auctions, then run the retry rounds")
	fmt.Println("  retry        - Run the retry rounds over the stored collection")
	fmt.Println("  download     - Download images and metadata for harvested vehicles")
	fmt.Println("  serve        - Start the read-only status API")
	fmt.Println("  status       - Print the summary line of every auction")
	fmt.Println("  import-json  - Seed the SQLite store from the JSON collection")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logger.New(logger.Config{Level: cfg.LogLevel})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1], cfg, log); err != nil {
		log.Error("command failed", logger.String("command", os.Args[1]), logger.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, cfg *config.Config, log logger.Logger) error {
	st, err := store.Open(cfg.StoreBackend, cfg.CollectionPath, cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer st.Close()

	switch command {
	case "harvest":
		return harvest(ctx, cfg, st, log)
	case "retry":
		return retry(ctx, cfg, st, log)
	case "download":
		return downloadImages(ctx, cfg, st, log)
	case "serve":
		return serve(ctx, cfg, st, log)
	case "status":
		return printStatus(ctx, st)
	case "import-json":
		return importJSON(ctx, cfg, st, log)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func engineOptions(cfg *config.Config) scraper.Options {
	return scraper.Options{
		BaseURL:         cfg.BaseURL,
		Credentials:     scraper.Credentials(cfg.Cookie),
		Filter:          scraper.Filter{RegionPrefix: cfg.RegionPrefix, StatusPhrase: cfg.StatusPhrase},
		Gallery:         scraper.GalleryExtractor{AssetPattern: cfg.AssetPattern},
		PageTimeout:     cfg.PageTimeout,
		RenderAttempts:  cfg.RenderAttempts,
		RenderBackoff:   cfg.RenderBackoff,
		ImageAttempts:   cfg.ImageAttempts,
		ImageRetryDelay: cfg.ImageRetryDelay,
		UnitDelay:       cfg.UnitDelay,
		SmartRounds:     cfg.SmartRounds,
	}
}

func newEngine(cfg *config.Config, st store.Store, log logger.Logger) (*scraper.Engine, *scraper.RodRenderer, error) {
	if err := cfg.RequireCookie(); err != nil {
		return nil, nil, err
	}
	renderer := scraper.NewRodRenderer(scraper.RodConfig{
		BaseURL:     cfg.BaseURL,
		Headless:    cfg.Headless,
		ChromeBin:   cfg.ChromeBin,
		ContentWait: cfg.ContentWait,
	}, log)
	return scraper.NewEngine(renderer, st, engineOptions(cfg), log), renderer, nil
}

func harvest(ctx context.Context, cfg *config.Config, st store.Store, log logger.Logger) error {
	descriptors, err := store.ReadDescriptors(cfg.DescriptorsPath)
	if err != nil {
		return err
	}
	engine, renderer, err := newEngine(cfg, st, log)
	if err != nil {
		return err
	}
	defer renderer.Close()

	if day, ok := cfg.AuctionDay(); ok {
		total := len(descriptors)
		descriptors = scraper.SelectByTitleDate(descriptors, day)
		log.Info("filtered descriptors by title date",
			logger.String("date", cfg.AuctionDate),
			logger.Int("kept", len(descriptors)),
			logger.Int("dropped", total-len(descriptors)))
	}
	log.Info("loaded auction descriptors",
		logger.Int("descriptors", len(descriptors)),
		logger.String("region_prefix", cfg.RegionPrefix),
		logger.String("status_phrase", cfg.StatusPhrase))
	coll, err := engine.Harvest(ctx, descriptors)
	if lerr := writeFailedLedger(cfg, coll, log); err == nil {
		err = lerr
	}
	if err != nil {
		return err
	}
	return pruneSnapshots(ctx, cfg, st, log)
}

func retry(ctx context.Context, cfg *config.Config, st store.Store, log logger.Logger) error {
	engine, renderer, err := newEngine(cfg, st, log)
	if err != nil {
		return err
	}
	defer renderer.Close()
	coll, err := engine.Retry(ctx)
	if lerr := writeFailedLedger(cfg, coll, log); err == nil {
		err = lerr
	}
	if err != nil {
		return err
	}
	return pruneSnapshots(ctx, cfg, st, log)
}

// writeFailedLedger records the auctions still failed after a run
func writeFailedLedger(cfg *config.Config, coll models.Collection, log logger.Logger) error {
	if coll == nil || cfg.FailedLedger == "" {
		return nil
	}
	n, err := store.WriteFailedLedger(cfg.FailedLedger, coll)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Warn("failed auctions tracked for manual retry", logger.Int("count", n), logger.String("path", cfg.FailedLedger))
	}
	return nil
}

// pruneSnapshots trims the SQLite history after a run; every unit saves a snapshot
func pruneSnapshots(ctx context.Context, cfg *config.Config, st store.Store, log logger.Logger) error {
	sq, ok := st.(*store.SQLiteStore)
	if !ok || cfg.SnapshotKeep <= 0 {
		return nil
	}
	removed, err := sq.Prune(ctx, cfg.SnapshotKeep)
	if err != nil {
		return err
	}
	if removed > 0 {
		log.Info("pruned snapshots", logger.Int("removed", int(removed)), logger.Int("kept", cfg.SnapshotKeep))
	}
	return nil
}

func downloadImages(ctx context.Context, cfg *config.Config, st store.Store, log logger.Logger) error {
	coll, err := st.Load(ctx)
	if err != nil {
		return err
	}
	d := download.New(nil, download.Options{
		Dir:        cfg.ImageDir(),
		ImageCount: cfg.ImageCount,
		Workers:    cfg.DownloadWorkers,
	}, log.With(logger.String("component", "download")))
	_, err = d.Run(ctx, coll)
	return err
}

func serve(ctx context.Context, cfg *config.Config, st store.Store, log logger.Logger) error {
	limiter := middleware.NewRateLimiter(rate.Limit(10), 20)
	defer limiter.Stop()

	collection := cache.New(st, cache.DefaultExpiry)
	handler := api.NewHandler(collection, log)
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.NewRouter(handler, limiter, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("status API listening", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// SIGHUP drops the cached collection so a finished harvest shows up immediately
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

wait:
	for {
		select {
		case err := <-errCh:
			return err
		case <-hup:
			collection.Invalidate()
			log.Info("collection cache invalidated")
		case <-ctx.Done():
			break wait
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down status API")
	return srv.Shutdown(shutdownCtx)
}

func printStatus(ctx context.Context, st store.Store) error {
	coll, err := st.Load(ctx)
	if err != nil {
		return err
	}
	counts := make(map[models.Status]int)
	for _, rec := range coll {
		title := rec.Title
		if r := []rune(title); len(r) > 50 {
			title = string(r[:47]) + "..."
		}
		summary := rec.Summary
		if !rec.Processed() {
			summary = "Status: PENDING"
		}
		fmt.Printf("%-10s %-50s %s\n", rec.ID(), title, summary)
		if !rec.Derived {
			counts[rec.Status]++
		}
	}

	var parts []string
	for _, s := range []models.Status{models.StatusComplete, models.StatusPartial, models.StatusNoMatch, models.StatusTimeout, models.StatusFailed} {
		parts = append(parts, fmt.Sprintf("%s=%d", s, counts[s]))
	}
	parts = append(parts, fmt.Sprintf("pending=%d", counts[""]))
	fmt.Println(strings.Join(parts, " "))
	return nil
}

func importJSON(ctx context.Context, cfg *config.Config, st store.Store, log logger.Logger) error {
	sq, ok := st.(*store.SQLiteStore)
	if !ok {
		return fmt.Errorf("import-json needs %s_STORE_BACKEND=%s", config.EnvPrefix, store.BackendSQLite)
	}
	imported, err := sq.ImportJSON(ctx, cfg.CollectionPath)
	if err != nil {
		return err
	}
	if !imported {
		log.Info("nothing imported", logger.String("path", cfg.CollectionPath))
		return nil
	}
	snaps, err := sq.Snapshots(ctx, 1)
	if err != nil {
		return err
	}
	log.Info("imported JSON collection", logger.String("path", cfg.CollectionPath), logger.Int("auctions", snaps[0].Auctions))
	return nil
}
