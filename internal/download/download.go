// Package download fetches the image bytes of harvested vehicles and writes
// a metadata file next to them.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"auctionharvester/internal/logger"
	"auctionharvester/internal/models"
	"auctionharvester/internal/validation"
)

// Options configures a Downloader
type Options struct {
	Dir        string // dated output folder
	ImageCount int    // images kept per vehicle
	Workers    int
	Timeout    time.Duration
}

// Report summarizes one download run
type Report struct {
	Vehicles   int
	Skipped    int
	Duplicates int
	Downloaded int64
	Failed     int64
}

// Downloader writes DIR/<REG>/images/N.ext and DIR/<REG>/metadata.txt
type Downloader struct {
	client *http.Client
	opts   Options
	log    logger.Logger
}

// New creates a downloader. A nil client gets a default one with opts.Timeout.
func New(client *http.Client, opts Options, log logger.Logger) *Downloader {
	if opts.Workers <= 0 {
		opts.Workers = 10
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Downloader{client: client, opts: opts, log: log}
}

// Run downloads every vehicle of the original records in coll. Derived
// records hold copies of the same vehicles and are skipped. Individual image
// failures are counted, not returned.
func (d *Downloader) Run(ctx context.Context, coll models.Collection) (Report, error) {
	var rep Report
	seen := make(map[string]string)

	for _, rec := range coll {
		if rec.Derived {
			continue
		}
		for i := range rec.Vehicles {
			v := &rec.Vehicles[i]
			reg, err := validation.SanitizeRegistration(v.RegistrationNumber)
			if err != nil {
				d.log.Warn("skipping vehicle", logger.String("auction_id", rec.ID()), logger.String("vid", v.VID), logger.Error(err))
				rep.Skipped++
				continue
			}
			if prev, dup := seen[reg]; dup {
				d.log.Warn("skipping duplicate registration",
					logger.String("registration", reg),
					logger.String("auction_id", rec.ID()),
					logger.String("first_auction_id", prev))
				rep.Duplicates++
				continue
			}
			seen[reg] = rec.ID()

			if err := d.vehicle(ctx, reg, v, &rep); err != nil {
				return rep, err
			}
			rep.Vehicles++
		}
	}

	d.log.Info("download finished",
		logger.Int("vehicles", rep.Vehicles),
		logger.Int("skipped", rep.Skipped),
		logger.Int("duplicates", rep.Duplicates),
		logger.Any("images", rep.Downloaded),
		logger.Any("failed", rep.Failed))
	return rep, nil
}

func (d *Downloader) vehicle(ctx context.Context, reg string, v *models.VehicleRecord, rep *Report) error {
	folder := filepath.Join(d.opts.Dir, reg)
	imagesDir := filepath.Join(folder, "images")
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", imagesDir, err)
	}

	urls := v.Images
	if d.opts.ImageCount > 0 && len(urls) > d.opts.ImageCount {
		urls = urls[:d.opts.ImageCount]
	}
	if len(urls) == 0 {
		d.log.Warn("no images for vehicle", logger.String("registration", reg))
	}

	var downloaded, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)
	for i, u := range urls {
		dest := filepath.Join(imagesDir, fmt.Sprintf("%d%s", i+1, extension(u)))
		g.Go(func() error {
			if err := d.fetch(gctx, u, dest); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				d.log.Error("image download failed", logger.String("url", u), logger.Error(err))
				return nil
			}
			downloaded.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	rep.Downloaded += downloaded.Load()
	rep.Failed += failed.Load()

	if err := writeMetadata(filepath.Join(folder, "metadata.txt"), v); err != nil {
		return err
	}
	d.log.Info("saved vehicle", logger.String("registration", reg), logger.Any("images", downloaded.Load()))
	return nil
}

func (d *Downloader) fetch(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(dest)
		return err
	}
	return f.Close()
}

// extension returns the URL path's extension, defaulting to .jpg
func extension(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	ext := path.Ext(u)
	if ext == "" || len(ext) > 5 {
		return ".jpg"
	}
	return strings.ToLower(ext)
}

func writeMetadata(file string, v *models.VehicleRecord) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Yard Name: %s\n", v.YardName)
	fmt.Fprintf(&b, "Yard Location: %s\n", v.YardLocation)
	fmt.Fprintf(&b, "Make Model: %s\n", v.MakeModel)
	fmt.Fprintf(&b, "Manufacturing Year: %s\n", v.ManufacturingYear)
	fmt.Fprintf(&b, "Registration Number: %s\n", v.RegistrationNumber)
	fmt.Fprintf(&b, "Vehicle Link: %s\n", v.VehicleLink)
	if err := os.WriteFile(file, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}
