package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every variable name, e.g. HARVESTER_COOKIE
const EnvPrefix = "HARVESTER"

const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
)

type Config struct {
	BaseURL         string `envconfig:"BASE_URL" default:"https://auctions.cardekho.com"`
	Cookie          string `envconfig:"COOKIE"`
	DescriptorsPath string `envconfig:"DESCRIPTORS_PATH" default:"downloads/cardekho_auction_paths.json"`
	CollectionPath  string `envconfig:"COLLECTION_PATH"`
	StoreBackend    string `envconfig:"STORE_BACKEND" default:"json"`
	SQLitePath      string `envconfig:"SQLITE_PATH" default:"data/harvester.db"`
	SnapshotKeep    int    `envconfig:"SNAPSHOT_KEEP" default:"50"`
	FailedLedger    string `envconfig:"FAILED_LEDGER_PATH" default:"downloads/cardekho_failed_auctions.json"`

	// AuctionDate (YYYY-MM-DD) limits harvest to auctions whose title carries that date
	AuctionDate string `envconfig:"AUCTION_DATE"`

	// Filter parameters
	RegionPrefix string `envconfig:"REGION_PREFIX" default:"GJ"`
	StatusPhrase string `envconfig:"STATUS_PHRASE" default:"with papers"`
	AssetPattern string `envconfig:"ASSET_PATTERN" default:"auctionscdn.cardekho.com/auctionuploads/"`

	// Rendering budgets
	PageTimeout     time.Duration `envconfig:"PAGE_TIMEOUT" default:"90s"`
	ContentWait     time.Duration `envconfig:"CONTENT_WAIT" default:"20s"`
	RenderAttempts  int           `envconfig:"RENDER_ATTEMPTS" default:"3"`
	RenderBackoff   time.Duration `envconfig:"RENDER_BACKOFF" default:"2s"`
	ImageAttempts   int           `envconfig:"IMAGE_ATTEMPTS" default:"3"`
	ImageRetryDelay time.Duration `envconfig:"IMAGE_RETRY_DELAY" default:"2s"`
	UnitDelay       time.Duration `envconfig:"UNIT_DELAY" default:"2s"`
	SmartRounds     int           `envconfig:"SMART_ROUNDS" default:"3"`
	Headless        bool          `envconfig:"HEADLESS" default:"true"`
	ChromeBin       string        `envconfig:"CHROME_BIN"`

	// Image download
	DownloadDir     string `envconfig:"DOWNLOAD_DIR" default:"downloads"`
	ScrapeDate      string `envconfig:"SCRAPE_DATE"`
	ImageCount      int    `envconfig:"IMAGE_COUNT" default:"30"`
	DownloadWorkers int    `envconfig:"DOWNLOAD_WORKERS" default:"10"`

	HTTPPort string `envconfig:"HTTP_PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads an optional .env file and then the process environment
func Load(envFiles ...string) (*Config, error) {
	// A missing .env is fine; the environment may already be populated
	_ = godotenv.Load(envFiles...)

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.CollectionPath == "" {
		cfg.CollectionPath = cfg.DescriptorsPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects budgets the engine cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.RenderAttempts <= 0 {
		errs = append(errs, errors.New("RENDER_ATTEMPTS must be positive"))
	}
	if c.ImageAttempts <= 0 {
		errs = append(errs, errors.New("IMAGE_ATTEMPTS must be positive"))
	}
	if c.SmartRounds < 0 {
		errs = append(errs, errors.New("SMART_ROUNDS must not be negative"))
	}
	if c.DownloadWorkers <= 0 {
		errs = append(errs, errors.New("DOWNLOAD_WORKERS must be positive"))
	}
	if c.StoreBackend != StoreJSON && c.StoreBackend != StoreSQLite {
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}
	if c.AuctionDate != "" {
		if _, err := time.Parse(time.DateOnly, c.AuctionDate); err != nil {
			errs = append(errs, fmt.Errorf("AUCTION_DATE must be YYYY-MM-DD: %w", err))
		}
	}
	if c.RegionPrefix == "" || c.StatusPhrase == "" {
		errs = append(errs, errors.New("REGION_PREFIX and STATUS_PHRASE are required"))
	}
	return errors.Join(errs...)
}

// AuctionDay returns the parsed AUCTION_DATE; ok is false when unset
func (c *Config) AuctionDay() (day time.Time, ok bool) {
	if c.AuctionDate == "" {
		return time.Time{}, false
	}
	day, err := time.Parse(time.DateOnly, c.AuctionDate)
	return day, err == nil
}

// RequireCookie is checked by the commands that render pages
func (c *Config) RequireCookie() error {
	if c.Cookie == "" {
		return fmt.Errorf("%s_COOKIE not set", EnvPrefix)
	}
	return nil
}

// ImageDir is the dated folder the downloader writes into
func (c *Config) ImageDir() string {
	date := c.ScrapeDate
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	return filepath.Join(c.DownloadDir, date)
}
