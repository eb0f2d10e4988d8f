package config

import (
	"fmt"
	"net/url"
	"time"
)

// Dedupe policies.
const (
	DedupeNone        = "none"
	DedupePlaceID     = "place_id"
	DedupeNameAddress = "name_address"
)

// Folder suffix policies for per-business image folders.
const (
	FolderSuffixNone     = "none"
	FolderSuffixPlaceID  = "place_id"
	FolderSuffixLocation = "location"
)

// Config holds scraper configuration.
type Config struct {
	APIKey      string
	SearchURL   string
	Query       string
	Engine      string
	ImageEngine string
	Language    string
	Country     string
	Locations   []string

	PageSize       int
	PageStride     int
	EmptyPageLimit int
	PageDelay      time.Duration
	ImageDelay     time.Duration
	ImageResults   int
	Timeout        time.Duration

	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration

	DownloadImages     bool
	DownloadTimeout    time.Duration
	DownloadRate       float64 // downloads per second, 0 disables throttling
	InsecureSkipVerify bool
	UserAgent          string
	ImageDir           string
	FolderSuffix       string

	ReportFile    string
	JSONFile      string
	CSVFile       string
	DatabaseURL   string
	DedupePolicy  string
	DedupeMaxSize int
	KeepListings  bool

	Verbose     bool
	MetricsAddr string
}

// DefaultConfig returns the defaults used for the wedding venue sweep.
func DefaultConfig() *Config {
	return &Config{
		SearchURL:   "https://serpapi.com/search.json",
		Query:       "wedding venue",
		Engine:      "google_local",
		ImageEngine: "google_images",
		Language:    "en",
		Country:     "AU",
		Locations:   DefaultLocations(),

		PageSize:       100,
		PageStride:     20,
		EmptyPageLimit: 3,
		PageDelay:      2 * time.Second,
		ImageDelay:     2 * time.Second,
		ImageResults:   10,
		Timeout:        30 * time.Second,

		MaxRetries:      5,
		RetryBackoff:    5 * time.Second,
		RetryBackoffMax: time.Minute,

		DownloadImages:     true,
		DownloadTimeout:    10 * time.Second,
		DownloadRate:       0,
		InsecureSkipVerify: false,
		UserAgent:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		ImageDir:           "venue_images",
		FolderSuffix:       FolderSuffixNone,

		ReportFile:    "output/venues.txt",
		DedupePolicy:  DedupeNone,
		DedupeMaxSize: 100000,
		KeepListings:  true,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api key cannot be empty")
	}
	if c.SearchURL == "" {
		return fmt.Errorf("search URL cannot be empty")
	}
	parsedURL, err := url.Parse(c.SearchURL)
	if err != nil {
		return fmt.Errorf("invalid search URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("search URL must include a host")
	}
	if c.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if c.Engine == "" || c.ImageEngine == "" {
		return fmt.Errorf("search engines cannot be empty")
	}
	if len(c.Locations) == 0 {
		return fmt.Errorf("locations cannot be empty")
	}

	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.PageStride <= 0 {
		return fmt.Errorf("page stride must be positive")
	}
	if c.EmptyPageLimit <= 0 {
		return fmt.Errorf("empty page limit must be positive")
	}
	if c.PageDelay < 0 || c.ImageDelay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.ImageResults < 0 {
		return fmt.Errorf("image results cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}

	if c.DownloadImages {
		if c.DownloadTimeout <= 0 {
			return fmt.Errorf("download timeout must be positive")
		}
		if c.ImageDir == "" {
			return fmt.Errorf("image dir cannot be empty")
		}
	}
	if c.DownloadRate < 0 {
		return fmt.Errorf("download rate cannot be negative")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	switch c.FolderSuffix {
	case FolderSuffixNone, FolderSuffixPlaceID, FolderSuffixLocation:
	default:
		return fmt.Errorf("folder suffix must be none, place_id, or location")
	}

	if c.ReportFile == "" {
		return fmt.Errorf("report file cannot be empty")
	}
	switch c.DedupePolicy {
	case DedupeNone, DedupePlaceID, DedupeNameAddress:
	default:
		return fmt.Errorf("dedupe policy must be none, place_id, or name_address")
	}
	if c.DedupePolicy != DedupeNone && c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}

	return nil
}
