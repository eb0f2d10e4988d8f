package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-venues/config"
	"github.com/aluiziolira/go-scrape-venues/models"
	"github.com/aluiziolira/go-scrape-venues/pipeline"
	"github.com/aluiziolira/go-scrape-venues/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	locationsFile, err := applyEnv(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.APIKey, "api-key", cfg.APIKey, "Search API key (env SERPAPI_API_KEY)")
	flag.StringVar(&cfg.Query, "query", cfg.Query, "Search query")
	flag.StringVar(&cfg.SearchURL, "search-url", cfg.SearchURL, "Search API endpoint")
	flag.StringVar(&cfg.Country, "country", cfg.Country, "Country code for search and phone normalisation")
	flag.StringVar(&cfg.Language, "lang", cfg.Language, "Language code")
	flag.StringVar(&locationsFile, "locations-file", locationsFile, "File with one location per line (default: built-in table)")
	flag.DurationVar(&cfg.PageDelay, "page-delay", cfg.PageDelay, "Pause between result pages")
	flag.DurationVar(&cfg.ImageDelay, "image-delay", cfg.ImageDelay, "Pause after each image search")
	flag.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "Maximum retries per page request")
	flag.DurationVar(&cfg.RetryBackoff, "retry-backoff", cfg.RetryBackoff, "Initial retry backoff")
	flag.DurationVar(&cfg.RetryBackoffMax, "retry-backoff-max", cfg.RetryBackoffMax, "Maximum retry backoff")
	flag.BoolVar(&cfg.DownloadImages, "download-images", cfg.DownloadImages, "Download listing images")
	flag.StringVar(&cfg.ImageDir, "image-dir", cfg.ImageDir, "Root folder for downloaded images")
	flag.StringVar(&cfg.FolderSuffix, "folder-suffix", cfg.FolderSuffix, "Image folder suffix: none, place_id, or location")
	flag.Float64Var(&cfg.DownloadRate, "download-rate", cfg.DownloadRate, "Max image downloads per second (0 = unlimited)")
	flag.BoolVar(&cfg.InsecureSkipVerify, "insecure-skip-verify", cfg.InsecureSkipVerify, "Skip TLS verification for image downloads")
	flag.StringVar(&cfg.ReportFile, "output", cfg.ReportFile, "Text report path (appended)")
	flag.StringVar(&cfg.JSONFile, "json", cfg.JSONFile, "Optional JSONL output path")
	flag.StringVar(&cfg.CSVFile, "csv", cfg.CSVFile, "Optional CSV output path")
	flag.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "Optional Postgres DSN (env DATABASE_URL)")
	flag.StringVar(&cfg.DedupePolicy, "dedupe", cfg.DedupePolicy, "Duplicate policy: none, place_id, or name_address")
	flag.BoolVar(&cfg.KeepListings, "keep-listings", cfg.KeepListings, "Keep all listings in memory for the final result")
	flag.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Enable verbose logging")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")

	flag.Parse()

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if locationsFile != "" {
		locations, err := config.LoadLocations(locationsFile)
		if err != nil {
			slog.Error("loading locations", slog.Any("error", err))
			os.Exit(1)
		}
		cfg.Locations = locations
	}
	cfg.DedupePolicy = strings.ToLower(cfg.DedupePolicy)
	cfg.FolderSuffix = strings.ToLower(cfg.FolderSuffix)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("run failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := scraper.NewScraper(cfg, nil)
	if err != nil {
		return fmt.Errorf("initialising scraper: %w", err)
	}

	slog.Info("starting search",
		slog.String("run_id", s.RunID.String()),
		slog.String("query", cfg.Query),
		slog.Int("locations", len(cfg.Locations)),
	)

	report, err := pipeline.NewReportWriter(cfg.ReportFile)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	writer, err := createWriter(ctx, cfg, s)
	if err != nil {
		return fmt.Errorf("creating writers: %w", err)
	}

	p, err := pipeline.NewPipeline(cfg, report, writer)
	if err != nil {
		writer.Close()
		return fmt.Errorf("creating pipeline: %w", err)
	}
	defer func() {
		if err := p.Close(); err != nil {
			slog.Error("close writers", slog.Any("error", err))
		}
	}()

	metricsServer := startMetricsServer(cfg, s.Metrics)
	defer stopMetricsServer(metricsServer)

	result, runErr := s.Run(ctx, p)
	if result != nil {
		printSummary(result, cfg)
	}
	if runErr != nil {
		return fmt.Errorf("scraping failed: %w", runErr)
	}

	if writer.Len() > 0 {
		if err := writer.Validate(); err != nil {
			slog.Warn("output validation failed", slog.Any("error", err))
		}
	}
	return nil
}

func createWriter(ctx context.Context, cfg *config.Config, s *scraper.Scraper) (*pipeline.MultiWriter, error) {
	var writers []pipeline.OutputWriter
	closeAll := func() {
		for _, w := range writers {
			w.Close()
		}
	}

	if cfg.JSONFile != "" {
		w, err := pipeline.NewJSONWriter(cfg.JSONFile)
		if err != nil {
			return nil, err
		}
		writers = append(writers, w)
	}
	if cfg.CSVFile != "" {
		w, err := pipeline.NewCSVWriter(cfg.CSVFile)
		if err != nil {
			closeAll()
			return nil, err
		}
		writers = append(writers, w)
	}
	if cfg.DatabaseURL != "" {
		w, err := pipeline.NewPostgresWriter(ctx, cfg.DatabaseURL, s.RunID)
		if err != nil {
			closeAll()
			return nil, err
		}
		writers = append(writers, w)
	}
	return pipeline.NewMultiWriter(writers...), nil
}

// applyEnv overlays environment variables on cfg and returns the locations
// file path if one was configured.
func applyEnv(cfg *config.Config) (string, error) {
	if v, ok := config.EnvString("SERPAPI_API_KEY"); ok {
		cfg.APIKey = v
	}
	if v, ok := config.EnvString("VENUES_QUERY"); ok {
		cfg.Query = v
	}
	if v, ok := config.EnvString("VENUES_OUTPUT"); ok {
		cfg.ReportFile = v
	}
	if v, ok := config.EnvString("VENUES_IMAGE_DIR"); ok {
		cfg.ImageDir = v
	}
	if v, ok := config.EnvString("VENUES_JSON"); ok {
		cfg.JSONFile = v
	}
	if v, ok := config.EnvString("VENUES_CSV"); ok {
		cfg.CSVFile = v
	}
	if v, ok := config.EnvString("DATABASE_URL"); ok {
		cfg.DatabaseURL = v
	}
	if v, ok := config.EnvString("VENUES_METRICS_ADDR"); ok {
		cfg.MetricsAddr = v
	}
	if v, ok := config.EnvString("VENUES_DEDUPE"); ok {
		cfg.DedupePolicy = v
	}
	if v, ok, err := config.EnvInt("VENUES_MAX_RETRIES"); err != nil {
		return "", err
	} else if ok {
		cfg.MaxRetries = v
	}
	if v, ok, err := config.EnvDuration("VENUES_PAGE_DELAY"); err != nil {
		return "", err
	} else if ok {
		cfg.PageDelay = v
	}
	if v, ok, err := config.EnvBool("VENUES_INSECURE_SKIP_VERIFY"); err != nil {
		return "", err
	} else if ok {
		cfg.InsecureSkipVerify = v
	}
	locationsFile, _ := config.EnvString("VENUES_LOCATIONS_FILE")
	return locationsFile, nil
}

func startMetricsServer(cfg *config.Config, metrics *scraper.Metrics) *http.Server {
	if cfg.MetricsAddr == "" || metrics == nil {
		return nil
	}
	server := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	return server
}

func stopMetricsServer(server *http.Server) {
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown failed", slog.Any("error", err))
	}
}

func printSummary(result *models.RunResult, cfg *config.Config) {
	separator := "--------------------------------------------------"
	duration := result.EndTime.Sub(result.StartTime)

	fmt.Println("\n" + separator)
	fmt.Println("Search complete")
	fmt.Printf("  Run ID:        %s\n", result.RunID)
	fmt.Printf("  Total venues:  %d\n", result.TotalCount)
	fmt.Printf("  Locations:     %d (%d failed)\n", len(result.Locations), len(result.FailedLocations))
	for location, reason := range result.FailedLocations {
		fmt.Printf("    - %s: %s\n", location, reason)
	}
	fmt.Printf("  Requests:      %d (%d pages)\n", result.RequestCount, result.PageCount)
	fmt.Printf("  Retries:       %d\n", result.RetryCount)
	fmt.Printf("  Rejected:      %d\n", result.Rejected)
	fmt.Printf("  Duplicates:    %d\n", result.Duplicates)
	fmt.Printf("  Images:        %d downloaded, %d failed\n", result.DownloadCount, result.DownloadFailures)
	fmt.Printf("  Duration:      %v\n", duration.Round(time.Second))
	fmt.Printf("  Report file:   %s\n", cfg.ReportFile)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
