package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aluiziolira/go-scrape-venues/config"
	"github.com/aluiziolira/go-scrape-venues/models"
	"github.com/aluiziolira/go-scrape-venues/parser"
	"github.com/aluiziolira/go-scrape-venues/pipeline"
	"github.com/google/uuid"
)

// Scraper drives the location sweep: search, enrich, download, record.
type Scraper struct {
	cfg       *config.Config
	client    *Client
	retry     *retrier
	paginator *Paginator
	enricher  *Enricher
	fetcher   *Fetcher
	Metrics   *Metrics
	RunID     uuid.UUID
}

// NewScraper builds a scraper instance configured from cfg. httpClient is
// used for search API calls; nil selects a client with cfg.Timeout.
func NewScraper(cfg *config.Config, httpClient *http.Client) (*Scraper, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	metrics := NewMetrics()
	client := NewClient(cfg, httpClient, metrics)
	retry := newRetrier(cfg, metrics, nil)

	return &Scraper{
		cfg:       cfg,
		client:    client,
		retry:     retry,
		paginator: newPaginator(cfg, client, retry, nil),
		enricher:  newEnricher(cfg, client, nil),
		fetcher:   NewFetcher(cfg, metrics),
		Metrics:   metrics,
		RunID:     uuid.New(),
	}, nil
}

// Run sweeps every configured location in order and streams accepted
// listings through p. A location that fails (API error or exhausted
// retries) is recorded and skipped; sink failures and cancellation abort the
// run and return the partial result alongside the error.
func (s *Scraper) Run(ctx context.Context, p *pipeline.Pipeline) (*models.RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	result := &models.RunResult{
		RunID:           s.RunID,
		Locations:       append([]string(nil), s.cfg.Locations...),
		FailedLocations: make(map[string]string),
		StartTime:       time.Now(),
	}
	defer s.fillResult(result, p)

	for _, location := range s.cfg.Locations {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.runLocation(ctx, location, p, result); err != nil {
			return result, err
		}
	}

	if err := p.Finish(s.cfg.Locations); err != nil {
		return result, fmt.Errorf("write summary: %w", err)
	}

	slog.Info("search complete",
		slog.String("run_id", s.RunID.String()),
		slog.Int("total", p.Total()),
		slog.Int("failed_locations", len(result.FailedLocations)),
	)
	return result, nil
}

func (s *Scraper) runLocation(ctx context.Context, location string, p *pipeline.Pipeline, result *models.RunResult) error {
	slog.Info("searching location", slog.String("location", location))
	if err := p.BeginLocation(location); err != nil {
		return fmt.Errorf("write location header: %w", err)
	}
	defer s.Metrics.IncLocation()

	found := 0
	for raw, err := range s.paginator.FetchAll(ctx, location, s.cfg.Query) {
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				slog.Error("search api error", slog.String("location", location), slog.String("message", apiErr.Message))
			} else {
				slog.Error("location search failed", slog.String("location", location), slog.Any("error", err))
			}
			result.FailedLocations[location] = err.Error()
			break
		}

		listing := parser.Normalize(raw, location, s.cfg.Country)
		if err := p.Admit(listing); err != nil {
			slog.Debug("listing skipped", slog.String("name", listing.Name), slog.Any("reason", err))
			continue
		}

		if err := s.enricher.Enrich(ctx, listing); err != nil {
			return err
		}
		if s.cfg.DownloadImages {
			listing.DownloadedImages = s.fetcher.DownloadListing(ctx, listing, s.cfg.ImageDir)
		} else {
			listing.DownloadedImages = []string{}
		}

		if err := p.Process(listing); err != nil {
			return fmt.Errorf("record listing %q: %w", listing.Name, err)
		}
		s.Metrics.IncListings()
		found++
	}

	slog.Info("location done",
		slog.String("location", location),
		slog.Int("listings", found),
		slog.Int("total", p.Total()),
	)
	return nil
}

func (s *Scraper) fillResult(result *models.RunResult, p *pipeline.Pipeline) {
	result.EndTime = time.Now()
	result.Listings = p.Listings()
	result.TotalCount = p.Total()
	result.RequestCount = s.client.Requests()
	result.PageCount = s.paginator.Pages()
	result.RetryCount = s.retry.TotalRetries()
	result.Rejected, result.Duplicates = p.Skipped()
	result.DownloadCount, result.DownloadFailures = s.fetcher.Counts()
}
