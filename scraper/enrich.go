package scraper

import (
	"context"
	"log/slog"

	"github.com/aluiziolira/go-scrape-venues/config"
	"github.com/aluiziolira/go-scrape-venues/models"
)

// Enricher attaches secondary image search results to listings.
type Enricher struct {
	cfg    *config.Config
	client *Client
	sleep  sleepFunc
}

func newEnricher(cfg *config.Config, client *Client, sleep sleepFunc) *Enricher {
	if sleep == nil {
		sleep = sleepContext
	}
	return &Enricher{cfg: cfg, client: client, sleep: sleep}
}

// Enrich sets l.AdditionalImages from an image search for "{name} {address}".
// Search failures leave an empty list. It always waits cfg.ImageDelay
// afterwards and only returns an error when ctx is done.
func (e *Enricher) Enrich(ctx context.Context, l *models.Listing) error {
	images, err := e.client.ImageSearch(ctx, l.Name+" "+l.Address)
	if err != nil {
		slog.Warn("image search failed",
			slog.String("name", l.Name),
			slog.Any("error", err),
		)
		images = nil
	}
	if images == nil {
		images = []models.AdditionalImage{}
	}
	l.AdditionalImages = images

	return e.sleep(ctx, e.cfg.ImageDelay)
}
