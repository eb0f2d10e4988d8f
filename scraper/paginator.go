package scraper

import (
	"context"
	"iter"
	"log/slog"

	"github.com/aluiziolira/go-scrape-venues/config"
)

// Paginator walks the local search pages of one location.
type Paginator struct {
	cfg    *config.Config
	client *Client
	retry  *retrier
	sleep  sleepFunc
	pages  int
}

func newPaginator(cfg *config.Config, client *Client, retry *retrier, sleep sleepFunc) *Paginator {
	if sleep == nil {
		sleep = sleepContext
	}
	return &Paginator{cfg: cfg, client: client, retry: retry, sleep: sleep}
}

// FetchAll lazily yields raw records for location. The offset advances by
// cfg.PageStride after every request; iteration ends after
// cfg.EmptyPageLimit consecutive empty pages. An API error, exhausted retries
// or a cancelled context is yielded once as the final element.
func (p *Paginator) FetchAll(ctx context.Context, location, query string) iter.Seq2[map[string]any, error] {
	return func(yield func(map[string]any, error) bool) {
		start := 0
		emptyPages := 0

		for {
			slog.Debug("fetching page",
				slog.String("location", location),
				slog.Int("start", start),
			)

			var page *LocalPage
			err := p.retry.Do(ctx, "local search", func() error {
				var err error
				page, err = p.client.LocalSearch(ctx, query, location, start)
				return err
			})
			if err != nil {
				yield(nil, err)
				return
			}
			p.pages++

			if len(page.LocalResults) == 0 {
				emptyPages++
				slog.Info("empty page",
					slog.String("location", location),
					slog.Int("start", start),
					slog.Int("empty_pages", emptyPages),
				)
				if emptyPages >= p.cfg.EmptyPageLimit {
					return
				}
			} else {
				emptyPages = 0
				records := page.Records()
				slog.Info("page fetched",
					slog.String("location", location),
					slog.Int("start", start),
					slog.Int("records", len(records)),
				)
				for _, record := range records {
					if !yield(record, nil) {
						return
					}
				}
			}

			start += p.cfg.PageStride
			if err := p.sleep(ctx, p.cfg.PageDelay); err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

// Pages returns the number of pages fetched successfully.
func (p *Paginator) Pages() int {
	return p.pages
}
