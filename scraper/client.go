package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aluiziolira/go-scrape-venues/config"
	"github.com/aluiziolira/go-scrape-venues/models"
)

// LocalPage is one page of local search results.
type LocalPage struct {
	Error        string `json:"error"`
	LocalResults []any  `json:"local_results"`
}

// Records returns the object entries of the page; other entries are skipped.
func (p *LocalPage) Records() []map[string]any {
	records := make([]map[string]any, 0, len(p.LocalResults))
	for _, item := range p.LocalResults {
		if record, ok := item.(map[string]any); ok {
			records = append(records, record)
		}
	}
	return records
}

type imagePage struct {
	Error         string                   `json:"error"`
	ImagesResults []models.AdditionalImage `json:"images_results"`
}

// Client issues requests against the search API.
type Client struct {
	cfg     *config.Config
	http    *http.Client
	metrics *Metrics

	requests int
}

// NewClient builds a search client. A nil httpClient gets one with cfg.Timeout.
func NewClient(cfg *config.Config, httpClient *http.Client, metrics *Metrics) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: httpClient, metrics: metrics}
}

// LocalSearch fetches one page of local results for query in location,
// starting at offset start.
func (c *Client) LocalSearch(ctx context.Context, query, location string, start int) (*LocalPage, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("location", location)
	params.Set("hl", c.cfg.Language)
	params.Set("gl", c.cfg.Country)
	params.Set("api_key", c.cfg.APIKey)
	params.Set("engine", c.cfg.Engine)
	params.Set("type", "search")
	params.Set("start", strconv.Itoa(start))
	params.Set("num", strconv.Itoa(c.cfg.PageSize))

	var page LocalPage
	if err := c.get(ctx, "local", params, &page, func() string { return page.Error }); err != nil {
		return nil, err
	}
	return &page, nil
}

// ImageSearch runs the secondary image search and returns at most
// cfg.ImageResults results in upstream order.
func (c *Client) ImageSearch(ctx context.Context, query string) ([]models.AdditionalImage, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("engine", c.cfg.ImageEngine)
	params.Set("api_key", c.cfg.APIKey)
	params.Set("num", strconv.Itoa(c.cfg.ImageResults))

	var page imagePage
	if err := c.get(ctx, "images", params, &page, func() string { return page.Error }); err != nil {
		return nil, err
	}

	images := page.ImagesResults
	if len(images) > c.cfg.ImageResults {
		images = images[:c.cfg.ImageResults]
	}
	return images, nil
}

// Requests returns the number of requests issued so far.
func (c *Client) Requests() int {
	return c.requests
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any, apiError func() string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.SearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	c.requests++
	c.metrics.IncRequest(endpoint)
	start := time.Now()
	resp, err := c.http.Do(req)
	c.metrics.ObserveDuration(endpoint, time.Since(start))
	if err != nil {
		return c.fail(classifyError(err, 0))
	}
	defer resp.Body.Close()

	decodeErr := json.NewDecoder(resp.Body).Decode(out)
	if decodeErr == nil {
		if msg := apiError(); msg != "" {
			return c.fail(&APIError{Status: resp.StatusCode, Message: msg})
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return c.fail(classifyError(nil, resp.StatusCode))
	}
	if decodeErr != nil {
		return c.fail(ErrDecode{Err: decodeErr})
	}
	return nil
}

func (c *Client) fail(err error) error {
	c.metrics.IncError(errorTypeLabel(err))
	return err
}
