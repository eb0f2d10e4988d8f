package scraper

import (
	"context"
	"crypto/md5"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-venues/config"
	"github.com/aluiziolira/go-scrape-venues/models"
	"github.com/aluiziolira/go-scrape-venues/parser"
	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"
)

const defaultImageExt = ".jpg"

// Fetcher downloads listing images to local storage.
type Fetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	limiter   *rate.Limiter
	metrics   *Metrics

	downloaded int
	failed     int
}

// NewFetcher builds a synchronous collector for image downloads.
func NewFetcher(cfg *config.Config, metrics *Metrics) *Fetcher {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.MaxBodySize = 0
	collector.SetRequestTimeout(cfg.DownloadTimeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DownloadTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
	})

	collector.OnResponse(func(r *colly.Response) {
		dest := r.Ctx.Get("dest")
		if dest == "" {
			return
		}
		if err := r.Save(dest); err != nil {
			r.Ctx.Put("save_error", err)
			return
		}
		r.Ctx.Put("saved", dest)
	})

	limit := rate.Inf
	if cfg.DownloadRate > 0 {
		limit = rate.Limit(cfg.DownloadRate)
	}

	return &Fetcher{
		cfg:       cfg,
		collector: collector,
		limiter:   rate.NewLimiter(limit, 1),
		metrics:   metrics,
	}
}

// Download fetches rawURL into folder as ImageFilename(rawURL, nameHint).
// Failures are logged and reported as ok=false.
func (f *Fetcher) Download(ctx context.Context, rawURL, folder, nameHint string) (string, bool) {
	dest := filepath.Join(folder, ImageFilename(rawURL, nameHint))
	if err := f.download(ctx, rawURL, dest); err != nil {
		f.failed++
		f.metrics.IncDownload("failed")
		slog.Warn("failed to download image",
			slog.String("url", rawURL),
			slog.Any("error", err),
		)
		return "", false
	}
	f.downloaded++
	f.metrics.IncDownload("ok")
	return dest, true
}

func (f *Fetcher) download(ctx context.Context, rawURL, dest string) error {
	if strings.TrimSpace(rawURL) == "" {
		return errors.New("empty image url")
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}

	reqCtx := colly.NewContext()
	reqCtx.Put("dest", dest)
	if err := f.collector.Request(http.MethodGet, rawURL, nil, reqCtx, browserHeaders(f.cfg.UserAgent)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		os.Remove(dest)
		return err
	}
	if err, ok := reqCtx.GetAny("save_error").(error); ok {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if reqCtx.Get("saved") == "" {
		return errors.New("no response body")
	}
	return nil
}

// DownloadListing downloads the thumbnail, every photo and every additional
// image original of l, in that order, into its own folder under root. It
// returns the local paths that were written. A request in flight is bounded
// by cfg.DownloadTimeout, not ctx; ctx is checked before and after each one.
func (f *Fetcher) DownloadListing(ctx context.Context, l *models.Listing, root string) []string {
	paths := []string{}

	hint := folderBase(l)
	folder := filepath.Join(root, FolderName(l, f.cfg.FolderSuffix))
	if err := os.MkdirAll(folder, 0o755); err != nil {
		slog.Error("create image folder",
			slog.String("folder", folder),
			slog.Any("error", err),
		)
		return paths
	}

	var urls []string
	if l.Thumbnail != "" {
		urls = append(urls, l.Thumbnail)
	}
	for _, photo := range l.Photos {
		if photo.Image != "" {
			urls = append(urls, photo.Image)
		}
	}
	for _, img := range l.AdditionalImages {
		if img.Original != "" {
			urls = append(urls, img.Original)
		}
	}

	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		if p, ok := f.Download(ctx, u, folder, hint); ok {
			paths = append(paths, p)
		}
	}
	return paths
}

// Counts returns the number of successful and failed downloads.
func (f *Fetcher) Counts() (downloaded, failed int) {
	return f.downloaded, f.failed
}

// ImageFilename names a download as {nameHint}_{8 hex of md5(url)}{ext}.
// The extension comes from the URL path and defaults to .jpg.
func ImageFilename(rawURL, nameHint string) string {
	sum := md5.Sum([]byte(rawURL))
	return nameHint + "_" + hex.EncodeToString(sum[:])[:8] + imageExt(rawURL)
}

func imageExt(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return defaultImageExt
	}
	ext := path.Ext(parsed.Path)
	if ext == "" || len(ext) > 6 {
		return defaultImageExt
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return defaultImageExt
		}
	}
	return ext
}

// FolderName returns the image folder for l under the given suffix policy.
func FolderName(l *models.Listing, suffix string) string {
	base := folderBase(l)
	var extra string
	switch suffix {
	case config.FolderSuffixPlaceID:
		extra = parser.SanitizeName(l.PlaceID)
	case config.FolderSuffixLocation:
		extra = parser.SanitizeName(l.Location)
	}
	if extra == "" || extra == base {
		return base
	}
	return base + "_" + extra
}

// folderBase is the sanitized name, falling back to the place id and then
// to "unnamed" when nothing permitted is left.
func folderBase(l *models.Listing) string {
	if name := strings.TrimSpace(parser.SanitizeName(l.Name)); name != "" {
		return name
	}
	if id := parser.SanitizeName(l.PlaceID); id != "" {
		return id
	}
	return "unnamed"
}

func browserHeaders(userAgent string) http.Header {
	hdr := http.Header{}
	hdr.Set("User-Agent", userAgent)
	hdr.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	hdr.Set("Accept-Language", "en-US,en;q=0.5")
	hdr.Set("Connection", "keep-alive")
	return hdr
}
