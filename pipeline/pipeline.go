package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aluiziolira/go-scrape-venues/config"
	"github.com/aluiziolira/go-scrape-venues/models"
	"github.com/aluiziolira/go-scrape-venues/parser"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	// ErrPipelineClosed is returned when the pipeline is used after Close.
	ErrPipelineClosed = errors.New("pipeline: closed")
	// ErrRejected marks a listing that failed the acceptance gate.
	ErrRejected = errors.New("pipeline: listing rejected")
	// ErrDuplicate marks a listing already seen under the dedupe policy.
	ErrDuplicate = errors.New("pipeline: duplicate listing")
)

// OutputWriter defines the interface for listing sinks.
type OutputWriter interface {
	Write(listings []*models.Listing) error
	Close() error
	Validate() error
}

// Pipeline gates, de-duplicates and records listings, streaming each one to
// the report and the configured sinks as it is produced.
type Pipeline struct {
	report *ReportWriter
	writer OutputWriter

	policy string
	seen   *lru.Cache[string, struct{}]

	keep     bool
	listings []*models.Listing

	metrics metrics
	closed  bool
}

// NewPipeline wires the report and an optional extra writer.
func NewPipeline(cfg *config.Config, report *ReportWriter, writer OutputWriter) (*Pipeline, error) {
	p := &Pipeline{
		report:  report,
		writer:  writer,
		policy:  cfg.DedupePolicy,
		keep:    cfg.KeepListings,
		metrics: newMetrics(),
	}
	if p.policy != "" && p.policy != config.DedupeNone {
		seen, err := lru.New[string, struct{}](cfg.DedupeMaxSize)
		if err != nil {
			return nil, fmt.Errorf("create dedupe cache: %w", err)
		}
		p.seen = seen
	}
	return p, nil
}

// BeginLocation writes the header for a location sweep.
func (p *Pipeline) BeginLocation(location string) error {
	if p.closed {
		return ErrPipelineClosed
	}
	if p.report == nil {
		return nil
	}
	return p.report.WriteLocationHeader(location)
}

// Admit applies the acceptance gate and the dedupe policy. It should be
// called before a listing is enriched so skipped listings cost no requests.
func (p *Pipeline) Admit(l *models.Listing) error {
	if p.closed {
		return ErrPipelineClosed
	}
	if err := parser.ValidateListing(l); err != nil {
		p.metrics.addValidation("invalid_record")
		return fmt.Errorf("%w: %w", ErrRejected, err)
	}

	key := p.dedupeKey(l)
	if key == "" {
		return nil
	}
	if p.seen.Contains(key) {
		p.metrics.addValidation("duplicate")
		return fmt.Errorf("%w: %s", ErrDuplicate, key)
	}
	p.seen.Add(key, struct{}{})
	return nil
}

// Process appends l to the run aggregate and writes it to every sink.
func (p *Pipeline) Process(l *models.Listing) error {
	if p.closed {
		return ErrPipelineClosed
	}

	p.metrics.incrementProcessed()
	if p.keep {
		p.listings = append(p.listings, l)
	}

	batch := []*models.Listing{l}
	if p.report != nil {
		if err := p.report.Write(batch); err != nil {
			return err
		}
	}
	if p.writer != nil {
		if err := p.writer.Write(batch); err != nil {
			return fmt.Errorf("write listing: %w", err)
		}
	}
	return nil
}

// Finish writes the closing summary.
func (p *Pipeline) Finish(locations []string) error {
	if p.closed {
		return ErrPipelineClosed
	}
	if p.report == nil {
		return nil
	}
	return p.report.WriteSummary(p.Total(), locations)
}

// Close closes the extra writer. The report holds no open handle.
func (p *Pipeline) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// Total returns the number of listings accepted so far.
func (p *Pipeline) Total() int {
	return int(p.metrics.processed)
}

// Listings returns the accepted listings in order. It is empty when the
// pipeline was built with KeepListings disabled.
func (p *Pipeline) Listings() []*models.Listing {
	out := make([]*models.Listing, len(p.listings))
	copy(out, p.listings)
	return out
}

// Skipped returns the rejected and duplicate counts.
func (p *Pipeline) Skipped() (rejected, duplicates int) {
	return p.metrics.validation["invalid_record"], p.metrics.validation["duplicate"]
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

func (p *Pipeline) dedupeKey(l *models.Listing) string {
	if p.seen == nil {
		return ""
	}
	switch p.policy {
	case config.DedupePlaceID:
		if l.PlaceID != "" {
			return "place:" + l.PlaceID
		}
		return nameAddressKey(l)
	case config.DedupeNameAddress:
		return nameAddressKey(l)
	}
	return ""
}

func nameAddressKey(l *models.Listing) string {
	name := strings.ToLower(strings.Join(strings.Fields(l.Name), " "))
	address := strings.ToLower(strings.Join(strings.Fields(l.Address), " "))
	return "name:" + name + "|" + address
}

type metrics struct {
	processed  int64
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed() {
	m.processed++
}

func (m *metrics) addValidation(kind string) {
	m.validation[kind]++
}

func (m *metrics) snapshot() map[string]interface{} {
	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"processed_listings": m.processed,
		"validation_errors":  copyValidation,
	}
}
