package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aluiziolira/go-scrape-venues/config"
	"github.com/aluiziolira/go-scrape-venues/models"
)

func newTestPipeline(t *testing.T, cfg *config.Config, writer OutputWriter) (*Pipeline, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.txt")
	report, err := NewReportWriter(path)
	if err != nil {
		t.Fatalf("create report: %v", err)
	}
	p, err := NewPipeline(cfg, report, writer)
	if err != nil {
		t.Fatalf("create pipeline: %v", err)
	}
	return p, path
}

func TestPipelineAdmitRejectsInvalid(t *testing.T) {
	p, _ := newTestPipeline(t, config.DefaultConfig(), nil)

	tests := []struct {
		name    string
		listing *models.Listing
	}{
		{name: "missing name", listing: &models.Listing{Address: "1 Main St"}},
		{name: "missing address", listing: &models.Listing{Name: "Acme Hall"}},
		{name: "blank fields", listing: &models.Listing{Name: "  ", Address: "\t"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := p.Admit(tt.listing); !errors.Is(err, ErrRejected) {
				t.Fatalf("expected ErrRejected, got %v", err)
			}
		})
	}

	rejected, duplicates := p.Skipped()
	if rejected != len(tests) || duplicates != 0 {
		t.Fatalf("rejected=%d duplicates=%d", rejected, duplicates)
	}
}

func TestPipelineDedupePolicies(t *testing.T) {
	tests := []struct {
		name      string
		policy    string
		listings  []*models.Listing
		admitted  int
		duplicate int
	}{
		{
			name:   "none keeps repeats",
			policy: config.DedupeNone,
			listings: []*models.Listing{
				{Name: "Acme Hall", Address: "1 Main St", PlaceID: "p1"},
				{Name: "Acme Hall", Address: "1 Main St", PlaceID: "p1"},
			},
			admitted: 2,
		},
		{
			name:   "place id",
			policy: config.DedupePlaceID,
			listings: []*models.Listing{
				{Name: "Acme Hall", Address: "1 Main St", PlaceID: "p1"},
				{Name: "Acme Hall (Garden)", Address: "1 Main Street", PlaceID: "p1"},
				{Name: "Acme Hall", Address: "1 Main St", PlaceID: "p2"},
			},
			admitted:  2,
			duplicate: 1,
		},
		{
			name:   "place id falls back to name and address",
			policy: config.DedupePlaceID,
			listings: []*models.Listing{
				{Name: "Acme Hall", Address: "1 Main St"},
				{Name: "acme  hall", Address: "1 MAIN ST"},
			},
			admitted:  1,
			duplicate: 1,
		},
		{
			name:   "name and address ignores place id",
			policy: config.DedupeNameAddress,
			listings: []*models.Listing{
				{Name: "Acme Hall", Address: "1 Main St", PlaceID: "p1"},
				{Name: "Acme Hall", Address: "1 Main St", PlaceID: "p2"},
				{Name: "Bay Barn", Address: "1 Main St", PlaceID: "p1"},
			},
			admitted:  2,
			duplicate: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.DedupePolicy = tt.policy
			p, _ := newTestPipeline(t, cfg, nil)

			admitted := 0
			for _, l := range tt.listings {
				err := p.Admit(l)
				switch {
				case err == nil:
					admitted++
				case errors.Is(err, ErrDuplicate):
				default:
					t.Fatalf("unexpected error: %v", err)
				}
			}
			_, duplicates := p.Skipped()
			if admitted != tt.admitted || duplicates != tt.duplicate {
				t.Fatalf("admitted=%d duplicates=%d, want %d/%d", admitted, duplicates, tt.admitted, tt.duplicate)
			}
		})
	}
}

func TestPipelineProcessStreamsToSinks(t *testing.T) {
	writer := &recordingWriter{}
	p, path := newTestPipeline(t, config.DefaultConfig(), writer)

	if err := p.BeginLocation("Sydney"); err != nil {
		t.Fatalf("begin location: %v", err)
	}
	first := &models.Listing{Name: "Acme Hall", Address: "1 Main St", Location: "Sydney"}
	second := &models.Listing{Name: "Bay Barn", Address: "2 Bay Rd", Location: "Sydney"}
	for _, l := range []*models.Listing{first, second} {
		if err := p.Process(l); err != nil {
			t.Fatalf("process: %v", err)
		}
		// Each listing is persisted before the next one arrives.
		if got := len(writer.written); got != p.Total() {
			t.Fatalf("writer has %d listings, pipeline total %d", got, p.Total())
		}
	}
	if err := p.Finish([]string{"Sydney"}); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if !writer.closed {
		t.Fatal("writer should be closed")
	}
	if p.Total() != 2 || len(p.Listings()) != 2 {
		t.Fatalf("total=%d listings=%d, want 2", p.Total(), len(p.Listings()))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	content := string(data)
	if strings.Index(content, "Name: Acme Hall") > strings.Index(content, "Name: Bay Barn") {
		t.Fatalf("listings out of order:\n%s", content)
	}
	if !strings.Contains(content, "Total venues found across all locations: 2\n") {
		t.Fatalf("summary missing:\n%s", content)
	}

	snapshot := p.GetMetrics()
	if snapshot["processed_listings"].(int64) != 2 {
		t.Fatalf("processed=%v", snapshot["processed_listings"])
	}
}

func TestPipelineWithoutKeepingListings(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.KeepListings = false
	writer := &recordingWriter{}
	p, _ := newTestPipeline(t, cfg, writer)

	if err := p.Process(&models.Listing{Name: "Acme Hall", Address: "1 Main St"}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if p.Total() != 1 {
		t.Fatalf("total=%d, want 1", p.Total())
	}
	if len(p.Listings()) != 0 {
		t.Fatalf("listings should not be retained")
	}
	if len(writer.written) != 1 {
		t.Fatalf("writer should still receive the listing")
	}
}

func TestPipelineProcessPropagatesWriterError(t *testing.T) {
	boom := errors.New("connection lost")
	p, _ := newTestPipeline(t, config.DefaultConfig(), &recordingWriter{writeErr: boom})

	err := p.Process(&models.Listing{Name: "Acme Hall", Address: "1 Main St"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected writer error, got %v", err)
	}
}

func TestPipelineClosed(t *testing.T) {
	p, _ := newTestPipeline(t, config.DefaultConfig(), nil)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	listing := &models.Listing{Name: "Acme Hall", Address: "1 Main St"}
	if err := p.Admit(listing); !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("admit after close: %v", err)
	}
	if err := p.Process(listing); !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("process after close: %v", err)
	}
	if err := p.BeginLocation("Sydney"); !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("begin after close: %v", err)
	}
}

func TestPipelineWithoutReport(t *testing.T) {
	p, err := NewPipeline(config.DefaultConfig(), nil, nil)
	if err != nil {
		t.Fatalf("create pipeline: %v", err)
	}
	if err := p.BeginLocation("Sydney"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := p.Process(&models.Listing{Name: "Acme Hall", Address: "1 Main St"}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Finish([]string{"Sydney"}); err != nil {
		t.Fatalf("finish: %v", err)
	}
}
