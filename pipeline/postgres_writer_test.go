package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aluiziolira/go-scrape-venues/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

type execCall struct {
	sql  string
	args []any
}

type stubExecer struct {
	calls []execCall
	err   error
}

func (s *stubExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, execCall{sql: sql, args: args})
	if s.err != nil {
		return pgconn.CommandTag{}, s.err
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestPostgresWriterMigrate(t *testing.T) {
	db := &stubExecer{}
	pw := newPostgresWriter(context.Background(), db, uuid.New())

	if err := pw.migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if len(db.calls) != 1 || !strings.Contains(db.calls[0].sql, "CREATE TABLE IF NOT EXISTS venues") {
		t.Fatalf("unexpected migration calls: %+v", db.calls)
	}
}

func TestPostgresWriterWrite(t *testing.T) {
	db := &stubExecer{}
	runID := uuid.New()
	pw := newPostgresWriter(context.Background(), db, runID)

	if err := pw.Validate(); err == nil {
		t.Fatal("expected validation error before any write")
	}

	plain := &models.Listing{Name: "Acme Hall", Address: "1 Main St", Location: "Sydney"}
	if err := pw.Write([]*models.Listing{sampleListing(), plain}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(db.calls) != 2 {
		t.Fatalf("exec calls=%d, want 2", len(db.calls))
	}

	args := db.calls[0].args
	if len(args) != 15 {
		t.Fatalf("args=%d, want 15", len(args))
	}
	if args[0] != runID.String() || args[3] != "Harbour View Hall" {
		t.Fatalf("unexpected args: %v", args[:4])
	}
	if args[8] != 4.6 || args[9] != 128 {
		t.Fatalf("rating/reviews args: %v, %v", args[8], args[9])
	}
	var decoded models.Listing
	if err := json.Unmarshal(args[13].([]byte), &decoded); err != nil {
		t.Fatalf("listing payload: %v", err)
	}
	if decoded.PlaceID != "ChIJ3S-JXmauEmsRUcIaWtf4MzE" {
		t.Fatalf("payload place id=%q", decoded.PlaceID)
	}

	nullable := db.calls[1].args
	for _, i := range []int{8, 9, 10, 11} {
		if nullable[i] != nil {
			t.Fatalf("arg %d=%v, want nil", i, nullable[i])
		}
	}

	if err := pw.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := pw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestPostgresWriterPropagatesExecError(t *testing.T) {
	boom := errors.New("relation does not exist")
	pw := newPostgresWriter(context.Background(), &stubExecer{err: boom}, uuid.New())

	err := pw.Write([]*models.Listing{sampleListing()})
	if !errors.Is(err, boom) {
		t.Fatalf("expected exec error, got %v", err)
	}
	if err := pw.Validate(); err == nil {
		t.Fatal("failed writes should not count")
	}
}

func TestNewPostgresWriterRejectsEmptyDSN(t *testing.T) {
	if _, err := NewPostgresWriter(context.Background(), "", uuid.New()); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}
