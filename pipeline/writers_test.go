package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-venues/models"
)

func sampleListing() *models.Listing {
	rating := 4.6
	reviews := 128
	lat, lng := -33.8568, 151.2153
	return &models.Listing{
		PlaceID:          "ChIJ3S-JXmauEmsRUcIaWtf4MzE",
		Name:             "Harbour View Hall",
		Address:          "2 Circular Quay, Sydney NSW 2000",
		Rating:           &rating,
		Reviews:          &reviews,
		Phone:            "(02) 9250 7111",
		PhoneE164:        "+61292507111",
		Category:         "Wedding venue",
		Website:          "https://harbourview.example",
		Latitude:         &lat,
		Longitude:        &lng,
		GoogleMapsLink:   "https://www.google.com/maps/place/?q=place_id:ChIJ3S-JXmauEmsRUcIaWtf4MzE",
		Thumbnail:        "http://example.test/thumb.jpg",
		AdditionalImages: []models.AdditionalImage{{Thumbnail: "t", Original: "o", Source: "s"}},
		DownloadedImages: []string{"venue_images/a.jpg", "venue_images/b.jpg"},
		Location:         "Sydney, New South Wales, Australia",
		ScrapedAt:        time.Date(2025, 11, 4, 13, 9, 13, 0, time.UTC),
	}
}

func TestCSVWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "venues.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}

	if err := writer.Write([]*models.Listing{sampleListing()}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records=%d, want 2", len(records))
	}
	if records[0][0] != "location" || records[0][1] != "name" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	row := records[1]
	if len(row) != len(csvHeader) {
		t.Fatalf("row has %d columns, want %d", len(row), len(csvHeader))
	}
	if row[1] != "Harbour View Hall" || row[4] != "4.6" || row[5] != "128" {
		t.Fatalf("unexpected row: %v", row)
	}
	if row[17] != "venue_images/a.jpg;venue_images/b.jpg" {
		t.Fatalf("downloaded images column=%q", row[17])
	}
}

func TestCSVWriterEmptyOptionalFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "venues.csv")
	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}

	listing := &models.Listing{Name: "Plain", Address: "1 St"}
	if err := writer.Write([]*models.Listing{listing}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	row := records[1]
	if row[4] != "" || row[5] != "" || row[12] != "" {
		t.Fatalf("nil numbers should be empty: %v", row)
	}
}

func TestJSONWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "venues.jsonl")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}

	second := sampleListing()
	second.Name = "Second Hall"
	if err := writer.Write([]*models.Listing{sampleListing()}); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Write([]*models.Listing{second}); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var names []string
	for scanner.Scan() {
		var decoded models.Listing
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid json line: %v", err)
		}
		names = append(names, decoded.Name)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan json: %v", err)
	}
	if strings.Join(names, ",") != "Harbour View Hall,Second Hall" {
		t.Fatalf("json names=%v", names)
	}
}

func TestJSONWriterValidateEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "venues.jsonl")
	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	defer writer.Close()

	if err := writer.Validate(); err == nil {
		t.Fatal("expected validation error for empty file")
	}
}

type recordingWriter struct {
	written     []*models.Listing
	writeErr    error
	closeErr    error
	validateErr error
	closed      bool
}

func (rw *recordingWriter) Write(listings []*models.Listing) error {
	if rw.writeErr != nil {
		return rw.writeErr
	}
	rw.written = append(rw.written, listings...)
	return nil
}

func (rw *recordingWriter) Close() error {
	rw.closed = true
	return rw.closeErr
}

func (rw *recordingWriter) Validate() error {
	return rw.validateErr
}

func TestMultiWriterWrite(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "venues.csv")
	jsonPath := filepath.Join(dir, "venues.jsonl")

	csvWriter, err := NewCSVWriter(csvPath)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	jsonWriter, err := NewJSONWriter(jsonPath)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}

	writer := NewMultiWriter(csvWriter, nil, jsonWriter)
	if writer.Len() != 2 {
		t.Fatalf("len=%d, want 2", writer.Len())
	}

	if err := writer.Write([]*models.Listing{sampleListing()}); err != nil {
		t.Fatalf("write multi: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate multi: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multi: %v", err)
	}

	if info, err := os.Stat(csvPath); err != nil || info.Size() == 0 {
		t.Fatalf("csv file missing or empty")
	}
	if info, err := os.Stat(jsonPath); err != nil || info.Size() == 0 {
		t.Fatalf("json file missing or empty")
	}
}

func TestMultiWriterStopsAtFirstFailure(t *testing.T) {
	boom := errors.New("disk full")
	first := &recordingWriter{writeErr: boom}
	second := &recordingWriter{}

	writer := NewMultiWriter(first, second)
	err := writer.Write([]*models.Listing{sampleListing()})
	if !errors.Is(err, boom) {
		t.Fatalf("expected write error, got %v", err)
	}
	if len(second.written) != 0 {
		t.Fatal("writers after a failure should not be called")
	}
}

func TestMultiWriterJoinsCloseErrors(t *testing.T) {
	errA := errors.New("close a")
	errB := errors.New("close b")
	a := &recordingWriter{closeErr: errA}
	b := &recordingWriter{closeErr: errB}

	err := NewMultiWriter(a, b).Close()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("expected both close errors, got %v", err)
	}
	if !a.closed || !b.closed {
		t.Fatal("every writer should be closed")
	}
}

func TestMultiWriterEmpty(t *testing.T) {
	writer := NewMultiWriter()
	if err := writer.Write([]*models.Listing{sampleListing()}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
