package pipeline

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-scrape-venues/models"
)

var (
	headerRule  = strings.Repeat("=", 50)
	listingRule = strings.Repeat("-", 30)
)

// ReportWriter appends a human-readable report to a text file. Each call
// opens the file in append mode and closes it before returning.
type ReportWriter struct {
	path string
}

// NewReportWriter creates the report's parent directory.
func NewReportWriter(path string) (*ReportWriter, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	return &ReportWriter{path: path}, nil
}

// WriteLocationHeader appends the banner for a location sweep.
func (rw *ReportWriter) WriteLocationHeader(location string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\nResults for %s\n%s\n\n", headerRule, location, headerRule)
	return rw.append(b.String())
}

// Write appends one block per listing.
func (rw *ReportWriter) Write(listings []*models.Listing) error {
	var b strings.Builder
	for _, l := range listings {
		formatListing(&b, l)
	}
	return rw.append(b.String())
}

// WriteSummary appends the closing summary.
func (rw *ReportWriter) WriteSummary(total int, locations []string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\nFINAL SUMMARY\n", headerRule)
	fmt.Fprintf(&b, "Total venues found across all locations: %d\n", total)
	fmt.Fprintf(&b, "Locations searched: %s\n", strings.Join(locations, ", "))
	return rw.append(b.String())
}

// Close is a no-op; no handle is held between writes.
func (rw *ReportWriter) Close() error {
	return nil
}

// Validate ensures the report exists and has content.
func (rw *ReportWriter) Validate() error {
	info, err := os.Stat(rw.path)
	if err != nil {
		return fmt.Errorf("stat report file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("report file is empty")
	}
	return nil
}

func (rw *ReportWriter) append(text string) error {
	f, err := os.OpenFile(rw.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open report file: %w", err)
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return fmt.Errorf("append report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report file: %w", err)
	}
	return nil
}

func formatListing(b *strings.Builder, l *models.Listing) {
	fmt.Fprintf(b, "Name: %s\n", l.Name)
	fmt.Fprintf(b, "Address: %s\n", l.Address)
	if l.Rating != nil && *l.Rating != 0 {
		fmt.Fprintf(b, "Rating: %s\n", strconv.FormatFloat(*l.Rating, 'f', -1, 64))
	}
	if l.Reviews != nil && *l.Reviews != 0 {
		fmt.Fprintf(b, "Reviews: %d\n", *l.Reviews)
	}
	writeField(b, "Price", l.Price)
	writeField(b, "Phone", l.Phone)
	writeField(b, "Category", l.Category)
	writeField(b, "Main Website", l.Website)
	writeField(b, "Business Website", l.BusinessWebsite)
	if len(l.Links) > 0 {
		b.WriteString("Additional Links:\n")
		for _, link := range l.Links {
			if link.Text != "" {
				fmt.Fprintf(b, "- %s: %s\n", link.Text, link.URL)
			} else {
				fmt.Fprintf(b, "- %s\n", link.URL)
			}
		}
	}
	writeField(b, "Hours", l.Hours)
	writeField(b, "Thumbnail URL", l.Thumbnail)

	if photos := photoImages(l.Photos); len(photos) > 0 {
		b.WriteString("Photo URLs:\n")
		for _, u := range photos {
			fmt.Fprintf(b, "- %s\n", u)
		}
	}
	writeField(b, "Google Maps", l.GoogleMapsLink)
	if l.HasCoordinates() {
		fmt.Fprintf(b, "GPS Coordinates: %s, %s\n",
			strconv.FormatFloat(*l.Latitude, 'f', -1, 64),
			strconv.FormatFloat(*l.Longitude, 'f', -1, 64))
	}

	if len(l.AllPhotos) > 0 {
		b.WriteString("All Photos:\n")
		for _, photo := range l.AllPhotos {
			for _, u := range []string{photo.Image, photo.Original, photo.Thumbnail} {
				if u != "" {
					fmt.Fprintf(b, "- %s\n", u)
				}
			}
		}
	}
	if len(l.AdditionalImages) > 0 {
		b.WriteString("Additional Images:\n")
		for _, img := range l.AdditionalImages {
			fmt.Fprintf(b, "- Thumbnail: %s\n", img.Thumbnail)
			fmt.Fprintf(b, "  Original: %s\n", img.Original)
			fmt.Fprintf(b, "  Source: %s\n", img.Source)
		}
	}
	if len(l.DownloadedImages) > 0 {
		b.WriteString("\nDownloaded Images:\n")
		for _, p := range l.DownloadedImages {
			fmt.Fprintf(b, "- %s\n", p)
		}
	}

	fmt.Fprintf(b, "\n%s\n\n", listingRule)
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}

func photoImages(photos []models.Photo) []string {
	var urls []string
	for _, photo := range photos {
		if photo.Image != "" {
			urls = append(urls, photo.Image)
		}
	}
	return urls
}
