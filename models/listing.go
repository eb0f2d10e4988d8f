// Package models defines data structures for the scraper.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Link is an auxiliary link attached to a listing.
type Link struct {
	Text string `json:"text,omitempty"`
	URL  string `json:"url"`
}

// Photo is one image reference from the local search payload.
type Photo struct {
	Image     string `json:"image,omitempty"`
	Original  string `json:"original,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// AdditionalImage is one result of the secondary image search.
type AdditionalImage struct {
	Thumbnail string `json:"thumbnail"`
	Original  string `json:"original"`
	Source    string `json:"source"`
}

// Listing represents one discovered venue.
type Listing struct {
	PlaceID       string `json:"place_id,omitempty"`
	Name          string `json:"name"`
	Address       string `json:"address"`
	FullAddress   string `json:"full_address,omitempty"`
	StreetAddress string `json:"street_address,omitempty"`
	Locality      string `json:"locality,omitempty"`
	Region        string `json:"region,omitempty"`
	PostalCode    string `json:"postal_code,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	Rating          *float64 `json:"rating,omitempty"`
	Reviews         *int     `json:"reviews,omitempty"`
	Phone           string   `json:"phone,omitempty"`
	PhoneE164       string   `json:"phone_e164,omitempty"`
	Category        string   `json:"category,omitempty"`
	Price           string   `json:"price,omitempty"`
	Hours           string   `json:"hours,omitempty"`
	Website         string   `json:"website,omitempty"`
	BusinessWebsite string   `json:"business_website,omitempty"`
	Links           []Link   `json:"additional_links,omitempty"`

	Thumbnail        string            `json:"thumbnail,omitempty"`
	Photos           []Photo           `json:"photos,omitempty"`
	AllPhotos        []Photo           `json:"all_photos,omitempty"`
	AdditionalImages []AdditionalImage `json:"additional_images"`
	DownloadedImages []string          `json:"downloaded_images"`

	GoogleMapsLink string    `json:"google_maps_link,omitempty"`
	Location       string    `json:"location"`
	ScrapedAt      time.Time `json:"scraped_at"`
}

// HasCoordinates reports whether both latitude and longitude are known.
func (l *Listing) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// RunResult holds the overall result of a scraping run.
type RunResult struct {
	RunID            uuid.UUID
	Listings         []*Listing
	TotalCount       int
	Locations        []string
	FailedLocations  map[string]string
	RequestCount     int
	PageCount        int
	RetryCount       int
	Rejected         int
	Duplicates       int
	DownloadCount    int
	DownloadFailures int
	StartTime        time.Time
	EndTime          time.Time
}
