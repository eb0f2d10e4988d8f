package parser

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/aluiziolira/go-scrape-venues/models"
	"github.com/nyaruka/phonenumbers"
)

// MapsLinkPrefix is joined with a place id to build a Google Maps link.
const MapsLinkPrefix = "https://www.google.com/maps/place/?q=place_id:"

// Normalize maps a raw local search record into a Listing. Missing or
// mistyped fields fall back to their zero value; it never fails.
func Normalize(raw map[string]any, location, phoneRegion string) *models.Listing {
	gps := objectField(raw, "gps_coordinates")
	serviceOptions := objectField(raw, "service_options")

	listing := &models.Listing{
		PlaceID:         stringField(raw, "place_id"),
		Name:            stringField(raw, "title"),
		Address:         stringField(raw, "address"),
		FullAddress:     stringField(raw, "complete_address"),
		StreetAddress:   stringField(raw, "street_address"),
		Locality:        stringField(raw, "locality"),
		Region:          stringField(raw, "region"),
		PostalCode:      stringField(raw, "postal_code"),
		Latitude:        floatField(gps, "latitude"),
		Longitude:       floatField(gps, "longitude"),
		Rating:          floatField(raw, "rating"),
		Reviews:         intField(raw, "reviews"),
		Phone:           stringField(raw, "phone"),
		Category:        stringField(raw, "type"),
		Price:           stringField(raw, "price"),
		Hours:           freeformField(raw, "hours"),
		Website:         stringField(raw, "website"),
		BusinessWebsite: stringField(serviceOptions, "website"),
		Links:           linksField(raw, "links"),
		Thumbnail:       stringField(raw, "thumbnail"),
		Photos:          photosField(raw, "photos"),
		Location:        location,
		ScrapedAt:       time.Now(),
	}

	listing.PhoneE164 = NormalizePhone(listing.Phone, phoneRegion)
	listing.GoogleMapsLink = MapsLink(listing.PlaceID)

	if images, _ := raw["images"].([]any); len(images) > 0 {
		listing.AllPhotos = photosField(raw, "images")
	} else {
		listing.AllPhotos = listing.Photos
	}

	return listing
}

// MapsLink returns the Google Maps link for placeID, or "" when it is empty.
func MapsLink(placeID string) string {
	if placeID == "" {
		return ""
	}
	return MapsLinkPrefix + placeID
}

// ValidateListing ensures the listing carries a name and an address.
func ValidateListing(l *models.Listing) error {
	if l == nil {
		return fmt.Errorf("listing is nil")
	}
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("listing missing name")
	}
	if strings.TrimSpace(l.Address) == "" {
		return fmt.Errorf("listing missing address for %s", l.Name)
	}
	return nil
}

// IsAcceptable reports whether l passes ValidateListing.
func IsAcceptable(l *models.Listing) bool {
	return ValidateListing(l) == nil
}

// SanitizeName keeps letters, digits, spaces, hyphens and underscores.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePhone formats raw as E.164 for region, or returns "" when the
// number is not valid there.
func NormalizePhone(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || region == "" {
		return ""
	}
	number, err := phonenumbers.Parse(raw, strings.ToUpper(region))
	if err != nil {
		return ""
	}
	if !phonenumbers.IsValidNumber(number) {
		return ""
	}
	return phonenumbers.Format(number, phonenumbers.E164)
}

func objectField(raw map[string]any, key string) map[string]any {
	if raw == nil {
		return nil
	}
	obj, _ := raw[key].(map[string]any)
	return obj
}

func stringField(raw map[string]any, key string) string {
	if raw == nil {
		return ""
	}
	switch v := raw[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

func floatField(raw map[string]any, key string) *float64 {
	if raw == nil {
		return nil
	}
	var f float64
	switch v := raw[key].(type) {
	case float64:
		f = v
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	return &f
}

func intField(raw map[string]any, key string) *int {
	f := floatField(raw, key)
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}

// freeformField renders strings as-is and anything else as compact JSON.
func freeformField(raw map[string]any, key string) string {
	if raw == nil {
		return ""
	}
	switch v := raw[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}

func linksField(raw map[string]any, key string) []models.Link {
	items, _ := raw[key].([]any)
	var links []models.Link
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if v != "" {
				links = append(links, models.Link{URL: v})
			}
		case map[string]any:
			link := models.Link{Text: stringField(v, "text"), URL: stringField(v, "link")}
			if link.URL != "" {
				links = append(links, link)
			}
		}
	}
	return links
}

func photosField(raw map[string]any, key string) []models.Photo {
	items, _ := raw[key].([]any)
	var photos []models.Photo
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if v != "" {
				photos = append(photos, models.Photo{Image: v})
			}
		case map[string]any:
			photo := models.Photo{
				Image:     stringField(v, "image"),
				Original:  stringField(v, "original"),
				Thumbnail: stringField(v, "thumbnail"),
			}
			if photo != (models.Photo{}) {
				photos = append(photos, photo)
			}
		}
	}
	return photos
}
