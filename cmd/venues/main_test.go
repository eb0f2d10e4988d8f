package main

import (
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-venues/config"
)

func TestApplyEnv(t *testing.T) {
	t.Setenv("SERPAPI_API_KEY", "env-key")
	t.Setenv("VENUES_QUERY", "reception venue")
	t.Setenv("VENUES_DEDUPE", "place_id")
	t.Setenv("VENUES_MAX_RETRIES", "7")
	t.Setenv("VENUES_PAGE_DELAY", "500ms")
	t.Setenv("VENUES_INSECURE_SKIP_VERIFY", "true")
	t.Setenv("VENUES_LOCATIONS_FILE", "locations.txt")

	cfg := config.DefaultConfig()
	locationsFile, err := applyEnv(cfg)
	if err != nil {
		t.Fatalf("apply env: %v", err)
	}

	if cfg.APIKey != "env-key" || cfg.Query != "reception venue" {
		t.Fatalf("api key/query not applied: %q %q", cfg.APIKey, cfg.Query)
	}
	if cfg.DedupePolicy != config.DedupePlaceID {
		t.Fatalf("dedupe=%q", cfg.DedupePolicy)
	}
	if cfg.MaxRetries != 7 || cfg.PageDelay != 500*time.Millisecond {
		t.Fatalf("retries=%d delay=%v", cfg.MaxRetries, cfg.PageDelay)
	}
	if !cfg.InsecureSkipVerify {
		t.Fatal("insecure skip verify not applied")
	}
	if locationsFile != "locations.txt" {
		t.Fatalf("locations file=%q", locationsFile)
	}
}

func TestApplyEnvInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "retries", key: "VENUES_MAX_RETRIES", value: "many"},
		{name: "delay", key: "VENUES_PAGE_DELAY", value: "soon"},
		{name: "tls", key: "VENUES_INSECURE_SKIP_VERIFY", value: "perhaps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := applyEnv(config.DefaultConfig()); err == nil {
				t.Fatalf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}
