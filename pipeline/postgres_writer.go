package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aluiziolira/go-scrape-venues/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createVenuesSQL = `
        CREATE TABLE IF NOT EXISTS venues (
            id               BIGSERIAL PRIMARY KEY,
            run_id           UUID         NOT NULL,
            location         TEXT         NOT NULL,
            place_id         TEXT         NOT NULL DEFAULT '',
            name             TEXT         NOT NULL,
            address          TEXT         NOT NULL,
            phone            TEXT         NOT NULL DEFAULT '',
            phone_e164       TEXT         NOT NULL DEFAULT '',
            website          TEXT         NOT NULL DEFAULT '',
            rating           NUMERIC(3,2),
            reviews          INTEGER,
            latitude         DOUBLE PRECISION,
            longitude        DOUBLE PRECISION,
            google_maps_link TEXT         NOT NULL DEFAULT '',
            listing          JSONB        NOT NULL,
            scraped_at       TIMESTAMPTZ  NOT NULL,
            UNIQUE (run_id, location, name, address)
        );

        CREATE INDEX IF NOT EXISTS idx_venues_place_id ON venues(place_id);
        CREATE INDEX IF NOT EXISTS idx_venues_location ON venues(location);
    `

const upsertVenueSQL = `
        INSERT INTO venues (
            run_id, location, place_id, name, address, phone, phone_e164, website,
            rating, reviews, latitude, longitude, google_maps_link, listing, scraped_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14::jsonb,$15)
        ON CONFLICT (run_id, location, name, address) DO UPDATE SET
            place_id = EXCLUDED.place_id,
            phone = EXCLUDED.phone,
            phone_e164 = EXCLUDED.phone_e164,
            website = EXCLUDED.website,
            rating = EXCLUDED.rating,
            reviews = EXCLUDED.reviews,
            latitude = EXCLUDED.latitude,
            longitude = EXCLUDED.longitude,
            google_maps_link = EXCLUDED.google_maps_link,
            listing = EXCLUDED.listing,
            scraped_at = EXCLUDED.scraped_at;
    `

type pgxExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ pgxExecer = (*pgxpool.Pool)(nil)

// PostgresWriter upserts listings into the venues table as they arrive.
type PostgresWriter struct {
	ctx     context.Context
	db      pgxExecer
	pool    *pgxpool.Pool
	runID   uuid.UUID
	written int
}

// NewPostgresWriter connects with pgx, creates the schema and returns a
// writer tagging rows with runID.
func NewPostgresWriter(ctx context.Context, dsn string, runID uuid.UUID) (*PostgresWriter, error) {
	pool, err := connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	pw := newPostgresWriter(ctx, pool, runID)
	pw.pool = pool
	if err := pw.migrate(); err != nil {
		pool.Close()
		return nil, err
	}
	return pw, nil
}

func newPostgresWriter(ctx context.Context, db pgxExecer, runID uuid.UUID) *PostgresWriter {
	if ctx == nil {
		ctx = context.Background()
	}
	return &PostgresWriter{ctx: ctx, db: db, runID: runID}
}

func connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN must not be empty")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	cfg.MaxConns = 2
	cfg.MaxConnIdleTime = 15 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func (pw *PostgresWriter) migrate() error {
	if _, err := pw.db.Exec(pw.ctx, createVenuesSQL); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// Write upserts each listing.
func (pw *PostgresWriter) Write(listings []*models.Listing) error {
	for _, l := range listings {
		raw, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("postgres: encode listing: %w", err)
		}
		_, err = pw.db.Exec(pw.ctx, upsertVenueSQL,
			pw.runID.String(),
			l.Location,
			l.PlaceID,
			l.Name,
			l.Address,
			l.Phone,
			l.PhoneE164,
			l.Website,
			floatOrNil(l.Rating),
			intOrNil(l.Reviews),
			floatOrNil(l.Latitude),
			floatOrNil(l.Longitude),
			l.GoogleMapsLink,
			raw,
			l.ScrapedAt,
		)
		if err != nil {
			return fmt.Errorf("postgres: upsert %q: %w", l.Name, err)
		}
		pw.written++
	}
	return nil
}

// Close releases the pool when the writer owns one.
func (pw *PostgresWriter) Close() error {
	if pw.pool != nil {
		pw.pool.Close()
	}
	return nil
}

// Validate ensures at least one row was written.
func (pw *PostgresWriter) Validate() error {
	if pw.written == 0 {
		return fmt.Errorf("postgres: no listings written")
	}
	return nil
}

func floatOrNil(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func intOrNil(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}
