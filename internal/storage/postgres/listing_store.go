// Package postgres provides the Postgres-backed listing store.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"autoria-harvester/internal/harvest"
)

// Config controls the Postgres connection pool used for listing rows.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// ListingStore persists listings keyed by URL. It is safe for concurrent
// use: the pool hands each upsert its own connection.
type ListingStore struct {
	pool dbPool
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS cars (
	id              SERIAL PRIMARY KEY,
	url             TEXT UNIQUE NOT NULL,
	title           TEXT,
	price_usd       NUMERIC,
	odometer        INTEGER,
	username        TEXT,
	phone_number    TEXT,
	image_url       TEXT,
	images_count    INTEGER,
	car_number      TEXT,
	car_vin         TEXT,
	fuel_type       TEXT,
	transmission    TEXT,
	engine_volume   TEXT,
	drive_type      TEXT,
	datetime_found  TIMESTAMPTZ DEFAULT NOW(),
	created_at      TIMESTAMPTZ DEFAULT NOW(),
	updated_at      TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_cars_datetime_found ON cars (datetime_found);
`

// upsertSQL merges one listing into the cars table. $6 is the resolved
// phone or NULL; $16 is the placeholder. A fresh row falls back to the
// placeholder, but an update only takes $6 when it is non-NULL, so a known
// phone is never overwritten by an absent one. (xmax = 0) distinguishes a
// fresh insert from an update.
const upsertSQL = `
INSERT INTO cars (url, title, price_usd, odometer, username, phone_number,
                  image_url, images_count, car_number, car_vin,
                  fuel_type, transmission, engine_volume, drive_type,
                  datetime_found)
VALUES ($1,$2,$3,$4,$5,COALESCE($6,$16),$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (url) DO UPDATE SET
	title          = EXCLUDED.title,
	price_usd      = EXCLUDED.price_usd,
	odometer       = EXCLUDED.odometer,
	username       = EXCLUDED.username,
	phone_number   = COALESCE($6, cars.phone_number),
	image_url      = EXCLUDED.image_url,
	images_count   = EXCLUDED.images_count,
	car_number     = EXCLUDED.car_number,
	car_vin        = EXCLUDED.car_vin,
	fuel_type      = EXCLUDED.fuel_type,
	transmission   = EXCLUDED.transmission,
	engine_volume  = EXCLUDED.engine_volume,
	drive_type     = EXCLUDED.drive_type,
	datetime_found = EXCLUDED.datetime_found,
	updated_at     = NOW()
RETURNING (xmax = 0) AS is_insert
`

var trailingDigitsRe = regexp.MustCompile(`(\d+)\D*$`)

// New creates a Postgres-backed ListingStore using the provided config.
func New(ctx context.Context, cfg Config) (*ListingStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ListingStore{pool: pool}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool dbPool) (*ListingStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ListingStore{pool: pool}, nil
}

// Init creates the cars table and its indexes if they do not exist.
func (s *ListingStore) Init(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Upsert merges one listing into durable storage and reports whether the
// row was newly inserted. An unresolved phone binds NULL: a brand-new row
// then stores a deterministic placeholder derived from the URL's numeric
// suffix, while an existing row keeps whatever number it already has.
func (s *ListingStore) Upsert(ctx context.Context, l harvest.Listing) (bool, error) {
	if l.URL == "" {
		return false, fmt.Errorf("listing url is required")
	}

	var inserted bool
	err := s.pool.QueryRow(ctx, upsertSQL,
		l.URL,
		l.Title,
		l.PriceUSD,
		l.Odometer,
		l.SellerName,
		l.PhoneNumber,
		l.ImageURL,
		l.ImageCount,
		l.PlateNumber,
		l.VIN,
		l.FuelType,
		l.Transmission,
		l.EngineVolume,
		l.DriveType,
		l.FoundAt,
		placeholderPhone(l.URL),
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert listing: %w", err)
	}
	return inserted, nil
}

// Ping verifies the pool can reach the database.
func (s *ListingStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *ListingStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// placeholderPhone synthesizes a deterministic stand-in from the numeric
// suffix of the listing URL.
func placeholderPhone(url string) string {
	if m := trailingDigitsRe.FindStringSubmatch(url); m != nil {
		return "000" + m[1]
	}
	return "0000000000"
}
