// Package store provides storage backends for daily-halacha-translate.
//
// This file implements a PostgreSQL-backed store for dedup state, dispatch
// records, and media metadata, suitable for multi-instance deployments.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/neshkoli/daily-halacha-translate/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	slog.Debug("Opening Postgres database connection")
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) RecordInbound(workKey, senderID string) (bool, error) {
	res, err := s.db.Exec(
		`INSERT INTO inbound_dedup (work_key, sender_id, received_at) VALUES ($1, $2, $3) ON CONFLICT (work_key) DO NOTHING`,
		workKey, senderID, time.Now(),
	)
	if err != nil {
		return false, fmt.Errorf("record inbound failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("dedup rows affected check failed: %w", err)
	}
	admitted := n > 0
	slog.Debug("PostgresStore RecordInbound", "work_key", workKey, "admitted", admitted)
	return admitted, nil
}

func (s *PostgresStore) ClearInbound() error {
	_, err := s.db.Exec(`DELETE FROM inbound_dedup`)
	if err != nil {
		slog.Error("PostgresStore ClearInbound failed", "error", err)
		return fmt.Errorf("clear inbound dedup failed: %w", err)
	}
	slog.Debug("PostgresStore ClearInbound succeeded")
	return nil
}

func (s *PostgresStore) AddDelivery(d models.Delivery) error {
	_, err := s.db.Exec(
		`INSERT INTO deliveries (work_key, sender_id, kind, outcome, detail, time) VALUES ($1, $2, $3, $4, $5, $6)`,
		d.WorkKey, d.SenderID, d.Kind, d.Outcome, nilIfEmpty(d.Detail), d.Time,
	)
	if err != nil {
		slog.Error("PostgresStore AddDelivery failed", "error", err, "work_key", d.WorkKey)
		return fmt.Errorf("failed to insert delivery for %s: %w", d.WorkKey, err)
	}
	slog.Debug("PostgresStore AddDelivery succeeded", "work_key", d.WorkKey, "outcome", d.Outcome)
	return nil
}

func (s *PostgresStore) RecentDeliveries(limit int) ([]models.Delivery, error) {
	if limit <= 0 {
		limit = DefaultDeliveryLimit
	}
	rows, err := s.db.Query(
		`SELECT work_key, sender_id, kind, outcome, detail, time FROM deliveries ORDER BY id DESC LIMIT $1`, limit,
	)
	if err != nil {
		slog.Error("PostgresStore RecentDeliveries query failed", "error", err)
		return nil, fmt.Errorf("failed to query deliveries: %w", err)
	}
	defer rows.Close()
	return scanDeliveries(rows)
}

func (s *PostgresStore) AddMediaObject(m models.MediaObject) error {
	_, err := s.db.Exec(
		`INSERT INTO media_objects (name, sender_id, direction, mime_type, size_bytes, public_url, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (name) DO UPDATE SET public_url = EXCLUDED.public_url, size_bytes = EXCLUDED.size_bytes`,
		m.Name, m.SenderID, m.Direction, nilIfEmpty(m.MimeType), m.SizeBytes, nilIfEmpty(m.PublicURL), m.CreatedAt,
	)
	if err != nil {
		slog.Error("PostgresStore AddMediaObject failed", "error", err, "name", m.Name)
		return fmt.Errorf("failed to insert media object %s: %w", m.Name, err)
	}
	slog.Debug("PostgresStore AddMediaObject succeeded", "name", m.Name, "direction", m.Direction)
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
