// Package store provides storage backends for daily-halacha-translate.
//
// This file implements an SQLite-backed store for dedup state, dispatch
// records, and media metadata.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/neshkoli/daily-halacha-translate/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	slog.Debug("Opening SQLite database connection")
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) RecordInbound(workKey, senderID string) (bool, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO inbound_dedup (work_key, sender_id, received_at) VALUES (?, ?, ?)`,
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
	slog.Debug("SQLiteStore RecordInbound", "work_key", workKey, "admitted", admitted)
	return admitted, nil
}

func (s *SQLiteStore) ClearInbound() error {
	_, err := s.db.Exec(`DELETE FROM inbound_dedup`)
	if err != nil {
		slog.Error("SQLiteStore ClearInbound failed", "error", err)
		return fmt.Errorf("clear inbound dedup failed: %w", err)
	}
	slog.Debug("SQLiteStore ClearInbound succeeded")
	return nil
}

func (s *SQLiteStore) AddDelivery(d models.Delivery) error {
	_, err := s.db.Exec(
		`INSERT INTO deliveries (work_key, sender_id, kind, outcome, detail, time) VALUES (?, ?, ?, ?, ?, ?)`,
		d.WorkKey, d.SenderID, d.Kind, d.Outcome, nilIfEmpty(d.Detail), d.Time,
	)
	if err != nil {
		slog.Error("SQLiteStore AddDelivery failed", "error", err, "work_key", d.WorkKey)
		return fmt.Errorf("failed to insert delivery for %s: %w", d.WorkKey, err)
	}
	slog.Debug("SQLiteStore AddDelivery succeeded", "work_key", d.WorkKey, "outcome", d.Outcome)
	return nil
}

func (s *SQLiteStore) RecentDeliveries(limit int) ([]models.Delivery, error) {
	if limit <= 0 {
		limit = DefaultDeliveryLimit
	}
	rows, err := s.db.Query(
		`SELECT work_key, sender_id, kind, outcome, detail, time FROM deliveries ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		slog.Error("SQLiteStore RecentDeliveries query failed", "error", err)
		return nil, fmt.Errorf("failed to query deliveries: %w", err)
	}
	defer rows.Close()
	return scanDeliveries(rows)
}

func (s *SQLiteStore) AddMediaObject(m models.MediaObject) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO media_objects (name, sender_id, direction, mime_type, size_bytes, public_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.Name, m.SenderID, m.Direction, nilIfEmpty(m.MimeType), m.SizeBytes, nilIfEmpty(m.PublicURL), m.CreatedAt,
	)
	if err != nil {
		slog.Error("SQLiteStore AddMediaObject failed", "error", err, "name", m.Name)
		return fmt.Errorf("failed to insert media object %s: %w", m.Name, err)
	}
	slog.Debug("SQLiteStore AddMediaObject succeeded", "name", m.Name, "direction", m.Direction)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
