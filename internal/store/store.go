// Package store provides storage backends for daily-halacha-translate.
//
// It includes an in-memory store (the default), plus SQLite and PostgreSQL
// backends for deployments that need dispatch records and dedup state to
// survive restarts or be shared across instances.
package store

import (
	"sync"

	"github.com/neshkoli/daily-halacha-translate/internal/models"
)

// DefaultDeliveryLimit caps RecentDeliveries when callers pass no limit.
const DefaultDeliveryLimit = 100

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DedupRepo defines the interface for inbound work-unit deduplication.
type DedupRepo interface {
	// RecordInbound inserts a new work key atomically. Returns false if the
	// key was already recorded (duplicate).
	RecordInbound(workKey, senderID string) (bool, error)

	// ClearInbound removes all recorded work keys (the periodic full clear).
	ClearInbound() error
}

// DeliveryRepo defines the interface for dispatch outcome records.
type DeliveryRepo interface {
	// AddDelivery appends a dispatch outcome record.
	AddDelivery(d models.Delivery) error

	// RecentDeliveries returns up to limit records, newest first.
	RecentDeliveries(limit int) ([]models.Delivery, error)
}

// MediaRepo defines the interface for archival audio metadata.
type MediaRepo interface {
	// AddMediaObject records metadata for one persisted audio file.
	AddMediaObject(m models.MediaObject) error
}

// Store is the full persistence surface used by the relay and the API.
type Store interface {
	DedupRepo
	DeliveryRepo
	MediaRepo
	Close() error
}

// Compile-time check that InMemoryStore implements Store.
var _ Store = (*InMemoryStore)(nil)

// InMemoryStore is the default backend: nothing survives a restart, which is
// acceptable for best-effort chat dispatch.
type InMemoryStore struct {
	mu         sync.Mutex
	seen       map[string]string
	deliveries []models.Delivery
	media      []models.MediaObject
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{seen: make(map[string]string)}
}

func (s *InMemoryStore) RecordInbound(workKey, senderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[workKey]; ok {
		return false, nil
	}
	s.seen[workKey] = senderID
	return true, nil
}

func (s *InMemoryStore) ClearInbound() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = make(map[string]string)
	return nil
}

func (s *InMemoryStore) AddDelivery(d models.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries = append(s.deliveries, d)
	return nil
}

func (s *InMemoryStore) RecentDeliveries(limit int) ([]models.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.deliveries) {
		limit = len(s.deliveries)
	}
	out := make([]models.Delivery, 0, limit)
	for i := len(s.deliveries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.deliveries[i])
	}
	return out, nil
}

func (s *InMemoryStore) AddMediaObject(m models.MediaObject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.media = append(s.media, m)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
