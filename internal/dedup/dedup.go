// Package dedup provides the deduplication gate for inbound units of work.
//
// The gate guarantees at-most-one dispatch per work key between periodic
// clears: webhook senders retry on slow or ambiguous responses, and without
// this gate a slow audio pipeline causes duplicate replies and duplicate
// downstream billing. Keys are committed before any downstream call, so a
// crash mid-processing drops the message instead of reprocessing it on retry.
package dedup

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/neshkoli/daily-halacha-translate/internal/store"
)

// Result is the outcome of offering a work key to the gate.
type Result int

const (
	// Admitted means the key was not seen before and is now committed.
	Admitted Result = iota
	// Duplicate means the key was already committed since the last clear.
	Duplicate
)

func (r Result) String() string {
	if r == Admitted {
		return "admitted"
	}
	return "duplicate"
}

// Gate admits each work key at most once between clears.
type Gate interface {
	// Admit checks and commits the key in one atomic step: of two concurrent
	// calls for the same key, exactly one observes Admitted.
	Admit(workKey, senderID string) (Result, error)

	// Clear drops every committed key. Entries are never removed individually.
	Clear() error

	// Len returns the number of committed keys.
	Len() int
}

// Compile-time checks.
var (
	_ Gate = (*MemoryGate)(nil)
	_ Gate = (*StoreGate)(nil)
)

// MemoryGate is the default in-memory gate. Check-and-insert happens under a
// single mutex hold, which provides the atomicity Admit requires.
type MemoryGate struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryGate creates an empty in-memory gate.
func NewMemoryGate() *MemoryGate {
	return &MemoryGate{seen: make(map[string]struct{})}
}

func (g *MemoryGate) Admit(workKey, senderID string) (Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.seen[workKey]; ok {
		return Duplicate, nil
	}
	g.seen[workKey] = struct{}{}
	return Admitted, nil
}

func (g *MemoryGate) Clear() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := len(g.seen)
	g.seen = make(map[string]struct{})
	slog.Debug("MemoryGate.Clear: dropped committed keys", "count", n)
	return nil
}

func (g *MemoryGate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}

// StoreGate backs the gate with a store.DedupRepo so multiple instances can
// share dedup state. Atomicity comes from the repo's conflict-free insert.
type StoreGate struct {
	repo store.DedupRepo
}

// NewStoreGate wraps a DedupRepo as a Gate.
func NewStoreGate(repo store.DedupRepo) *StoreGate {
	return &StoreGate{repo: repo}
}

func (g *StoreGate) Admit(workKey, senderID string) (Result, error) {
	admitted, err := g.repo.RecordInbound(workKey, senderID)
	if err != nil {
		return Duplicate, fmt.Errorf("store gate admit failed: %w", err)
	}
	if admitted {
		return Admitted, nil
	}
	return Duplicate, nil
}

func (g *StoreGate) Clear() error {
	if err := g.repo.ClearInbound(); err != nil {
		return fmt.Errorf("store gate clear failed: %w", err)
	}
	slog.Debug("StoreGate.Clear: cleared shared dedup state")
	return nil
}

// Len is not tracked for the store-backed gate.
func (g *StoreGate) Len() int {
	return -1
}
