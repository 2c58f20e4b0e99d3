// Package memory provides in-process persistence and audit collaborators for
// dry runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/eventrank/internal/domain"
)

// Store keeps scored records in a map keyed by external ID.
type Store struct {
	mu      sync.RWMutex
	records map[string]domain.ScoredRecord
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{records: make(map[string]domain.ScoredRecord)}
}

// Upsert inserts or replaces the record with the same external ID.
func (s *Store) Upsert(_ context.Context, record domain.ScoredRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ExternalID] = record
	return nil
}

// DeleteOlderThan removes records starting before cutoff.
func (s *Store) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, r := range s.records {
		if r.StartDateTime.Before(cutoff) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Get returns the record with the given external ID.
func (s *Store) Get(id string) (domain.ScoredRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	return r, ok
}

// Records returns a snapshot ordered by start time, then external ID.
func (s *Store) Records() []domain.ScoredRecord {
	s.mu.RLock()
	out := make([]domain.ScoredRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDateTime.Equal(out[j].StartDateTime) {
			return out[i].StartDateTime.Before(out[j].StartDateTime)
		}
		return out[i].ExternalID < out[j].ExternalID
	})
	return out
}

// Top returns the highest-scoring records for p that start at or after from.
func (s *Store) Top(_ context.Context, p domain.AudienceProfile, from time.Time, limit int) ([]domain.ScoredRecord, error) {
	var out []domain.ScoredRecord
	for _, r := range s.Records() {
		if !r.StartDateTime.Before(from) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score(p) > out[j].Score(p)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AuditLog is an append-only in-memory audit sink.
type AuditLog struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

// Append records one audit entry.
func (a *AuditLog) Append(_ context.Context, entry domain.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

// Entries returns a copy of every entry in append order.
func (a *AuditLog) Entries() []domain.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.AuditEntry, len(a.entries))
	copy(out, a.entries)
	return out
}
