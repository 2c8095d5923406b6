package series

import (
	"sort"
	"sync"

	"pipewatch/internal/models"
)

// DefaultStoreLimit bounds the per-key history kept in memory. Charts never
// ask for more than a day of readings; durable history is the embedding
// system's concern.
const DefaultStoreLimit = 2048

// Store keeps a bounded, time-ordered reading history per (asset, metric)
// key for chart and sparkline queries. Appends enforce per-key monotonic
// order, the same invariant the ledger enforces: a reading whose timestamp
// is not after the key's last stored timestamp is dropped, so Window and
// Range always see an ascending series.
type Store struct {
	mu     sync.RWMutex
	limit  int
	series map[string][]models.Reading
}

// NewStore creates a store keeping at most limit readings per key
func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = DefaultStoreLimit
	}
	return &Store{
		limit:  limit,
		series: make(map[string][]models.Reading),
	}
}

// Append records a reading, evicting the oldest when the key is at
// capacity. Out-of-order and duplicate-timestamp readings are dropped.
func (s *Store) Append(r models.Reading) {
	key := r.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	buf := s.series[key]
	if n := len(buf); n > 0 && !r.Timestamp.After(buf[n-1].Timestamp) {
		return
	}
	buf = append(buf, r)
	if len(buf) > s.limit {
		buf = buf[len(buf)-s.limit:]
	}
	s.series[key] = buf
}

// Snapshot returns a copy of the key's history in ascending timestamp
// order, safe for concurrent iteration
func (s *Store) Snapshot(assetID, metricID string) []models.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buf := s.series[assetID+"/"+metricID]
	return append([]models.Reading(nil), buf...)
}

// Len returns the number of readings held for a key
func (s *Store) Len(assetID, metricID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series[assetID+"/"+metricID])
}

// Keys lists the (asset, metric) keys with recorded history, sorted
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.series))
	for key := range s.series {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
