package storage

import (
	"context"
	"sync"

	"pipewatch/internal/ledger"
)

// MemoryArchiver keeps closed alert records in memory. It is the default
// archiver for local dev and tests; production embeds a durable one.
type MemoryArchiver struct {
	mu      sync.RWMutex
	records []*ledger.AlertRecord
}

// NewMemoryArchiver creates an empty in-memory archiver
func NewMemoryArchiver() *MemoryArchiver {
	return &MemoryArchiver{}
}

// Archive appends a closed record
func (m *MemoryArchiver) Archive(_ context.Context, rec *ledger.AlertRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// Archived returns the archived records in arrival order
func (m *MemoryArchiver) Archived() []*ledger.AlertRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*ledger.AlertRecord(nil), m.records...)
}

// Close is a no-op for the in-memory archiver
func (m *MemoryArchiver) Close() error { return nil }
