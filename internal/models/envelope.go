package models

import (
	"time"
)

// Envelope wraps a Reading with internal metadata for processing
type Envelope struct {
	// Original reading
	Reading *Reading `json:"reading"`

	// Internal processing metadata
	ReceivedAt   time.Time `json:"received_at"`
	IngestNode   string    `json:"ingest_node"`
	BatchID      string    `json:"batch_id,omitempty"`
	BatchIndex   int       `json:"batch_index,omitempty"`
	PartitionKey string    `json:"partition_key"`
}

// NewEnvelope creates a new envelope wrapping a reading
func NewEnvelope(reading *Reading, ingestNode string) *Envelope {
	return &Envelope{
		Reading:      reading,
		ReceivedAt:   time.Now().UTC(),
		IngestNode:   ingestNode,
		PartitionKey: reading.Key(), // partition by (asset, metric) for per-key ordering
	}
}

// WithBatch sets batch metadata on the envelope
func (e *Envelope) WithBatch(batchID string, index int) *Envelope {
	e.BatchID = batchID
	e.BatchIndex = index
	return e
}
