package ledger

import (
	"time"

	"pipewatch/internal/policy"
)

// AlertRecord is one threshold-breach episode for an (asset, metric) key.
// The ledger creates, mutates, and closes records; everything else reads.
type AlertRecord struct {
	// Opaque identifier assigned on creation
	ID string `json:"id"`

	AssetID  string `json:"asset_id"`
	MetricID string `json:"metric_id"`

	// Breach window. ClosedAt is nil while the alert is open; once set the
	// record is immutable and retained for history.
	OpenedAt time.Time  `json:"opened_at"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`

	// Worst level and the value observed at it. Tracking is monotonic:
	// peaks only move when the new level is at least the current peak.
	PeakValue float64      `json:"peak_value"`
	PeakLevel policy.Level `json:"peak_level"`

	// Last value seen before the record opened, for previous/current display
	PreviousValue float64 `json:"previous_value"`

	// Most recent breaching observation
	LastValue     float64   `json:"last_value"`
	LastTimestamp time.Time `json:"last_timestamp"`

	// Policy values in effect when the record opened. Policies may change
	// later; the snapshot is what the alert was judged against.
	Threshold policy.Policy `json:"threshold"`

	// Notification recipients, resolved once at open time
	Recipients []string `json:"recipients"`
}

// Closed reports whether the breach episode has ended
func (r *AlertRecord) Closed() bool {
	return r.ClosedAt != nil
}

// CurrentLevel is the record's level for filtering: the peak while open,
// Normal once closed (a closed record means the key returned to Normal).
func (r *AlertRecord) CurrentLevel() policy.Level {
	if r.Closed() {
		return policy.Normal
	}
	return r.PeakLevel
}

// clone returns a deep copy so callers can never mutate ledger state
func (r *AlertRecord) clone() *AlertRecord {
	cp := *r
	if r.ClosedAt != nil {
		closed := *r.ClosedAt
		cp.ClosedAt = &closed
	}
	cp.Recipients = append([]string(nil), r.Recipients...)
	return &cp
}

// TransitionKind labels what the ledger did with a reading
type TransitionKind string

const (
	// TransitionOpened - a key went from Normal to breached
	TransitionOpened TransitionKind = "OPENED"

	// TransitionUpdated - a breached key stayed breached
	TransitionUpdated TransitionKind = "UPDATED"

	// TransitionClosed - a breached key returned to Normal
	TransitionClosed TransitionKind = "CLOSED"
)

// Transition is the event emitted for a status change, carrying the full
// record so a notification dispatcher can act without reading the ledger.
type Transition struct {
	Kind TransitionKind `json:"kind"`

	// Level the triggering reading classified to
	Level policy.Level `json:"level"`

	// Value and timestamp of the triggering reading
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`

	// Snapshot of the record after the transition applied
	Record *AlertRecord `json:"record"`
}
