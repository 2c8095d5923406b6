package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"pipewatch/internal/models"
	"pipewatch/internal/policy"
)

// Ingestion errors
var (
	// ErrOutOfOrderReading - the reading's timestamp is not after the key's
	// last processed timestamp and is not an exact duplicate. The ledger
	// assumes monotonic arrival per key; replays must be sorted by the caller.
	ErrOutOfOrderReading = errors.New("reading is out of order for its key")
)

// RecipientsFunc resolves the notification recipients for a metric.
// It is called once, at alert-open time.
type RecipientsFunc func(metricID string) []string

// entry is the per-(asset, metric) state. Never exposed directly.
type entry struct {
	lastLevel     policy.Level
	lastValue     float64
	lastTimestamp time.Time
	openAlertID   string // empty if no open alert
}

// Ledger tracks the last known status per (asset, metric) key and owns the
// lifecycle of alert records. Ingestion is serialized by an internal mutex;
// callers that want parallelism shard readings by key upstream.
type Ledger struct {
	mu      sync.RWMutex
	entries map[string]*entry
	records map[string]*AlertRecord // by record ID
	history []*AlertRecord          // creation order, never trimmed
}

// New creates an empty ledger
func New() *Ledger {
	return &Ledger{
		entries: make(map[string]*entry),
		records: make(map[string]*AlertRecord),
	}
}

// Ingest applies one reading under the given policy and returns the
// resulting transition, or nil when the key stayed Normal. Each call is
// atomic with respect to ledger state.
//
// An exact duplicate of the key's last reading (same timestamp and value)
// is absorbed as a no-op; any other non-increasing timestamp is rejected
// with ErrOutOfOrderReading before any state changes.
func (l *Ledger) Ingest(reading *models.Reading, p policy.Policy, recipients RecipientsFunc) (*Transition, error) {
	newLevel, err := policy.Classify(reading.Value, p)
	if err != nil {
		return nil, err
	}

	key := reading.Key()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, seen := l.entries[key]
	if !seen {
		e = &entry{}
		l.entries[key] = e
	} else if !reading.Timestamp.After(e.lastTimestamp) {
		if reading.Timestamp.Equal(e.lastTimestamp) && reading.Value == e.lastValue {
			return nil, nil // already processed, idempotent
		}
		return nil, fmt.Errorf("%w: %s at %s", ErrOutOfOrderReading, key, reading.Timestamp.Format(time.RFC3339))
	}

	prevLevel := e.lastLevel
	prevValue := e.lastValue
	e.lastLevel = newLevel
	e.lastValue = reading.Value
	e.lastTimestamp = reading.Timestamp

	switch {
	case !prevLevel.Breached() && newLevel.Breached():
		return l.open(e, reading, p, newLevel, prevValue, recipients), nil
	case prevLevel.Breached() && newLevel.Breached():
		return l.update(e, reading, newLevel), nil
	case prevLevel.Breached() && !newLevel.Breached():
		return l.close(e, reading, newLevel), nil
	default:
		return nil, nil // Normal -> Normal
	}
}

func (l *Ledger) open(e *entry, reading *models.Reading, p policy.Policy, level policy.Level, prevValue float64, recipients RecipientsFunc) *Transition {
	rec := &AlertRecord{
		ID:            uuid.New().String(),
		AssetID:       reading.AssetID,
		MetricID:      reading.MetricID,
		OpenedAt:      reading.Timestamp,
		PeakValue:     reading.Value,
		PeakLevel:     level,
		PreviousValue: prevValue,
		LastValue:     reading.Value,
		LastTimestamp: reading.Timestamp,
		Threshold:     p,
	}
	if recipients != nil {
		rec.Recipients = dedupe(recipients(reading.MetricID))
	}

	e.openAlertID = rec.ID
	l.records[rec.ID] = rec
	l.history = append(l.history, rec)

	return &Transition{
		Kind:      TransitionOpened,
		Level:     level,
		Value:     reading.Value,
		Timestamp: reading.Timestamp,
		Record:    rec.clone(),
	}
}

func (l *Ledger) update(e *entry, reading *models.Reading, level policy.Level) *Transition {
	rec := l.records[e.openAlertID]

	// Monotonic worst-case tracking: peaks move only when the new level is
	// at least as bad as the recorded peak.
	if level >= rec.PeakLevel {
		rec.PeakLevel = level
		rec.PeakValue = reading.Value
	}
	rec.LastValue = reading.Value
	rec.LastTimestamp = reading.Timestamp

	return &Transition{
		Kind:      TransitionUpdated,
		Level:     level,
		Value:     reading.Value,
		Timestamp: reading.Timestamp,
		Record:    rec.clone(),
	}
}

func (l *Ledger) close(e *entry, reading *models.Reading, level policy.Level) *Transition {
	rec := l.records[e.openAlertID]
	closedAt := reading.Timestamp
	rec.ClosedAt = &closedAt
	rec.LastValue = reading.Value
	rec.LastTimestamp = reading.Timestamp
	e.openAlertID = ""

	return &Transition{
		Kind:      TransitionClosed,
		Level:     level,
		Value:     reading.Value,
		Timestamp: reading.Timestamp,
		Record:    rec.clone(),
	}
}

// Record returns a copy of the record with the given ID
func (l *Ledger) Record(id string) (*AlertRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.records[id]
	if !ok {
		return nil, false
	}
	return rec.clone(), true
}

// Records returns copies of all records, most recently opened first
func (l *Ledger) Records() []*AlertRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*AlertRecord, 0, len(l.history))
	for _, rec := range l.history {
		out = append(out, rec.clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OpenedAt.After(out[j].OpenedAt)
	})
	return out
}

// OpenCount returns the number of currently open alerts
func (l *Ledger) OpenCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := 0
	for _, e := range l.entries {
		if e.openAlertID != "" {
			n++
		}
	}
	return n
}

// Status returns the last classified level for a key, and whether the key
// has been seen at all
func (l *Ledger) Status(assetID, metricID string) (policy.Level, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.entries[assetID+"/"+metricID]
	if !ok {
		return policy.Normal, false
	}
	return e.lastLevel, true
}

// dedupe copies and sorts a recipient list, dropping duplicates and blanks
func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, r := range in {
		if r == "" {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
