package models

import (
	"errors"
	"math"
	"time"
)

// Reading is a single timestamped measurement for one metric of one asset.
// Readings are immutable once recorded; Timestamp is the only ordering key,
// with ties broken by arrival order.
type Reading struct {
	// Asset that produced the measurement (e.g. PUMP-402, SCADA-101)
	AssetID string `json:"asset_id"`

	// Metric kind being measured (e.g. Pressure_psi, Temperature_C)
	MetricID string `json:"metric_id"`

	// Timestamp when the measurement was taken
	Timestamp time.Time `json:"timestamp"`

	// Measured value
	Value float64 `json:"value"`
}

// Validation errors
var (
	ErrEmptyAssetID     = errors.New("reading asset ID cannot be empty")
	ErrEmptyMetricID    = errors.New("reading metric ID cannot be empty")
	ErrZeroTimestamp    = errors.New("timestamp cannot be zero")
	ErrFutureTimestamp  = errors.New("timestamp cannot be in the future")
	ErrInvalidTimestamp = errors.New("invalid timestamp format")
	ErrNonFiniteValue   = errors.New("value must be a finite number")
)

// Validate checks that the Reading has all required fields and valid values
func (r *Reading) Validate() error {
	if r.AssetID == "" {
		return ErrEmptyAssetID
	}

	if r.MetricID == "" {
		return ErrEmptyMetricID
	}

	if r.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}

	if r.Timestamp.After(time.Now().Add(time.Minute)) {
		return ErrFutureTimestamp
	}

	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return ErrNonFiniteValue
	}

	return nil
}

// Key returns the ledger key for the reading, "assetID/metricID".
func (r *Reading) Key() string {
	return r.AssetID + "/" + r.MetricID
}
