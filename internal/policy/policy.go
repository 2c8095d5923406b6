package policy

import (
	"errors"
	"fmt"
)

// Mode selects which bounds of a Policy participate in classification.
type Mode string

const (
	// SingleUpperBound alerts when the value rises to or above Upper
	SingleUpperBound Mode = "single_upper"

	// SingleLowerBound alerts when the value falls to or below Lower
	SingleLowerBound Mode = "single_lower"

	// DualBound alerts when the value leaves the [Lower, Upper] range
	DualBound Mode = "dual"
)

// IsValid checks if the mode is a known classification mode
func (m Mode) IsValid() bool {
	switch m {
	case SingleUpperBound, SingleLowerBound, DualBound:
		return true
	default:
		return false
	}
}

// Policy is the threshold rule governing one metric's alerting behavior.
// It carries no behavior beyond validation; classification lives in Classify.
type Policy struct {
	// Metric the rule applies to (e.g. Pressure_psi)
	MetricID string `json:"metric_id" yaml:"metric_id"`

	// Which bounds participate
	Mode Mode `json:"mode" yaml:"mode"`

	// Lower bound; required for SingleLowerBound and DualBound
	Lower float64 `json:"lower,omitempty" yaml:"lower,omitempty"`

	// Upper bound; required for SingleUpperBound and DualBound
	Upper float64 `json:"upper,omitempty" yaml:"upper,omitempty"`

	// NearMargin is the "approaching threshold" band as a fraction of the
	// bound. A value beyond bound*(1±NearMargin) is Critical rather than
	// Warning. Zero disables the critical band entirely.
	NearMargin float64 `json:"near_margin" yaml:"near_margin"`
}

// Validation errors. All are ErrInvalidPolicy kinds: a malformed policy is a
// caller bug surfaced synchronously, never coerced into a best guess.
var (
	ErrInvalidPolicy   = errors.New("invalid threshold policy")
	ErrUnknownMode     = fmt.Errorf("%w: unknown mode", ErrInvalidPolicy)
	ErrMissingLower    = fmt.Errorf("%w: lower bound required for mode", ErrInvalidPolicy)
	ErrMissingUpper    = fmt.Errorf("%w: upper bound required for mode", ErrInvalidPolicy)
	ErrBoundsInverted  = fmt.Errorf("%w: lower must be less than upper", ErrInvalidPolicy)
	ErrNegativeMargin  = fmt.Errorf("%w: near margin cannot be negative", ErrInvalidPolicy)
	ErrExcessiveMargin = fmt.Errorf("%w: near margin must be below 1", ErrInvalidPolicy)
)

// DefaultNearMargin matches the 10% critical multiplier convention used for
// the dashboard's single-bound metrics.
const DefaultNearMargin = 0.10

// Validate checks the policy's bounds against its declared mode
func (p Policy) Validate() error {
	if !p.Mode.IsValid() {
		return ErrUnknownMode
	}

	switch p.Mode {
	case SingleUpperBound:
		if !p.hasUpper() {
			return ErrMissingUpper
		}
	case SingleLowerBound:
		if !p.hasLower() {
			return ErrMissingLower
		}
	case DualBound:
		if !p.hasLower() {
			return ErrMissingLower
		}
		if !p.hasUpper() {
			return ErrMissingUpper
		}
		if p.Lower >= p.Upper {
			return ErrBoundsInverted
		}
	}

	if p.NearMargin < 0 {
		return ErrNegativeMargin
	}
	if p.NearMargin >= 1 {
		return ErrExcessiveMargin
	}

	return nil
}

// A zero bound is treated as unset; no monitored metric alerts at exactly zero.
func (p Policy) hasUpper() bool { return p.Upper != 0 }

func (p Policy) hasLower() bool { return p.Lower != 0 }
