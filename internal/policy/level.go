package policy

import "errors"

// ErrUnknownLevel reports an unrecognized status label
var ErrUnknownLevel = errors.New("unknown status level")

// Level is the discrete status a reading classifies to.
// Levels are totally ordered: Normal < Warning < Critical.
type Level int

const (
	Normal Level = iota
	Warning
	Critical
)

// String returns the upper-case label used across the dashboard and in alerts
func (l Level) String() string {
	switch l {
	case Warning:
		return "WARNING"
	case Critical:
		return "CRITICAL"
	default:
		return "NORMAL"
	}
}

// Breached reports whether the level represents a threshold breach
func (l Level) Breached() bool {
	return l != Normal
}

// Worst returns the worse of two levels under the total order
func Worst(a, b Level) Level {
	if a >= b {
		return a
	}
	return b
}

// ParseLevel maps a label back to a Level; unknown labels report ok=false
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "NORMAL":
		return Normal, true
	case "WARNING":
		return Warning, true
	case "CRITICAL":
		return Critical, true
	default:
		return Normal, false
	}
}

// MarshalText implements encoding.TextMarshaler so levels serialize as labels
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (l *Level) UnmarshalText(text []byte) error {
	parsed, ok := ParseLevel(string(text))
	if !ok {
		return ErrUnknownLevel
	}
	*l = parsed
	return nil
}
