package policy

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownMetric - a reading arrived for a metric with no registered policy
var ErrUnknownMetric = errors.New("no policy registered for metric")

// Registry holds the threshold policy and notification recipients per
// metric. It replaces the dashboard's page-local threshold state: explicit
// configuration handed to the evaluators, no process-wide singleton.
type Registry struct {
	mu         sync.RWMutex
	policies   map[string]Policy
	recipients map[string][]string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		policies:   make(map[string]Policy),
		recipients: make(map[string][]string),
	}
}

// Register validates and stores a policy, replacing any previous policy for
// the metric. Open alerts keep their snapshot of the old values.
func (r *Registry) Register(p Policy) error {
	if p.MetricID == "" {
		return fmt.Errorf("%w: empty metric ID", ErrInvalidPolicy)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("policy for %s: %w", p.MetricID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[p.MetricID] = p
	return nil
}

// SetRecipients stores the notification recipients for a metric
func (r *Registry) SetRecipients(metricID string, addrs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recipients[metricID] = append([]string(nil), addrs...)
}

// Lookup returns the policy for a metric, or ErrUnknownMetric
func (r *Registry) Lookup(metricID string) (Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.policies[metricID]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %s", ErrUnknownMetric, metricID)
	}
	return p, nil
}

// Recipients returns the recipient list for a metric; empty when none set
func (r *Registry) Recipients(metricID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.recipients[metricID]...)
}

// Metrics lists the registered metric IDs in sorted order
func (r *Registry) Metrics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.policies))
	for id := range r.policies {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
