// Package series provides windowed views over time-ordered readings: full
// history ranges for charts and short tail windows for sparkline context.
package series

import (
	"iter"
	"sort"
	"time"

	"pipewatch/internal/models"
)

// Window returns the last count readings of the series in ascending
// timestamp order, or the whole series if it is shorter. The result is a
// restartable sequence over the input; it never mutates and an empty
// sequence is valid output.
func Window(series []models.Reading, count int) iter.Seq[models.Reading] {
	start := len(series) - count
	if count <= 0 {
		start = len(series)
	}
	if start < 0 {
		start = 0
	}

	return func(yield func(models.Reading) bool) {
		for _, r := range series[start:] {
			if !yield(r) {
				return
			}
		}
	}
}

// Range returns all readings with from <= timestamp <= to, in ascending
// timestamp order. The series must be ordered ascending by timestamp.
func Range(series []models.Reading, from, to time.Time) iter.Seq[models.Reading] {
	// Locate the first reading at or after from; the series is ordered.
	start := sort.Search(len(series), func(i int) bool {
		return !series[i].Timestamp.Before(from)
	})

	return func(yield func(models.Reading) bool) {
		for _, r := range series[start:] {
			if r.Timestamp.After(to) {
				return
			}
			if !yield(r) {
				return
			}
		}
	}
}
