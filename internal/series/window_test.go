package series_test

import (
	"testing"
	"time"

	"pipewatch/internal/models"
	"pipewatch/internal/series"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func makeSeries(values ...float64) []models.Reading {
	out := make([]models.Reading, 0, len(values))
	for i, v := range values {
		out = append(out, models.Reading{
			AssetID:   "P-102",
			MetricID:  "Pressure_psi",
			Timestamp: t0.Add(time.Duration(i) * time.Minute),
			Value:     v,
		})
	}
	return out
}

func collect(seq func(func(models.Reading) bool)) []float64 {
	var out []float64
	seq(func(r models.Reading) bool {
		out = append(out, r.Value)
		return true
	})
	return out
}

func assertValues(t *testing.T, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("values = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("values[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestWindow(t *testing.T) {
	s := makeSeries(10, 20, 30, 40, 50)

	tests := []struct {
		name  string
		count int
		want  []float64
	}{
		{"tail shorter than series", 3, []float64{30, 40, 50}},
		{"count equals length", 5, []float64{10, 20, 30, 40, 50}},
		{"count exceeds length", 10, []float64{10, 20, 30, 40, 50}},
		{"single", 1, []float64{50}},
		{"zero count", 0, nil},
		{"negative count", -2, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertValues(t, collect(series.Window(s, tt.count)), tt.want)
		})
	}
}

func TestWindowEmptySeries(t *testing.T) {
	assertValues(t, collect(series.Window(nil, 5)), nil)
}

func TestWindowRestartable(t *testing.T) {
	seq := series.Window(makeSeries(1, 2, 3), 2)
	first := collect(seq)
	second := collect(seq)
	assertValues(t, first, []float64{2, 3})
	assertValues(t, second, []float64{2, 3})
}

func TestWindowEarlyStop(t *testing.T) {
	seq := series.Window(makeSeries(1, 2, 3, 4), 4)
	var got []float64
	seq(func(r models.Reading) bool {
		got = append(got, r.Value)
		return len(got) < 2
	})
	assertValues(t, got, []float64{1, 2})
}

func TestRange(t *testing.T) {
	s := makeSeries(10, 20, 30, 40, 50) // timestamps t0 .. t0+4m

	tests := []struct {
		name     string
		from, to time.Time
		want     []float64
	}{
		{"interior window", t0.Add(time.Minute), t0.Add(3 * time.Minute), []float64{20, 30, 40}},
		{"bounds are inclusive", t0, t0.Add(4 * time.Minute), []float64{10, 20, 30, 40, 50}},
		{"single instant", t0.Add(2 * time.Minute), t0.Add(2 * time.Minute), []float64{30}},
		{"before the series", t0.Add(-time.Hour), t0.Add(-time.Minute), nil},
		{"after the series", t0.Add(time.Hour), t0.Add(2 * time.Hour), nil},
		{"inverted window", t0.Add(3 * time.Minute), t0.Add(time.Minute), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertValues(t, collect(series.Range(s, tt.from, tt.to)), tt.want)
		})
	}
}

func TestStoreAppendAndSnapshot(t *testing.T) {
	st := series.NewStore(0) // default limit
	for _, r := range makeSeries(10, 20, 30) {
		st.Append(r)
	}

	snap := st.Snapshot("P-102", "Pressure_psi")
	if len(snap) != 3 {
		t.Fatalf("len(Snapshot()) = %d, want 3", len(snap))
	}
	if snap[0].Value != 10 || snap[2].Value != 30 {
		t.Errorf("Snapshot() values = %v, %v; want 10, 30", snap[0].Value, snap[2].Value)
	}

	// Snapshot is a copy
	snap[0].Value = 999
	if st.Snapshot("P-102", "Pressure_psi")[0].Value == 999 {
		t.Error("mutating a snapshot changed store state")
	}

	if st.Len("P-102", "Pressure_psi") != 3 {
		t.Errorf("Len() = %d, want 3", st.Len("P-102", "Pressure_psi"))
	}
	if st.Len("P-999", "Pressure_psi") != 0 {
		t.Error("Len() for unseen key should be 0")
	}
}

func TestStoreEvictsOldest(t *testing.T) {
	st := series.NewStore(3)
	for _, r := range makeSeries(1, 2, 3, 4, 5) {
		st.Append(r)
	}

	snap := st.Snapshot("P-102", "Pressure_psi")
	assertValuesFromReadings(t, snap, []float64{3, 4, 5})
}

func assertValuesFromReadings(t *testing.T, got []models.Reading, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Value != want[i] {
			t.Errorf("[%d].Value = %v, want %v", i, got[i].Value, want[i])
		}
	}
}

// The store guarantees ascending order per key; readings that would break
// it are dropped rather than recorded out of place.
func TestStoreDropsNonIncreasingTimestamps(t *testing.T) {
	st := series.NewStore(10)
	s := makeSeries(10, 20, 30) // t0, t0+1m, t0+2m

	st.Append(s[2])
	st.Append(s[1]) // older, dropped
	dup := s[2]
	dup.Value = 99 // same timestamp, dropped
	st.Append(dup)

	snap := st.Snapshot("P-102", "Pressure_psi")
	assertValuesFromReadings(t, snap, []float64{30})
	for i := 1; i < len(snap); i++ {
		if snap[i].Timestamp.Before(snap[i-1].Timestamp) {
			t.Errorf("snapshot unsorted at %d", i)
		}
	}
}

func TestStoreKeys(t *testing.T) {
	st := series.NewStore(10)
	a := makeSeries(1)[0]
	b := a
	b.AssetID = "P-205"
	c := a
	c.MetricID = "Temperature_C"

	st.Append(b)
	st.Append(a)
	st.Append(c)

	got := st.Keys()
	want := []string{"P-102/Pressure_psi", "P-102/Temperature_C", "P-205/Pressure_psi"}
	if len(got) != len(want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Keys()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
