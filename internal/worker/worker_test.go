package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"pipewatch/internal/ledger"
	"pipewatch/internal/models"
	"pipewatch/internal/policy"
	"pipewatch/internal/series"
	"pipewatch/internal/storage"
	"pipewatch/internal/worker"
)

// capturePublisher collects published transitions for assertions
type capturePublisher struct {
	mu          sync.Mutex
	transitions []*ledger.Transition
}

func (c *capturePublisher) Publish(_ context.Context, tr *ledger.Transition) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transitions = append(c.transitions, tr)
	return nil
}

func (c *capturePublisher) all() []*ledger.Transition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*ledger.Transition(nil), c.transitions...)
}

type poolFixture struct {
	pool      *worker.Pool
	publisher *capturePublisher
	ledger    *ledger.Ledger
	store     *series.Store
	archiver  *storage.MemoryArchiver
}

func newPoolFixture(t *testing.T, workers int) *poolFixture {
	t.Helper()

	registry := policy.NewRegistry()
	err := registry.Register(policy.Policy{
		MetricID:   "Pressure_psi",
		Mode:       policy.DualBound,
		Lower:      40,
		Upper:      80,
		NearMargin: 0.05,
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	registry.SetRecipients("Pressure_psi", []string{"ops@company.com"})

	f := &poolFixture{
		publisher: &capturePublisher{},
		ledger:    ledger.New(),
		store:     series.NewStore(128),
		archiver:  storage.NewMemoryArchiver(),
	}
	f.pool = worker.NewPool(worker.Config{
		Publisher: f.publisher,
		Ledger:    f.ledger,
		Registry:  registry,
		Store:     f.store,
		Archiver:  f.archiver,
		Workers:   workers,
		QueueSize: 64,
	})
	return f
}

func envelope(assetID, metricID string, value float64, offset time.Duration) *models.Envelope {
	r := &models.Reading{
		AssetID:   assetID,
		MetricID:  metricID,
		Timestamp: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC).Add(offset),
		Value:     value,
	}
	return models.NewEnvelope(r, "test-node")
}

func TestPoolEvaluatesAndPublishes(t *testing.T) {
	f := newPoolFixture(t, 2)
	f.pool.Start()

	envelopes := []*models.Envelope{
		envelope("P-102", "Pressure_psi", 60, 0),             // normal
		envelope("P-102", "Pressure_psi", 90, time.Minute),   // opens Critical
		envelope("P-102", "Pressure_psi", 82, 2*time.Minute), // updates at Warning
		envelope("P-102", "Pressure_psi", 55, 3*time.Minute), // closes
	}
	for _, env := range envelopes {
		if !f.pool.Submit(env) {
			t.Fatalf("Submit(%v) rejected", env.Reading.Value)
		}
	}

	// Stop drains the shards before returning, so all submissions are applied
	f.pool.Stop()

	transitions := f.publisher.all()
	if len(transitions) != 3 {
		t.Fatalf("published %d transitions, want 3", len(transitions))
	}
	wantKinds := []ledger.TransitionKind{ledger.TransitionOpened, ledger.TransitionUpdated, ledger.TransitionClosed}
	for i, want := range wantKinds {
		if transitions[i].Kind != want {
			t.Errorf("transitions[%d].Kind = %v, want %v", i, transitions[i].Kind, want)
		}
	}
	if transitions[0].Level != policy.Critical {
		t.Errorf("open level = %v, want CRITICAL", transitions[0].Level)
	}
	if got := transitions[0].Record.Recipients; len(got) != 1 || got[0] != "ops@company.com" {
		t.Errorf("recipients = %v, want [ops@company.com]", got)
	}

	stats := f.pool.Stats()
	if stats.Processed != 4 || stats.Failed != 0 {
		t.Errorf("Stats() = %+v, want 4 processed", stats)
	}
	if f.store.Len("P-102", "Pressure_psi") != 4 {
		t.Errorf("store holds %d readings, want 4", f.store.Len("P-102", "Pressure_psi"))
	}
}

func TestPoolArchivesClosedAlerts(t *testing.T) {
	f := newPoolFixture(t, 1)
	f.pool.Start()

	f.pool.Submit(envelope("P-102", "Pressure_psi", 90, 0))
	f.pool.Submit(envelope("P-102", "Pressure_psi", 60, time.Minute))
	f.pool.Stop()

	archived := f.archiver.Archived()
	if len(archived) != 1 {
		t.Fatalf("archived %d records, want 1", len(archived))
	}
	if !archived[0].Closed() {
		t.Error("archived record should be closed")
	}
	if archived[0].PeakLevel != policy.Critical {
		t.Errorf("archived peak = %v, want CRITICAL", archived[0].PeakLevel)
	}
}

// Readings for the same key land on the same shard regardless of worker
// count, so per-key timestamp order survives parallel evaluation.
func TestPoolPerKeyOrdering(t *testing.T) {
	f := newPoolFixture(t, 8)
	f.pool.Start()

	const n = 50
	for i := 0; i < n; i++ {
		// Alternate breach and recovery so every pair emits transitions
		value := 60.0
		if i%2 == 1 {
			value = 90.0
		}
		if !f.pool.Submit(envelope("P-102", "Pressure_psi", value, time.Duration(i)*time.Second)) {
			t.Fatalf("Submit() rejected at %d", i)
		}
	}
	f.pool.Stop()

	if stats := f.pool.Stats(); stats.Failed != 0 {
		t.Fatalf("Stats() = %+v, out-of-order rejections mean shard routing broke", stats)
	}

	transitions := f.publisher.all()
	var last time.Time
	for i, tr := range transitions {
		if tr.Timestamp.Before(last) {
			t.Fatalf("transition %d out of order: %v before %v", i, tr.Timestamp, last)
		}
		last = tr.Timestamp
	}
}

func TestPoolUnknownMetricDropped(t *testing.T) {
	f := newPoolFixture(t, 1)
	f.pool.Start()

	f.pool.Submit(envelope("P-102", "Vibration_mm_s", 12, 0))
	f.pool.Stop()

	stats := f.pool.Stats()
	if stats.Failed != 1 || stats.Processed != 0 {
		t.Errorf("Stats() = %+v, want 1 failed", stats)
	}
	if len(f.publisher.all()) != 0 {
		t.Error("unknown metric must not publish transitions")
	}
	if f.store.Len("P-102", "Vibration_mm_s") != 0 {
		t.Error("unpoliced metric must not be recorded in the series store")
	}
}

// Readings the ledger rejects must not reach the series store, or the
// store's ascending-timestamp ordering (and every Range/Window over it)
// breaks after a single bad reading.
func TestPoolRejectedReadingsNotStored(t *testing.T) {
	f := newPoolFixture(t, 1)
	f.pool.Start()

	f.pool.Submit(envelope("P-102", "Pressure_psi", 60, 2*time.Minute))
	f.pool.Submit(envelope("P-102", "Pressure_psi", 61, time.Minute))   // out of order
	f.pool.Submit(envelope("P-102", "Pressure_psi", 62, 2*time.Minute)) // same ts, new value
	f.pool.Stop()

	if stats := f.pool.Stats(); stats.Processed != 1 || stats.Failed != 2 {
		t.Fatalf("Stats() = %+v, want 1 processed and 2 failed", stats)
	}

	snapshot := f.store.Snapshot("P-102", "Pressure_psi")
	if len(snapshot) != 1 {
		t.Fatalf("store holds %d readings, want only the accepted one", len(snapshot))
	}
	if snapshot[0].Value != 60 {
		t.Errorf("stored value = %v, want 60", snapshot[0].Value)
	}
	for i := 1; i < len(snapshot); i++ {
		if snapshot[i].Timestamp.Before(snapshot[i-1].Timestamp) {
			t.Errorf("store unsorted at %d: %v before %v", i, snapshot[i].Timestamp, snapshot[i-1].Timestamp)
		}
	}
}

// A duplicate of the key's last reading is absorbed by the ledger as a
// no-op; it must not be recorded twice either.
func TestPoolDuplicateReadingStoredOnce(t *testing.T) {
	f := newPoolFixture(t, 1)
	f.pool.Start()

	f.pool.Submit(envelope("P-102", "Pressure_psi", 60, 0))
	f.pool.Submit(envelope("P-102", "Pressure_psi", 60, 0))
	f.pool.Stop()

	if got := f.store.Len("P-102", "Pressure_psi"); got != 1 {
		t.Errorf("store holds %d readings, want 1", got)
	}
}

func TestPoolSubmitDuringStop(t *testing.T) {
	for i := 0; i < 50; i++ {
		f := newPoolFixture(t, 2)
		f.pool.Start()

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					// Submit must refuse, never panic, once Stop has run
					f.pool.Submit(envelope("P-102", "Pressure_psi", 60, time.Duration(g*100+j)*time.Second))
				}
			}(g)
		}

		f.pool.Stop()
		wg.Wait()
	}
}

func TestPoolSubmitAfterStop(t *testing.T) {
	f := newPoolFixture(t, 1)
	f.pool.Start()
	f.pool.Stop()

	if f.pool.Submit(envelope("P-102", "Pressure_psi", 60, 0)) {
		t.Error("Submit() after Stop() should report false")
	}
}

func TestPoolSubmitFullQueue(t *testing.T) {
	// Pool never started: queued envelopes are not drained
	registry := policy.NewRegistry()
	pool := worker.NewPool(worker.Config{
		Ledger:    ledger.New(),
		Registry:  registry,
		Workers:   1,
		QueueSize: 2,
	})

	if !pool.Submit(envelope("P-102", "Pressure_psi", 60, 0)) {
		t.Fatal("first Submit() rejected")
	}
	if !pool.Submit(envelope("P-102", "Pressure_psi", 61, time.Second)) {
		t.Fatal("second Submit() rejected")
	}
	if pool.Submit(envelope("P-102", "Pressure_psi", 62, 2*time.Second)) {
		t.Error("Submit() into a full shard should report false")
	}
}
