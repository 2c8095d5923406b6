package worker

import (
	"context"
	"errors"
	"hash/fnv"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"pipewatch/internal/ledger"
	"pipewatch/internal/logger"
	"pipewatch/internal/metrics"
	"pipewatch/internal/models"
	"pipewatch/internal/policy"
	"pipewatch/internal/series"
	"pipewatch/internal/storage"
)

// TransitionPublisher hands alert transitions to the dispatch collaborator
type TransitionPublisher interface {
	Publish(ctx context.Context, tr *ledger.Transition) error
}

// Pool evaluates readings against the ledger. Each reading is routed to a
// shard by its partition key, so ingestion for one (asset, metric) key is
// always serialized on a single goroutine while distinct keys evaluate in
// parallel. This is what lets the ledger's monotonic-timestamp and
// one-open-record invariants hold without cross-worker coordination.
type Pool struct {
	publisher TransitionPublisher
	ledger    *ledger.Ledger
	registry  *policy.Registry
	store     *series.Store
	archiver  storage.Archiver

	shards    []chan *models.Envelope
	queueSize int

	// Guards shard sends against Stop closing the channels: Submit holds
	// the read side for the duration of its send, Stop takes the write
	// side before closing.
	stopMu sync.RWMutex

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	// Metrics
	processed atomic.Uint64
	failed    atomic.Uint64
}

// Config holds worker pool configuration
type Config struct {
	Publisher TransitionPublisher
	Ledger    *ledger.Ledger
	Registry  *policy.Registry
	Store     *series.Store
	Archiver  storage.Archiver
	Workers   int
	QueueSize int
}

// NewPool creates a new worker pool
func NewPool(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}

	ctx, cancel := context.WithCancel(context.Background())

	shards := make([]chan *models.Envelope, cfg.Workers)
	for i := range shards {
		shards[i] = make(chan *models.Envelope, cfg.QueueSize)
	}

	return &Pool{
		publisher: cfg.Publisher,
		ledger:    cfg.Ledger,
		registry:  cfg.Registry,
		store:     cfg.Store,
		archiver:  cfg.Archiver,
		shards:    shards,
		queueSize: cfg.QueueSize,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins evaluating readings
func (p *Pool) Start() {
	log := logger.WithComponent("worker_pool")
	log.Info().
		Int("workers", len(p.shards)).
		Int("queue_size", p.queueSize).
		Msg("starting worker pool")

	metrics.WorkerQueueCapacity.Set(float64(p.queueSize))

	for i := range p.shards {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Submit routes an envelope to its key's shard without blocking. It reports
// false when the shard queue is full or the pool is stopped; the caller
// owns backpressure on the reading stream.
func (p *Pool) Submit(envelope *models.Envelope) bool {
	p.stopMu.RLock()
	defer p.stopMu.RUnlock()

	if p.closed.Load() {
		return false
	}

	shard := p.shardFor(envelope.PartitionKey)
	select {
	case p.shards[shard] <- envelope:
		return true
	default:
		return false
	}
}

// Stop closes the shard queues, drains them, and waits for workers to exit
func (p *Pool) Stop() {
	p.stopMu.Lock()
	if p.closed.Swap(true) {
		p.stopMu.Unlock()
		return
	}
	for _, shard := range p.shards {
		close(shard)
	}
	p.stopMu.Unlock()

	log := logger.WithComponent("worker_pool")
	log.Info().Msg("stopping worker pool")
	p.wg.Wait()
	p.cancel()
	log.Info().Msg("worker pool stopped")
}

// shardFor maps a partition key to a shard index
func (p *Pool) shardFor(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(p.shards)))
}

// worker drains one shard
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	log := logger.WithComponent("worker").With().Int("worker_id", id).Logger()
	shardLabel := strconv.Itoa(id)

	// Panic recovery
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			log.Error().
				Interface("panic", r).
				Bytes("stack", stack).
				Msg("worker panic recovered")
			metrics.PanicsRecovered.WithLabelValues("worker").Inc()
		}
	}()

	log.Info().Msg("worker started")
	defer log.Info().Msg("worker stopped")

	for envelope := range p.shards[id] {
		metrics.WorkerQueueSize.WithLabelValues(shardLabel).Set(float64(len(p.shards[id])))
		p.evaluate(log, envelope)
	}
}

// evaluate runs one reading through the ledger and publishes any transition
func (p *Pool) evaluate(log zerolog.Logger, envelope *models.Envelope) {
	reading := envelope.Reading

	pol, err := p.registry.Lookup(reading.MetricID)
	if err != nil {
		log.Warn().
			Str("metric_id", reading.MetricID).
			Msg("no policy for metric, reading dropped")
		metrics.EvaluationErrorsTotal.WithLabelValues("unknown_metric").Inc()
		metrics.WorkerFailedTotal.Inc()
		p.failed.Add(1)
		return
	}

	tr, err := p.ledger.Ingest(reading, pol, p.registry.Recipients)
	if err != nil {
		reason := "invalid_policy"
		if errors.Is(err, ledger.ErrOutOfOrderReading) {
			reason = "out_of_order"
		}
		log.Warn().
			Err(err).
			Str("asset_id", reading.AssetID).
			Str("metric_id", reading.MetricID).
			Msg("ledger rejected reading")
		metrics.EvaluationErrorsTotal.WithLabelValues(reason).Inc()
		metrics.WorkerFailedTotal.Inc()
		p.failed.Add(1)
		return
	}

	// Record history only for readings the ledger accepted; a rejected
	// reading would break the store's ascending-timestamp ordering.
	if p.store != nil {
		p.store.Append(*reading)
	}

	p.processed.Add(1)
	metrics.WorkerProcessedTotal.Inc()

	level := policy.Normal
	if tr != nil {
		level = tr.Level
	}
	metrics.ReadingsEvaluatedTotal.WithLabelValues(level.String()).Inc()

	if tr == nil {
		return
	}

	metrics.AlertTransitionsTotal.WithLabelValues(string(tr.Kind)).Inc()
	metrics.OpenAlerts.Set(float64(p.ledger.OpenCount()))

	log.Info().
		Str("transition", string(tr.Kind)).
		Str("alert_id", tr.Record.ID).
		Str("asset_id", tr.Record.AssetID).
		Str("metric_id", tr.Record.MetricID).
		Str("level", tr.Level.String()).
		Float64("value", tr.Value).
		Msg("alert transition")

	if p.publisher != nil {
		ctx, cancel := context.WithTimeout(p.ctx, 10*time.Second)
		err := p.publisher.Publish(ctx, tr)
		cancel()
		if err != nil {
			log.Error().
				Err(err).
				Str("alert_id", tr.Record.ID).
				Msg("failed to publish transition")
		}
	}

	if tr.Kind == ledger.TransitionClosed && p.archiver != nil {
		if err := p.archiver.Archive(p.ctx, tr.Record); err != nil {
			log.Error().
				Err(err).
				Str("alert_id", tr.Record.ID).
				Msg("failed to archive closed alert")
		}
	}
}

// Stats returns worker pool statistics
func (p *Pool) Stats() Stats {
	return Stats{
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
	}
}

// Stats holds worker pool metrics
type Stats struct {
	Processed uint64
	Failed    uint64
}
