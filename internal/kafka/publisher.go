package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"pipewatch/internal/config"
	"pipewatch/internal/ledger"
	"pipewatch/internal/logger"
	"pipewatch/internal/metrics"
)

// Publisher errors
var (
	ErrPublisherClosed = errors.New("publisher is closed")
	ErrSerializeFailed = errors.New("failed to serialize transition")
)

// Publisher hands alert transitions to the notification-dispatch topic.
// Messages are keyed by (asset, metric) so all transitions for one alert
// land on the same partition in order.
type Publisher struct {
	cfg     config.ProducerConfig
	topic   string
	writers []*kafka.Writer
	pool    chan *kafka.Writer
	closed  atomic.Bool

	// Metrics
	published atomic.Uint64
	failed    atomic.Uint64
	bytes     atomic.Uint64
}

// NewPublisher creates a Kafka publisher with a pooled writer set
func NewPublisher(brokers []string, topic string, cfg config.ProducerConfig) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}

	if topic == "" {
		return nil, errors.New("topic is required")
	}

	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = config.Duration(100 * time.Millisecond)
	}

	p := &Publisher{
		cfg:     cfg,
		topic:   topic,
		writers: make([]*kafka.Writer, cfg.PoolSize),
		pool:    make(chan *kafka.Writer, cfg.PoolSize),
	}

	compression := getCompression(cfg.Compression)

	for i := 0; i < cfg.PoolSize; i++ {
		writer := &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{}, // Partition by key
			BatchSize:    cfg.BatchSize,
			BatchTimeout: time.Duration(cfg.BatchTimeout),
			WriteTimeout: time.Duration(cfg.WriteTimeout),
			RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
			Compression:  compression,
			MaxAttempts:  cfg.MaxRetries + 1,
			Async:        false, // Sync for reliability
		}
		p.writers[i] = writer
		p.pool <- writer
	}

	return p, nil
}

// getCompression returns the kafka compression codec
func getCompression(name string) compress.Compression {
	switch name {
	case "gzip":
		return compress.Gzip
	case "snappy":
		return compress.Snappy
	case "lz4":
		return compress.Lz4
	case "zstd":
		return compress.Zstd
	default:
		return compress.None
	}
}

// Publish sends one alert transition to the topic
func (p *Publisher) Publish(ctx context.Context, tr *ledger.Transition) error {
	if p.closed.Load() {
		return ErrPublisherClosed
	}

	data, err := json.Marshal(tr)
	if err != nil {
		p.failed.Add(1)
		return fmt.Errorf("%w: %v", ErrSerializeFailed, err)
	}

	msg := kafka.Message{
		Key:   []byte(tr.Record.AssetID + "/" + tr.Record.MetricID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "alert_id", Value: []byte(tr.Record.ID)},
			{Key: "asset_id", Value: []byte(tr.Record.AssetID)},
			{Key: "metric_id", Value: []byte(tr.Record.MetricID)},
			{Key: "transition", Value: []byte(tr.Kind)},
		},
		Time: tr.Timestamp,
	}

	// Get writer from pool with timeout
	var writer *kafka.Writer
	select {
	case writer = <-p.pool:
		defer func() { p.pool <- writer }()
	case <-ctx.Done():
		p.failed.Add(1)
		return ctx.Err()
	}

	start := time.Now()
	err = p.publishWithRetry(ctx, writer, msg)
	metrics.KafkaPublishDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		p.failed.Add(1)
		metrics.KafkaPublishTotal.WithLabelValues("failed").Inc()
		return err
	}

	p.published.Add(1)
	p.bytes.Add(uint64(len(data)))
	metrics.KafkaPublishTotal.WithLabelValues("success").Inc()
	metrics.KafkaBytesWritten.Add(float64(len(data)))
	return nil
}

// publishWithRetry publishes a single message with exponential backoff retry
func (p *Publisher) publishWithRetry(ctx context.Context, writer *kafka.Writer, msg kafka.Message) error {
	log := logger.WithComponent("kafka_publisher")
	var lastErr error
	backoff := time.Duration(p.cfg.RetryBackoff)

	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("retrying kafka publish")

			metrics.KafkaPublishRetries.Inc()

			select {
			case <-time.After(backoff):
				backoff *= 2 // Exponential backoff
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := writer.WriteMessages(ctx, msg)
		if err == nil {
			return nil
		}

		lastErr = err
		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Msg("kafka publish attempt failed")

		// Check for non-retryable errors
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}

	log.Error().
		Err(lastErr).
		Int("max_retries", p.cfg.MaxRetries+1).
		Msg("kafka publish failed after all retries")

	return fmt.Errorf("failed after %d attempts: %w", p.cfg.MaxRetries+1, lastErr)
}

// Close closes all writers in the pool
func (p *Publisher) Close() error {
	if p.closed.Swap(true) {
		return nil // Already closed
	}

	var errs []error
	for _, writer := range p.writers {
		if err := writer.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing writers: %v", errs)
	}
	return nil
}

// Stats returns publisher statistics
func (p *Publisher) Stats() Stats {
	return Stats{
		Published:    p.published.Load(),
		Failed:       p.failed.Load(),
		BytesWritten: p.bytes.Load(),
	}
}

// Stats holds publisher metrics
type Stats struct {
	Published    uint64
	Failed       uint64
	BytesWritten uint64
}

// HealthCheck verifies the publisher can reach Kafka
func (p *Publisher) HealthCheck(ctx context.Context) error {
	if p.closed.Load() {
		return ErrPublisherClosed
	}

	var writer *kafka.Writer
	select {
	case writer = <-p.pool:
		defer func() { p.pool <- writer }()
	case <-ctx.Done():
		return ctx.Err()
	}

	_ = writer.Stats()
	return nil
}
