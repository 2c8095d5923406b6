package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"pipewatch/internal/policy"
)

// Duration lets yaml configs use human-readable forms like "250ms" or "10s"
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config holds runtime configuration for the monitor.
type Config struct {
	// Log level (debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// HTTP listen address
	HTTPAddr string `yaml:"http_addr"`

	// Bearer token required on the HTTP API; empty disables the check
	AuthToken string `yaml:"auth_token"`

	Kafka   KafkaConfig   `yaml:"kafka"`
	Workers WorkersConfig `yaml:"workers"`

	// Per-key reading history kept for chart queries
	SeriesLimit int `yaml:"series_limit"`

	// Threshold policies and notification recipients per metric
	Policies   []PolicyConfig      `yaml:"policies"`
	Recipients map[string][]string `yaml:"recipients"`
}

// KafkaConfig configures the transition publisher
type KafkaConfig struct {
	Brokers  []string       `yaml:"brokers"`
	Topic    string         `yaml:"topic"`
	Producer ProducerConfig `yaml:"producer"`
}

// ProducerConfig tunes the Kafka writer pool
type ProducerConfig struct {
	PoolSize     int      `yaml:"pool_size"`
	BatchSize    int      `yaml:"batch_size"`
	BatchTimeout Duration `yaml:"batch_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
	RequiredAcks int      `yaml:"required_acks"`
	MaxRetries   int      `yaml:"max_retries"`
	RetryBackoff Duration `yaml:"retry_backoff"`
	Compression  string   `yaml:"compression"`
}

// WorkersConfig tunes the evaluator pool
type WorkersConfig struct {
	Count     int `yaml:"count"`
	QueueSize int `yaml:"queue_size"`
}

// PolicyConfig is the yaml form of a threshold policy
type PolicyConfig struct {
	MetricID   string  `yaml:"metric_id"`
	Mode       string  `yaml:"mode"`
	Lower      float64 `yaml:"lower"`
	Upper      float64 `yaml:"upper"`
	NearMargin float64 `yaml:"near_margin"`
}

// Default returns a sensible default config for local dev.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		HTTPAddr: ":8080",
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "pipewatch.alerts",
			Producer: ProducerConfig{
				PoolSize:     4,
				BatchSize:    100,
				BatchTimeout: Duration(100 * time.Millisecond),
				WriteTimeout: Duration(10 * time.Second),
				RequiredAcks: -1,
				MaxRetries:   3,
				RetryBackoff: Duration(100 * time.Millisecond),
				Compression:  "snappy",
			},
		},
		Workers: WorkersConfig{
			Count:     4,
			QueueSize: 1000,
		},
		SeriesLimit: 2048,
		Policies: []PolicyConfig{
			{MetricID: "Max_Pressure_psi", Mode: "single_upper", Upper: 1400, NearMargin: policy.DefaultNearMargin},
			{MetricID: "Corrosion_Impact_Percent", Mode: "single_upper", Upper: 14, NearMargin: policy.DefaultNearMargin},
			{MetricID: "Pressure_psi", Mode: "dual", Lower: 40.06, Upper: 80.65, NearMargin: 0.05},
			{MetricID: "Temperature_C", Mode: "dual", Lower: 30, Upper: 100, NearMargin: 0.05},
			{MetricID: "FlowRate_m3h", Mode: "dual", Lower: 400, Upper: 670, NearMargin: 0.05},
			{MetricID: "PumpSpeed_rpm", Mode: "dual", Lower: 1100, Upper: 2600.99, NearMargin: 0.05},
			{MetricID: "EnergyConsumption_kWh", Mode: "dual", Lower: 17, Upper: 33, NearMargin: 0.05},
		},
		Recipients: map[string][]string{
			"Max_Pressure_psi":         {"safety@company.com", "ops@company.com"},
			"Corrosion_Impact_Percent": {"safety@company.com", "maintenance@company.com"},
			"Pressure_psi":             {"ops@company.com"},
			"Temperature_C":            {"safety@company.com"},
			"FlowRate_m3h":             {"ops@company.com"},
			"PumpSpeed_rpm":            {"maintenance@company.com"},
			"EnergyConsumption_kWh":    {"ops@company.com"},
		},
	}
}

// Load reads a yaml config file, applying it on top of defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// BuildRegistry converts the configured policy and recipient tables into a
// validated registry
func (c *Config) BuildRegistry() (*policy.Registry, error) {
	reg := policy.NewRegistry()
	for _, pc := range c.Policies {
		p := policy.Policy{
			MetricID:   pc.MetricID,
			Mode:       policy.Mode(pc.Mode),
			Lower:      pc.Lower,
			Upper:      pc.Upper,
			NearMargin: pc.NearMargin,
		}
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	for metricID, addrs := range c.Recipients {
		reg.SetRecipients(metricID, addrs)
	}
	return reg, nil
}
