// Package config assembles the Config struct that carries sandbox resource
// defaults, an inter-pipeline concurrency setting, and the observability stack,
// following the teacher's default-then-env-override idiom
// (DefaultConfig -> LoadFromFile -> LoadFromEnv).
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"
)

// SandboxConfig holds resource-limit defaults for one sandbox runtime
// (hostA or hostB), mirrored onto sandbox.Config at wiring time.
type SandboxConfig struct {
	Executable       string        `json:"executable"`
	MemoryLimitBytes int64         `json:"memory_limit_bytes"` // default 512 MiB
	WallClock        time.Duration `json:"wall_clock"`         // default 30s
	CPUCores         float64       `json:"cpu_cores"`          // default 1
}

// PostgresConfig holds the optional durable Run State Store's connection
// settings. Empty DSN means the in-memory store is used instead.
type PostgresConfig struct {
	DSN string `json:"dsn"`
}

// RedisConfig holds the cancellation-broadcast pub/sub connection settings.
// Empty Addr means cancellation stays within a single executor process.
type RedisConfig struct {
	Addr    string `json:"addr"`
	Channel string `json:"channel"` // default "pipeline:cancel"
}

// ExecutorConfig holds inter-pipeline concurrency and run bookkeeping
// settings. There is no intra-pipeline parallelism (spec section 5).
// MaxConcurrentRuns is loaded from file and environment, but neither the
// executor nor the CLI reads it: concurrent execute() calls are not bounded.
type ExecutorConfig struct {
	MaxConcurrentRuns int    `json:"max_concurrent_runs"` // default 0 = unbounded
	RunsDir           string `json:"runs_dir"`            // default "/runs"
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled     bool    `json:"enabled"`
	Exporter    string  `json:"exporter"` // otlp-http, stdout
	Endpoint    string  `json:"endpoint"`
	ServiceName string  `json:"service_name"`
	SampleRate  float64 `json:"sample_rate"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled"`
	Namespace string `json:"namespace"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // text, json
}

// ObservabilityConfig holds all observability-related settings.
type ObservabilityConfig struct {
	Tracing TracingConfig `json:"tracing"`
	Metrics MetricsConfig `json:"metrics"`
	Logging LoggingConfig `json:"logging"`
}

// CELConfig bounds how long a CrossoverSignal expression may run per row.
type CELConfig struct {
	EvalTimeout time.Duration `json:"eval_timeout"` // default 50ms
}

// Config is the central configuration struct for the compiler/executor
// library and its cmd/pipelinectl CLI.
type Config struct {
	HostA         SandboxConfig       `json:"host_a"`
	HostB         SandboxConfig       `json:"host_b"`
	Postgres      PostgresConfig      `json:"postgres"`
	Redis         RedisConfig         `json:"redis"`
	Executor      ExecutorConfig      `json:"executor"`
	Observability ObservabilityConfig `json:"observability"`
	CEL           CELConfig           `json:"cel"`
}

// DefaultConfig returns a Config with the resource defaults from spec
// section 4.I and otherwise conservative ambient-stack settings.
func DefaultConfig() *Config {
	return &Config{
		HostA: SandboxConfig{
			Executable:       "python3",
			MemoryLimitBytes: 512 * 1024 * 1024,
			WallClock:        30 * time.Second,
			CPUCores:         1,
		},
		HostB: SandboxConfig{
			Executable:       "node",
			MemoryLimitBytes: 512 * 1024 * 1024,
			WallClock:        30 * time.Second,
			CPUCores:         1,
		},
		Postgres: PostgresConfig{DSN: ""},
		Redis:    RedisConfig{Addr: "", Channel: "pipeline:cancel"},
		Executor: ExecutorConfig{
			MaxConcurrentRuns: 0,
			RunsDir:           "/runs",
		},
		Observability: ObservabilityConfig{
			Tracing: TracingConfig{
				Enabled:     false,
				Exporter:    "otlp-http",
				Endpoint:    "localhost:4318",
				ServiceName: "pipeline-executor",
				SampleRate:  1.0,
			},
			Metrics: MetricsConfig{
				Enabled:   true,
				Namespace: "pipeline",
			},
			Logging: LoggingConfig{
				Level:  "info",
				Format: "text",
			},
		},
		CEL: CELConfig{EvalTimeout: 50 * time.Millisecond},
	}
}

// LoadFromFile loads configuration from a JSON file, starting from
// DefaultConfig so unspecified fields keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv applies PIPELINE_-prefixed environment variable overrides to
// cfg in place.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("PIPELINE_HOSTA_EXECUTABLE"); v != "" {
		cfg.HostA.Executable = v
	}
	if v := os.Getenv("PIPELINE_HOSTB_EXECUTABLE"); v != "" {
		cfg.HostB.Executable = v
	}
	if v := os.Getenv("PIPELINE_SANDBOX_MEMORY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.HostA.MemoryLimitBytes = n
			cfg.HostB.MemoryLimitBytes = n
		}
	}
	if v := os.Getenv("PIPELINE_SANDBOX_WALL_CLOCK"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HostA.WallClock = d
			cfg.HostB.WallClock = d
		}
	}
	if v := os.Getenv("PIPELINE_SANDBOX_CPU_CORES"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.HostA.CPUCores = f
			cfg.HostB.CPUCores = f
		}
	}

	if v := os.Getenv("PIPELINE_PG_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("PIPELINE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("PIPELINE_REDIS_CHANNEL"); v != "" {
		cfg.Redis.Channel = v
	}

	if v := os.Getenv("PIPELINE_MAX_CONCURRENT_RUNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Executor.MaxConcurrentRuns = n
		}
	}
	if v := os.Getenv("PIPELINE_RUNS_DIR"); v != "" {
		cfg.Executor.RunsDir = v
	}

	if v := os.Getenv("PIPELINE_TRACING_ENABLED"); v != "" {
		cfg.Observability.Tracing.Enabled = parseBool(v)
	}
	if v := os.Getenv("PIPELINE_TRACING_ENDPOINT"); v != "" {
		cfg.Observability.Tracing.Endpoint = v
	}
	if v := os.Getenv("PIPELINE_TRACING_EXPORTER"); v != "" {
		cfg.Observability.Tracing.Exporter = v
	}
	if v := os.Getenv("PIPELINE_TRACING_SAMPLE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Observability.Tracing.SampleRate = f
		}
	}
	if v := os.Getenv("PIPELINE_METRICS_ENABLED"); v != "" {
		cfg.Observability.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("PIPELINE_METRICS_NAMESPACE"); v != "" {
		cfg.Observability.Metrics.Namespace = v
	}
	if v := os.Getenv("PIPELINE_LOG_LEVEL"); v != "" {
		cfg.Observability.Logging.Level = v
	}
	if v := os.Getenv("PIPELINE_LOG_FORMAT"); v != "" {
		cfg.Observability.Logging.Format = v
	}

	if v := os.Getenv("PIPELINE_CEL_EVAL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CEL.EvalTimeout = d
		}
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes"
}
