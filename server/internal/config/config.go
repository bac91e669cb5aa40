package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values.
const (
	DefaultHTTPPort        = 8080
	DefaultDatasetPath     = "data/data.csv"
	DefaultTargetColumn    = "delay"
	DefaultMaxIter         = 1000
	DefaultL2              = 1.0
	DefaultSeed            = 42
	DefaultClassWeight     = "balanced"
	DefaultHoldoutFraction = 0.33
	DefaultCacheTTL        = 5 * time.Minute
	DefaultStreamInterval  = 5 * time.Second
	DefaultAlertInterval   = 30 * time.Second
	DefaultHistoryPath     = "delaycast.db"
	DefaultRetention       = 7 * 24 * time.Hour
	DefaultPruneSchedule   = "@hourly"
	DefaultOTLPEndpoint    = "localhost:4317"
)

// Config is the root of config.yaml.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Dataset DatasetConfig `yaml:"dataset"`
	Model   ModelConfig   `yaml:"model"`
	Cache   CacheConfig   `yaml:"cache"`
	Storage StorageConfig `yaml:"storage"`
	Alerts  AlertsConfig  `yaml:"alerts"`
	Log     LogConfig     `yaml:"log"`
	Tracing TracingConfig `yaml:"tracing"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API, metrics and WebSocket stream listen on.
	HTTPPort int `yaml:"http_port"`

	// Auth configures how the server authenticates REST clients.
	Auth AuthConfig `yaml:"auth"`

	// RateLimit caps POST /predict throughput. Zero RPS disables it.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// StreamInterval is how often stats are pushed to WebSocket clients.
	StreamInterval time.Duration `yaml:"stream_interval"`
}

// AuthConfig controls client authentication.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header to read the key from. Defaults to "x-api-key".
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// RateLimitConfig is a token bucket.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// DatasetConfig locates the training data.
type DatasetConfig struct {
	Path string `yaml:"path"`

	// TargetColumn names a precomputed 0/1 label column. When the file has
	// no such column, labels are derived from Fecha-I and Fecha-O.
	TargetColumn string `yaml:"target_column"`
}

// ModelConfig controls training.
type ModelConfig struct {
	MaxIter         int     `yaml:"max_iter"`
	L2              float64 `yaml:"l2"`
	Seed            int64   `yaml:"seed"`
	ClassWeight     string  `yaml:"class_weight"`
	HoldoutFraction float64 `yaml:"holdout_fraction"`
}

// CacheConfig controls the prediction cache. A zero TTL disables it.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// StorageConfig controls the prediction history.
type StorageConfig struct {
	// Backend is one of: sqlite | none.
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`

	// Retention is how long history rows are kept.
	Retention time.Duration `yaml:"retention"`

	// PruneSchedule is a cron spec ("@hourly", "0 3 * * *").
	PruneSchedule string `yaml:"prune_schedule"`
}

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Interval time.Duration   `yaml:"interval"`
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold-based alert condition.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression over service stats:
	// "delay_rate > 60", "reject_rate > 25", "fallbacks > 0", "trained == false".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig selects where predict spans are exported.
type TracingConfig struct {
	// Exporter is one of: none | stdout | otlp.
	Exporter string `yaml:"exporter"`

	// Endpoint is the OTLP gRPC collector address (host:port).
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`

	// SampleRatio is the fraction of batches traced, in (0, 1].
	SampleRatio float64 `yaml:"sample_ratio"`
}

// SlogLevel maps Level to a slog.Level. Unknown values map to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads and parses the config file at path.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse is Load for an in-memory document.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Defaults returns a Config pre-populated with default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:       DefaultHTTPPort,
			StreamInterval: DefaultStreamInterval,
		},
		Dataset: DatasetConfig{
			Path:         DefaultDatasetPath,
			TargetColumn: DefaultTargetColumn,
		},
		Model: ModelConfig{
			MaxIter:         DefaultMaxIter,
			L2:              DefaultL2,
			Seed:            DefaultSeed,
			ClassWeight:     DefaultClassWeight,
			HoldoutFraction: DefaultHoldoutFraction,
		},
		Cache: CacheConfig{TTL: DefaultCacheTTL},
		Storage: StorageConfig{
			Backend:       "none",
			Path:          DefaultHistoryPath,
			Retention:     DefaultRetention,
			PruneSchedule: DefaultPruneSchedule,
		},
		Alerts: AlertsConfig{Interval: DefaultAlertInterval},
		Log:    LogConfig{Level: "info", Format: "json"},
		Tracing: TracingConfig{
			Exporter:    "none",
			Endpoint:    DefaultOTLPEndpoint,
			Insecure:    true,
			SampleRatio: 1,
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", cfg.Server.Auth.Mode)
	}
	if cfg.Server.RateLimit.RPS < 0 || cfg.Server.RateLimit.Burst < 0 {
		return fmt.Errorf("server.rate_limit must not be negative")
	}
	if cfg.Server.StreamInterval <= 0 {
		return fmt.Errorf("server.stream_interval must be positive")
	}
	if cfg.Dataset.Path == "" {
		return fmt.Errorf("dataset.path is required")
	}
	if cfg.Model.MaxIter <= 0 {
		return fmt.Errorf("model.max_iter must be positive")
	}
	if cfg.Model.L2 <= 0 {
		return fmt.Errorf("model.l2 must be positive")
	}
	switch cfg.Model.ClassWeight {
	case "balanced", "none":
	default:
		return fmt.Errorf("model.class_weight %q unknown: want balanced|none", cfg.Model.ClassWeight)
	}
	if cfg.Model.HoldoutFraction < 0 || cfg.Model.HoldoutFraction >= 1 {
		return fmt.Errorf("model.holdout_fraction %v is out of range [0, 1)", cfg.Model.HoldoutFraction)
	}
	if cfg.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	switch cfg.Storage.Backend {
	case "none", "":
	case "sqlite":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite backend")
		}
		if cfg.Storage.Retention <= 0 {
			return fmt.Errorf("storage.retention must be positive")
		}
	default:
		return fmt.Errorf("storage.backend %q unknown: want sqlite|none", cfg.Storage.Backend)
	}
	if cfg.Alerts.Interval <= 0 {
		return fmt.Errorf("alerts.interval must be positive")
	}
	for i, r := range cfg.Alerts.Rules {
		if r.Name == "" || r.Condition == "" {
			return fmt.Errorf("alerts.rules[%d]: name and condition are required", i)
		}
	}
	for i, w := range cfg.Alerts.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("alerts.webhooks[%d].type %q unknown: want slack|teams|http", i, w.Type)
		}
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q unknown: want json|text", cfg.Log.Format)
	}
	switch cfg.Tracing.Exporter {
	case "none", "stdout":
	case "otlp":
		if cfg.Tracing.Endpoint == "" {
			return fmt.Errorf("tracing.endpoint is required for the otlp exporter")
		}
	default:
		return fmt.Errorf("tracing.exporter %q unknown: want none|stdout|otlp", cfg.Tracing.Exporter)
	}
	if cfg.Tracing.SampleRatio <= 0 || cfg.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio %v is out of range (0, 1]", cfg.Tracing.SampleRatio)
	}
	return nil
}
