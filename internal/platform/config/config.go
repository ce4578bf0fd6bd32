// Package config builds the service configuration from environment variables, with an
// optional YAML overlay for upstream source settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	platstrings "kycdesk/pkg/platform/strings"
)

// Config is the full service configuration.
type Config struct {
	Server     Server
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	NATS       NATSConfig
	Sources    SourcesConfig
	Resilience ResilienceConfig
	AI         AIConfig
	LogLevel   string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	Environment   string
	JWTSigningKey string
	JWTIssuer     string
}

// DatabaseConfig selects the Postgres stores. An empty URL means in-memory stores.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig enables the upstream source cache. An empty URL disables caching.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig enables the audit outbox relay. No brokers means the relay does not run.
type KafkaConfig struct {
	Brokers      []string
	AuditTopic   string
	PollInterval time.Duration
	BatchSize    int
}

// NATSConfig enables monitoring change notifications.
type NATSConfig struct {
	URL            string
	ChangesSubject string
}

// SourcesConfig holds the upstream government and registry endpoints.
type SourcesConfig struct {
	BrasilAPIBaseURL     string        `yaml:"brasilapi_base_url"`
	ReceitaWSBaseURL     string        `yaml:"receitaws_base_url"`
	ViaCEPBaseURL        string        `yaml:"viacep_base_url"`
	TransparenciaBaseURL string        `yaml:"transparencia_base_url"`
	TransparenciaAPIKey  string        `yaml:"-"`
	TransparenciaRate    float64       `yaml:"transparencia_rate_per_sec"`
	SourceTimeout        time.Duration `yaml:"source_timeout"`
	AggregateTimeout     time.Duration `yaml:"aggregate_timeout"`
	CacheTTL             time.Duration `yaml:"cache_ttl"`
	ConfigFile           string        `yaml:"-"`
	DisabledSources      []string      `yaml:"disabled_sources"`
	MonitoringTimeout    time.Duration `yaml:"-"`
}

// ResilienceConfig tunes retries and circuit breaking around upstream calls.
type ResilienceConfig struct {
	RetryMaxAttempts        int
	RetryInitialBackoff     time.Duration
	RetryMaxBackoff         time.Duration
	BreakerEnabled          bool
	BreakerMinRequests      int
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls int

	// Overrides is keyed by call site (a source name or "nats.publish") and is
	// only settable from the sources file.
	Overrides map[string]ResilienceOverride
}

// ResilienceOverride replaces the non-zero settings for one call site.
type ResilienceOverride struct {
	RetryMaxAttempts    int           `yaml:"retry_max_attempts"`
	RetryMaxBackoff     time.Duration `yaml:"retry_max_backoff"`
	BreakerDisabled     bool          `yaml:"breaker_disabled"`
	BreakerMinRequests  int           `yaml:"breaker_min_requests"`
	BreakerFailureRatio float64       `yaml:"breaker_failure_ratio"`
	BreakerOpenTimeout  time.Duration `yaml:"breaker_open_timeout"`
}

// AIConfig configures the narrative generator. An empty key disables it.
type AIConfig struct {
	APIKey  string
	BaseURL string
	Models  []string
	Timeout time.Duration
}

// defaultSourceCacheTTL bounds how long upstream registry data may be retained in the cache.
const defaultSourceCacheTTL = 5 * time.Minute

const devSigningKey = "dev-secret-key-change-in-production"

// FromEnv builds the Config from environment variables so main stays lean.
// When SOURCES_CONFIG_FILE is set its YAML values override the source defaults.
func FromEnv() (Config, error) {
	cfg := Config{
		Server: Server{
			Addr:          envString("KYCDESK_ADDR", ":8080"),
			Environment:   envString("KYCDESK_ENV", "development"),
			JWTSigningKey: envString("JWT_SIGNING_KEY", devSigningKey),
			JWTIssuer:     envString("JWT_ISSUER", ""),
		},
		Database: DatabaseConfig{
			URL:             envString("DATABASE_URL", ""),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          envString("REDIS_URL", ""),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:      envList("KAFKA_BROKERS"),
			AuditTopic:   envString("KAFKA_AUDIT_TOPIC", "kycdesk.audit"),
			PollInterval: envDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			BatchSize:    envInt("OUTBOX_BATCH_SIZE", 100),
		},
		NATS: NATSConfig{
			URL:            envString("NATS_URL", ""),
			ChangesSubject: envString("NATS_CHANGES_SUBJECT", "kycdesk.monitoring.changed"),
		},
		Sources: SourcesConfig{
			BrasilAPIBaseURL:     envString("BRASILAPI_BASE_URL", "https://brasilapi.com.br"),
			ReceitaWSBaseURL:     envString("RECEITAWS_BASE_URL", "https://receitaws.com.br"),
			ViaCEPBaseURL:        envString("VIACEP_BASE_URL", "https://viacep.com.br"),
			TransparenciaBaseURL: envString("TRANSPARENCIA_BASE_URL", "https://api.portaldatransparencia.gov.br/api-de-dados"),
			TransparenciaAPIKey:  envString("TRANSPARENCIA_API_KEY", ""),
			TransparenciaRate:    envFloat("TRANSPARENCIA_RATE_PER_SEC", 5),
			SourceTimeout:        envDuration("SOURCE_TIMEOUT", 15*time.Second),
			AggregateTimeout:     envDuration("AGGREGATE_TIMEOUT", 30*time.Second),
			CacheTTL:             envDuration("SOURCE_CACHE_TTL", defaultSourceCacheTTL),
			ConfigFile:           envString("SOURCES_CONFIG_FILE", ""),
			MonitoringTimeout:    envDuration("MONITORING_UPDATE_TIMEOUT", 30*time.Second),
		},
		Resilience: ResilienceConfig{
			RetryMaxAttempts:        envInt("RESILIENCE_RETRY_MAX_ATTEMPTS", 3),
			RetryInitialBackoff:     envDuration("RESILIENCE_RETRY_INITIAL_BACKOFF", 200*time.Millisecond),
			RetryMaxBackoff:         envDuration("RESILIENCE_RETRY_MAX_BACKOFF", 2*time.Second),
			BreakerEnabled:          envBool("RESILIENCE_BREAKER_ENABLED", true),
			BreakerMinRequests:      envInt("RESILIENCE_BREAKER_MIN_REQUESTS", 10),
			BreakerFailureRatio:     envFloat("RESILIENCE_BREAKER_FAILURE_RATIO", 0.5),
			BreakerOpenTimeout:      envDuration("RESILIENCE_BREAKER_OPEN_TIMEOUT", 30*time.Second),
			BreakerHalfOpenMaxCalls: envInt("RESILIENCE_BREAKER_HALF_OPEN_MAX_CALLS", 2),
		},
		AI: AIConfig{
			APIKey:  envString("OPENAI_API_KEY", ""),
			BaseURL: envString("OPENAI_BASE_URL", ""),
			Models:  envList("AI_MODELS"),
			Timeout: envDuration("AI_TIMEOUT", 60*time.Second),
		},
		LogLevel: envString("LOG_LEVEL", "info"),
	}
	if len(cfg.AI.Models) == 0 {
		cfg.AI.Models = []string{"gpt-4o-mini", "gpt-4o"}
	}

	if cfg.Sources.ConfigFile != "" {
		if err := cfg.overlayFile(cfg.Sources.ConfigFile); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	if c.Server.Environment == "production" && c.Server.JWTSigningKey == devSigningKey {
		return fmt.Errorf("JWT_SIGNING_KEY must be set in production")
	}
	if c.Sources.SourceTimeout <= 0 || c.Sources.AggregateTimeout <= 0 {
		return fmt.Errorf("source and aggregate timeouts must be positive")
	}
	if c.Sources.TransparenciaRate <= 0 {
		return fmt.Errorf("TRANSPARENCIA_RATE_PER_SEC must be positive")
	}
	return nil
}

// SourceEnabled reports whether a source was left out by disabled_sources.
func (s SourcesConfig) SourceEnabled(name string) bool {
	for _, d := range s.DisabledSources {
		if strings.EqualFold(d, name) {
			return false
		}
	}
	return true
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func envInt(key string, def int) int {
	v := envString(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := envString(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envBool(key string, def bool) bool {
	v := envString(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v := envString(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envList(key string) []string {
	v := envString(key, "")
	if v == "" {
		return nil
	}
	return platstrings.SplitList(v)
}
