package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("SOURCES_CONFIG_FILE", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Sources.SourceTimeout)
	assert.Equal(t, 30*time.Second, cfg.Sources.AggregateTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Sources.CacheTTL)
	assert.Equal(t, "kycdesk.audit", cfg.Kafka.AuditTopic)
	assert.Equal(t, "kycdesk.monitoring.changed", cfg.NATS.ChangesSubject)
	assert.NotEmpty(t, cfg.AI.Models)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("KYCDESK_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("AI_MODELS", "model-a,model-b")
	t.Setenv("SOURCE_TIMEOUT", "5s")
	t.Setenv("RESILIENCE_BREAKER_ENABLED", "false")
	t.Setenv("REDIS_POOL_SIZE", "not-a-number")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"model-a", "model-b"}, cfg.AI.Models)
	assert.Equal(t, 5*time.Second, cfg.Sources.SourceTimeout)
	assert.False(t, cfg.Resilience.BreakerEnabled)
	assert.Equal(t, 10, cfg.Redis.PoolSize, "unparseable values fall back to default")
}

func TestFromEnv_ProductionRequiresSigningKey(t *testing.T) {
	t.Setenv("KYCDESK_ENV", "production")
	t.Setenv("JWT_SIGNING_KEY", "")

	_, err := FromEnv()
	require.Error(t, err)
}

func TestFromEnv_SourcesFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sources:
  brasilapi_base_url: http://brasilapi.local
  source_timeout: 7s
  disabled_sources: [receitaws_cnpj]
resilience:
  transparencia_ceis:
    retry_max_attempts: 1
    breaker_open_timeout: 2m
`), 0o600))
	t.Setenv("SOURCES_CONFIG_FILE", path)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "http://brasilapi.local", cfg.Sources.BrasilAPIBaseURL)
	assert.Equal(t, 7*time.Second, cfg.Sources.SourceTimeout)
	assert.Equal(t, "https://viacep.com.br", cfg.Sources.ViaCEPBaseURL)
	assert.False(t, cfg.Sources.SourceEnabled("receitaws_cnpj"))
	assert.True(t, cfg.Sources.SourceEnabled("viacep"))

	ceis := cfg.Resilience.Overrides["transparencia_ceis"]
	assert.Equal(t, 1, ceis.RetryMaxAttempts)
	assert.Equal(t, 2*time.Minute, ceis.BreakerOpenTimeout)
	assert.Equal(t, 3, cfg.Resilience.RetryMaxAttempts)
}

func TestFromEnv_SourcesFileMissing(t *testing.T) {
	t.Setenv("SOURCES_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := FromEnv()
	require.Error(t, err)
}
