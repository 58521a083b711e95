package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/vendorpay/internal/infrastructure/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.DatabaseURL)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, config.RailModeSandbox, cfg.RailMode)
	assert.Equal(t, config.PublisherLog, cfg.EventPublisher)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 24*time.Hour, cfg.RetryWindow)
	assert.Equal(t, 90.0, cfg.TriageApproveConfidence)
	assert.Equal(t, "1", cfg.TriageMaxDifference.String())
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, config.StoragePostgres, cfg.Storage)
	assert.True(t, cfg.RedisEnabled)
	assert.Equal(t, 50.0, cfg.RateLimitRPS)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("STORAGE", "memory")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("RAIL_MODE", "gateway")
	t.Setenv("RAIL_GATEWAY_URL", "https://rails.example")
	t.Setenv("BATCH_CONCURRENCY", "2")
	t.Setenv("EVENT_PUBLISHER", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("TRIAGE_SWEEP_INTERVAL", "0s")
	t.Setenv("TRIAGE_MAX_DIFFERENCE", "0.25")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://example", cfg.DatabaseURL)
	assert.False(t, cfg.RedisEnabled)
	assert.Equal(t, config.StorageMemory, cfg.Storage)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, config.RailModeGateway, cfg.RailMode)
	assert.Equal(t, 2, cfg.BatchConcurrency)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Zero(t, cfg.TriageSweepInterval)
	assert.Equal(t, "0.25", cfg.TriageMaxDifference.String())
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown storage", map[string]string{"STORAGE": "floppy"}},
		{"unknown rail mode", map[string]string{"RAIL_MODE": "carrier-pigeon"}},
		{"gateway without url", map[string]string{"RAIL_MODE": "gateway"}},
		{"unknown publisher", map[string]string{"EVENT_PUBLISHER": "smoke"}},
		{"zero concurrency", map[string]string{"BATCH_CONCURRENCY": "0"}},
		{"inverted triage", map[string]string{"TRIAGE_REJECT_CONFIDENCE": "95"}},
		{"negative rate limit", map[string]string{"RATE_LIMIT_RPS": "-1"}},
		{"rate limit without burst", map[string]string{"RATE_LIMIT_BURST": "0"}},
		{"bad duration", map[string]string{"RETRY_WINDOW": "soon"}},
		{"negative triage difference", map[string]string{"TRIAGE_MAX_DIFFERENCE": "-0.5"}},
		{"non-numeric triage difference", map[string]string{"TRIAGE_MAX_DIFFERENCE": "a dollar"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}
