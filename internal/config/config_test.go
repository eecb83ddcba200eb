package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"APP_ENV", "DATABASE_URL", "KAFKA_BROKERS", "REDIS_ADDR", "SESSION_TTL", "MAX_CANDIDATES", "VENDOR_BANK_NAME"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "default", cfg.VendorID)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 5, cfg.MaxCandidates)
	assert.False(t, cfg.Bank.Configured())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("MAX_QUANTITY_PER_ORDER", "4")
	t.Setenv("VENDOR_BANK_NAME", "GTBank")
	t.Setenv("VENDOR_ACCOUNT_NUMBER", "0123456789")
	t.Setenv("VENDOR_ACCOUNT_NAME", "Ada Stores")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 4, cfg.MaxQuantityPerOrder)
	assert.True(t, cfg.Bank.Configured())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad int", "MAX_PENDING_ORDERS", "many"},
		{"bad duration", "SESSION_TTL", "forever"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("APP_ENV", "production")
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestConfig_RequireJWT(t *testing.T) {
	assert.Error(t, Config{}.RequireJWT())
	assert.ErrorIs(t, Config{JWTSecret: "short"}.RequireJWT(), ErrWeakSecret)
	assert.NoError(t, Config{JWTSecret: strings.Repeat("x", 32)}.RequireJWT())
}
