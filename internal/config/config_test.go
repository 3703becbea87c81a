// internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 5, cfg.Refresh.MaxConcurrency)
	assert.Equal(t, 48*time.Hour, cfg.Refresh.UnverifiedDeferral)

	assert.InDelta(t, 0.6, cfg.Matcher.CoverageThreshold, 0.001)
	assert.InDelta(t, 0.4, cfg.Matcher.GTINScoreBonus, 0.001)
	assert.InDelta(t, 0.15, cfg.Matcher.BrandScoreBonus, 0.001)
	assert.InDelta(t, 0.1, cfg.Matcher.MPNScoreBonus, 0.001)
	assert.InDelta(t, 0.1, cfg.Matcher.PackAgreeBonus, 0.001)
	assert.InDelta(t, 0.25, cfg.Matcher.LotPenalty, 0.001)

	assert.Equal(t, "https://api.ebay.com", cfg.Ebay.BaseURL)
	assert.Empty(t, cfg.Ebay.APIToken)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("EBAY_API_BASE_URL", "https://sandbox.ebay.example")
	t.Setenv("EBAY_API_TOKEN", "tok-123")
	t.Setenv("MATCH_SCORE_GTIN_BONUS", "0.5")
	t.Setenv("REFRESH_MAX_CONCURRENCY", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://sandbox.ebay.example", cfg.Ebay.BaseURL)
	assert.Equal(t, "tok-123", cfg.Ebay.APIToken)
	assert.InDelta(t, 0.5, cfg.Matcher.GTINScoreBonus, 0.001)
	assert.Equal(t, 8, cfg.Refresh.MaxConcurrency)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("REFRESH_MAX_CONCURRENCY", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concurrency")
}

func TestValidateProductionGuards(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DB_PASSWORD", "s3cret")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT secret")
}
