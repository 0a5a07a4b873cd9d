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

	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, 20*time.Second, cfg.SearchDeadline)
	assert.Equal(t, 15*time.Second, cfg.AdapterTimeout)
	assert.Equal(t, int64(8), cfg.MaxConcurrency)
	assert.Equal(t, 5*time.Minute, cfg.ProviderCacheTTL)
	assert.Equal(t, 10*time.Minute, cfg.AggregateCacheTTL)
	assert.Equal(t, 90*24*time.Hour, cfg.HistoryRetention)

	assert.Equal(t, 40.0, cfg.Weights.Price)
	assert.Equal(t, 30.0, cfg.Weights.Rating)
	assert.Equal(t, 20.0, cfg.Weights.Availability)
	assert.Equal(t, 10.0, cfg.Weights.Refundable)
	assert.Equal(t, 10, cfg.AvailabilityCap)
	assert.Equal(t, 20, cfg.FeatureCap)

	assert.Equal(t, 5.0, cfg.Prediction.TrendThresholdPct)
	assert.Equal(t, 15.0, cfg.Prediction.DropAlertPct)
	assert.Equal(t, 0.6, cfg.Prediction.SpikeMinStrength)
	assert.Equal(t, 3, cfg.Prediction.LowAvailability)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SEARCH_DEADLINE", "45s")
	t.Setenv("MAX_CONCURRENCY", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.SearchDeadline)
	assert.Equal(t, int64(3), cfg.MaxConcurrency)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("PROVIDER_CACHE_TTL", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider_cache_ttl")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			SearchDeadline:    20 * time.Second,
			AdapterTimeout:    15 * time.Second,
			MaxConcurrency:    8,
			ProviderCacheTTL:  5 * time.Minute,
			AggregateCacheTTL: 10 * time.Minute,
			Weights:           RankWeights{Price: 40, Rating: 30, Availability: 20, Refundable: 10},
			AvailabilityCap:   10,
			FeatureCap:        20,
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("weights must sum to 100", func(t *testing.T) {
		c := base()
		c.Weights.Price = 50
		err := c.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sum to 100")
	})

	t.Run("provider TTL cannot exceed aggregate TTL", func(t *testing.T) {
		c := base()
		c.ProviderCacheTTL = 20 * time.Minute
		require.Error(t, c.Validate())
	})

	t.Run("adapter timeout cannot exceed search deadline", func(t *testing.T) {
		c := base()
		c.AdapterTimeout = time.Minute
		require.Error(t, c.Validate())
	})

	t.Run("concurrency must be positive", func(t *testing.T) {
		c := base()
		c.MaxConcurrency = 0
		require.Error(t, c.Validate())
	})
}
