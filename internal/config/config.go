package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// RankWeights is the multi-criteria scoring policy. Weights are percentages
// and must sum to 100; changing them is a product decision, not a code change.
type RankWeights struct {
	Price        float64
	Rating       float64
	Availability float64
	Refundable   float64
}

// PredictionPolicy holds every constant the prediction engine applies. The
// defaults mirror the agreed policy; none of them are hard-coded at use sites.
type PredictionPolicy struct {
	TrendThresholdPct float64 // half-window delta that flips trend up/down
	DropAlertPct      float64 // min below historical average for price_drop
	SpikeMinStrength  float64 // min trend strength for price_spike when trending up
	WeekBandFactor    float64 // band = mean ± factor·volatility
	MonthBandFactor   float64
	MinConfidence     float64
	LowAvailability   int // fewer available providers than this -> availability_low
	RecentTrendDays   int
	BookSoonDays      int // trend up: book within this many days
	BookStableDays    int
	BookWaitDays      int // trend down: wait this long
}

type Config struct {
	ServerAddr  string
	TLSCertFile string
	TLSKeyFile  string

	SearchDeadline    time.Duration // overall budget for one search
	AdapterTimeout    time.Duration // per-adapter race
	MaxConcurrency    int64
	ProviderCacheTTL  time.Duration
	AggregateCacheTTL time.Duration
	QuoteTTL          time.Duration // default quote validity when a provider gives none
	WatchInterval     time.Duration

	QuotaCapacity int
	QuotaRefill   time.Duration

	HistoryRetention time.Duration
	SweepInterval    time.Duration

	Weights         RankWeights
	AvailabilityCap int
	FeatureCap      int
	Prediction      PredictionPolicy

	VoucherSecret string
	DeepLinkBase  string // base URL for constructed checkout handoff links

	AmadeusURL          string
	AmadeusClientID     string
	AmadeusClientSecret string
	DuffelHost          string
	DuffelToken         string
	RapidStaysHost      string
	RapidStaysAPIKey    string
	VelocarsHost        string
	VelocarsAPIKey      string

	PostgresDSN   string // empty disables persistence
	RedisAddr     string // empty selects the in-memory cache
	RedisPassword string
	RedisDB       int
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server_addr", ":8080")
	v.SetDefault("search_deadline", "20s")
	v.SetDefault("adapter_timeout", "15s")
	v.SetDefault("max_concurrency", 8)
	v.SetDefault("provider_cache_ttl", "5m")
	v.SetDefault("aggregate_cache_ttl", "10m")
	v.SetDefault("quote_ttl", "30m")
	v.SetDefault("watch_interval", "30s")

	v.SetDefault("quota_capacity", 120)
	v.SetDefault("quota_refill", "1m")

	v.SetDefault("history_retention", "2160h") // 90 days
	v.SetDefault("sweep_interval", "1h")

	v.SetDefault("weight_price", 40.0)
	v.SetDefault("weight_rating", 30.0)
	v.SetDefault("weight_availability", 20.0)
	v.SetDefault("weight_refundable", 10.0)
	v.SetDefault("availability_cap", 10)
	v.SetDefault("feature_cap", 20)

	v.SetDefault("trend_threshold_pct", 5.0)
	v.SetDefault("drop_alert_pct", 15.0)
	v.SetDefault("spike_min_strength", 0.6)
	v.SetDefault("week_band_factor", 0.5)
	v.SetDefault("month_band_factor", 1.5)
	v.SetDefault("min_confidence", 0.2)
	v.SetDefault("low_availability", 3)
	v.SetDefault("recent_trend_days", 7)
	v.SetDefault("book_soon_days", 1)
	v.SetDefault("book_stable_days", 7)
	v.SetDefault("book_wait_days", 14)

	v.SetDefault("voucher_secret", "dev-only-secret")
	v.SetDefault("deep_link_base", "https://go.farescout.example")

	v.SetDefault("amadeus_url", "https://test.api.amadeus.com")
	v.SetDefault("duffel_host", "https://api.duffel.com")
	v.SetDefault("rapidstays_host", "booking-com15.p.rapidapi.com")
	v.SetDefault("velocars_host", "https://partners.velocars.example.com")

	if path := os.Getenv("FARESCOUT_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		// Fallback to conventional locations for local dev
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/farescout") // add the container path
	}

	if err := v.ReadInConfig(); err != nil {
		log.Printf("no config file found, using defaults + env vars: %v", err)
	}

	v.AutomaticEnv()

	cfg := &Config{
		ServerAddr:  v.GetString("server_addr"),
		TLSCertFile: os.Getenv("TLS_CERT_FILE"),
		TLSKeyFile:  os.Getenv("TLS_KEY_FILE"),

		MaxConcurrency: v.GetInt64("max_concurrency"),
		QuotaCapacity:  v.GetInt("quota_capacity"),

		Weights: RankWeights{
			Price:        v.GetFloat64("weight_price"),
			Rating:       v.GetFloat64("weight_rating"),
			Availability: v.GetFloat64("weight_availability"),
			Refundable:   v.GetFloat64("weight_refundable"),
		},
		AvailabilityCap: v.GetInt("availability_cap"),
		FeatureCap:      v.GetInt("feature_cap"),
		Prediction: PredictionPolicy{
			TrendThresholdPct: v.GetFloat64("trend_threshold_pct"),
			DropAlertPct:      v.GetFloat64("drop_alert_pct"),
			SpikeMinStrength:  v.GetFloat64("spike_min_strength"),
			WeekBandFactor:    v.GetFloat64("week_band_factor"),
			MonthBandFactor:   v.GetFloat64("month_band_factor"),
			MinConfidence:     v.GetFloat64("min_confidence"),
			LowAvailability:   v.GetInt("low_availability"),
			RecentTrendDays:   v.GetInt("recent_trend_days"),
			BookSoonDays:      v.GetInt("book_soon_days"),
			BookStableDays:    v.GetInt("book_stable_days"),
			BookWaitDays:      v.GetInt("book_wait_days"),
		},

		VoucherSecret: v.GetString("voucher_secret"),
		DeepLinkBase:  v.GetString("deep_link_base"),

		AmadeusURL:          v.GetString("amadeus_url"),
		AmadeusClientID:     v.GetString("amadeus_clientid"),
		AmadeusClientSecret: v.GetString("amadeus_clientsecret"),
		DuffelHost:          v.GetString("duffel_host"),
		DuffelToken:         v.GetString("duffel_token"),
		RapidStaysHost:      v.GetString("rapidstays_host"),
		RapidStaysAPIKey:    v.GetString("rapidstays_apikey"),
		VelocarsHost:        v.GetString("velocars_host"),
		VelocarsAPIKey:      v.GetString("velocars_apikey"),

		PostgresDSN:   v.GetString("postgres_dsn"),
		RedisAddr:     v.GetString("redis_addr"),
		RedisPassword: v.GetString("redis_password"),
		RedisDB:       v.GetInt("redis_db"),
	}

	for key, dst := range map[string]*time.Duration{
		"search_deadline":     &cfg.SearchDeadline,
		"adapter_timeout":     &cfg.AdapterTimeout,
		"provider_cache_ttl":  &cfg.ProviderCacheTTL,
		"aggregate_cache_ttl": &cfg.AggregateCacheTTL,
		"quote_ttl":           &cfg.QuoteTTL,
		"watch_interval":      &cfg.WatchInterval,
		"quota_refill":        &cfg.QuotaRefill,
		"history_retention":   &cfg.HistoryRetention,
		"sweep_interval":      &cfg.SweepInterval,
	} {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("bad %s: %w", key, err)
		}
		*dst = d
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the structural rules that must hold regardless of where
// the values came from.
func (c *Config) Validate() error {
	if sum := c.Weights.Price + c.Weights.Rating + c.Weights.Availability + c.Weights.Refundable; sum != 100 {
		return fmt.Errorf("rank weights must sum to 100, got %.1f", sum)
	}
	if c.ProviderCacheTTL > c.AggregateCacheTTL {
		return fmt.Errorf("provider cache TTL %v must not exceed aggregate cache TTL %v",
			c.ProviderCacheTTL, c.AggregateCacheTTL)
	}
	if c.AdapterTimeout > c.SearchDeadline {
		return fmt.Errorf("adapter timeout %v must not exceed search deadline %v",
			c.AdapterTimeout, c.SearchDeadline)
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("max_concurrency must be positive")
	}
	if c.AvailabilityCap <= 0 || c.FeatureCap <= 0 {
		return fmt.Errorf("availability_cap and feature_cap must be positive")
	}
	return nil
}
