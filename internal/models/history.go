package models

import "time"

// PricePoint is one observation of an item's price. Append-only; points leave
// the series only through the retention sweep.
type PricePoint struct {
	Timestamp  time.Time `json:"timestamp"`
	Price      float64   `json:"price"`
	Currency   string    `json:"currency"`
	ProviderID string    `json:"provider_id"`
	Available  bool      `json:"available"`
	Source     string    `json:"source"`     // "search", "import", ...
	Confidence float64   `json:"confidence"` // 0..1
	Fees       float64   `json:"fees,omitempty"`
	Taxes      float64   `json:"taxes,omitempty"`
}

// TrendDirection is the coarse direction of a price series.
type TrendDirection string

const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

// PriceStatistics are the rolling figures over the in-window points of one
// history. Always derived from the current window, never patched.
type PriceStatistics struct {
	Min            float64        `json:"min"`
	Max            float64        `json:"max"`
	Mean           float64        `json:"mean"`
	Median         float64        `json:"median"`
	Volatility     float64        `json:"volatility"` // population std dev
	TrendDirection TrendDirection `json:"trend_direction"`
	TrendStrength  float64        `json:"trend_strength"` // OLS R², 0..1
	SampleCount    int            `json:"sample_count"`
	WindowStart    time.Time      `json:"window_start"`
	WindowEnd      time.Time      `json:"window_end"`
}

// PriceBand is a projected price corridor with a confidence estimate.
type PriceBand struct {
	Low        float64 `json:"low"`
	High       float64 `json:"high"`
	Confidence float64 `json:"confidence"` // 0..1
}

// PricePrediction is the near-term projection derived from statistics.
type PricePrediction struct {
	NextWeek       PriceBand     `json:"next_week"`
	NextMonth      PriceBand     `json:"next_month"`
	BestTimeToBook time.Time     `json:"best_time_to_book"`
	Alerts         []MarketAlert `json:"alerts,omitempty"`
	GeneratedAt    time.Time     `json:"generated_at"`
}

// PriceHistory is the tracked series for one item plus its derived figures.
type PriceHistory struct {
	ItemID      string           `json:"item_id"`
	ItemType    ItemType         `json:"item_type"`
	CriteriaKey string           `json:"criteria_key"`
	Points      []PricePoint     `json:"points"`
	Statistics  *PriceStatistics `json:"statistics,omitempty"`
	Predictions *PricePrediction `json:"predictions,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`
}
