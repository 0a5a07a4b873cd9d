package models

import "time"

// SearchStatus describes how a search concluded.
type SearchStatus string

const (
	SearchCompleted SearchStatus = "completed" // every resolved adapter contributed
	SearchPartial   SearchStatus = "partial"   // some adapters failed or timed out
	SearchCancelled SearchStatus = "cancelled" // aborted via cancelSearch
	SearchFailed    SearchStatus = "failed"    // no adapter contributed anything
)

// ProviderError records one provider's failure for the result's error list.
type ProviderError struct {
	Provider string `json:"provider"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
}

// FacetFilters are the facet bounds derived from a merged result set, consumed
// by downstream filtering UIs. Ranges are [min, max]; empty sets yield [0, 0].
type FacetFilters struct {
	PriceRange    [2]float64 `json:"price_range"`
	DurationRange [2]int     `json:"duration_range"`
	RatingRange   [2]float64 `json:"rating_range"`
	Features      []string   `json:"features"`
}

// Recommendations holds the three top-3 bucket id lists.
type Recommendations struct {
	BestValue   []string `json:"best_value"`
	Quickest    []string `json:"quickest"`
	MostPopular []string `json:"most_popular"`
}

// PricePosition classifies the cheapest offer against the market average.
type PricePosition string

const (
	PositionLow     PricePosition = "low"
	PositionAverage PricePosition = "average"
	PositionHigh    PricePosition = "high"
)

// PriceInsights summarizes where the result set sits in the market.
type PriceInsights struct {
	MarketAverage  float64       `json:"market_average"`
	PricePosition  PricePosition `json:"price_position"`
	SavingsPercent float64       `json:"savings_percent"`
	Recommendation string        `json:"recommendation"`
}

// ComparisonResult is the merged, ranked answer to one search. Immutable once
// produced; cached under the request hash with the aggregate TTL.
type ComparisonResult struct {
	RequestID       string          `json:"request_id"`
	ItemID          string          `json:"item_id"`
	Status          SearchStatus    `json:"status"`
	Results         []Quote         `json:"results"`
	TotalCount      int             `json:"total_count"`
	SearchLatencyMs int64           `json:"search_latency_ms"`
	Providers       []string        `json:"providers"` // settle order of responders
	ProviderErrors  []ProviderError `json:"provider_errors,omitempty"`
	Filters         FacetFilters    `json:"filters"`
	Recommendations Recommendations `json:"recommendations"`
	Insights        PriceInsights   `json:"price_insights"`
	Alerts          []MarketAlert   `json:"alerts,omitempty"`
	Cached          bool            `json:"cached"`
	CreatedAt       time.Time       `json:"created_at"`
}
