package models

import (
	"fmt"
	"time"
)

// PriceBreakdown decomposes a quote total. Components always sum to the total.
type PriceBreakdown struct {
	Base       float64 `json:"base"`
	Taxes      float64 `json:"taxes"`
	Fees       float64 `json:"fees"`
	Commission float64 `json:"commission"`
}

// Price is an amount with currency and its reconstructed breakdown.
type Price struct {
	Amount    float64        `json:"amount"`
	Currency  string         `json:"currency"`
	Breakdown PriceBreakdown `json:"breakdown"`
}

// Availability bounds how long and for how many units a quote is bookable.
type Availability struct {
	Available bool      `json:"available"`
	Remaining int       `json:"remaining"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CancellationTerms captures the refund policy attached to a quote.
type CancellationTerms struct {
	Refundable bool       `json:"refundable"`
	Deadline   *time.Time `json:"deadline,omitempty"`
	PenaltyPct float64    `json:"penalty_pct,omitempty"`
}

// SupplierRating is the provider-reported quality signal.
type SupplierRating struct {
	Score       float64 `json:"score"` // 0..5
	ReviewCount int     `json:"review_count"`
}

// Quote is a normalized, priced, time-bounded offer from one provider.
// Immutable once produced by an adapter; must never be surfaced as bookable
// past Availability.ExpiresAt.
type Quote struct {
	ID              string            `json:"id"` // providerID:nativeID, unique across providers
	ProviderID      string            `json:"provider_id"`
	ItemType        ItemType          `json:"item_type"`
	Title           string            `json:"title"`
	Description     string            `json:"description,omitempty"`
	Price           Price             `json:"price"`
	Availability    Availability      `json:"availability"`
	Cancellation    CancellationTerms `json:"cancellation"`
	Rating          SupplierRating    `json:"rating"`
	DurationMinutes int               `json:"duration_minutes,omitempty"` // 0 = not applicable
	Features        []string          `json:"features,omitempty"`
	DeepLink        string            `json:"deep_link,omitempty"`
	Voucher         string            `json:"voucher,omitempty"` // signed booking token
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Expired reports whether the quote may no longer be booked.
func (q *Quote) Expired(now time.Time) bool {
	return !now.Before(q.Availability.ExpiresAt)
}

// Validate checks the invariants every adapter must uphold at creation time.
func (q *Quote) Validate(now time.Time) error {
	if q.ID == "" || q.ProviderID == "" {
		return fmt.Errorf("quote missing identity")
	}
	if q.Price.Amount < 0 {
		return fmt.Errorf("quote %s: negative price %.2f", q.ID, q.Price.Amount)
	}
	if !q.Availability.ExpiresAt.After(now) {
		return fmt.Errorf("quote %s: already expired at creation", q.ID)
	}
	return nil
}
