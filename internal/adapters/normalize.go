package adapters

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/you/go-farescout/internal/models"
)

// defaultDeepLinkBase fronts checkout handoff for suppliers that expose no
// public booking page of their own.
const defaultDeepLinkBase = "https://go.farescout.example"

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func quoteID(provider, native string) string {
	return provider + ":" + native
}

// deepLink builds the checkout handoff URL for one native offer. Suppliers
// that return their own booking page pass that through instead.
func deepLink(base, provider, native string) string {
	if base == "" {
		base = defaultDeepLinkBase
	}
	return fmt.Sprintf("%s/book/%s/%s", base, provider, url.PathEscape(native))
}

// applyCommission derives the displayed breakdown for providers that only
// return a total. The platform commission is carved out of the total so the
// components still sum to the amount the user sees.
func applyCommission(total, commissionPct float64) models.PriceBreakdown {
	c := round2(total * commissionPct / 100)
	return models.PriceBreakdown{Base: round2(total - c), Commission: c}
}

// quoteExpiry prefers the upstream hold deadline when it is usable,
// otherwise falls back to now+ttl.
func quoteExpiry(now time.Time, ttl time.Duration, upstream time.Time) time.Time {
	if !upstream.IsZero() && upstream.After(now) {
		return upstream
	}
	return now.Add(ttl)
}

// clampRating bounds a supplier score to the 0..5 scale quotes carry.
func clampRating(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 5 {
		return 5
	}
	return round2(score)
}

// parseISODurationMinutes handles the PT2H10M shapes flight APIs return.
func parseISODurationMinutes(s string) int {
	s = strings.TrimPrefix(s, "PT")
	total := 0
	var num strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			num.WriteRune(r)
			continue
		}
		v, _ := strconv.Atoi(num.String())
		num.Reset()
		switch r {
		case 'H':
			total += v * 60
		case 'M':
			total += v
		}
	}
	return total
}

func parseAPITime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	// Some suppliers return naive local timestamps without a zone.
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
