package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyCommissionSumsToTotal(t *testing.T) {
	b := applyCommission(200, 2.5)
	assert.Equal(t, 5.0, b.Commission)
	assert.Equal(t, 195.0, b.Base)
	assert.Equal(t, 200.0, b.Base+b.Taxes+b.Fees+b.Commission)
}

func TestApplyCommissionZeroRate(t *testing.T) {
	b := applyCommission(149.99, 0)
	assert.Equal(t, 0.0, b.Commission)
	assert.Equal(t, 149.99, b.Base)
}

func TestQuoteExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ttl := 30 * time.Minute

	t.Run("upstream deadline wins when usable", func(t *testing.T) {
		upstream := now.Add(10 * time.Minute)
		assert.Equal(t, upstream, quoteExpiry(now, ttl, upstream))
	})

	t.Run("zero upstream falls back to ttl", func(t *testing.T) {
		assert.Equal(t, now.Add(ttl), quoteExpiry(now, ttl, time.Time{}))
	})

	t.Run("stale upstream falls back to ttl", func(t *testing.T) {
		assert.Equal(t, now.Add(ttl), quoteExpiry(now, ttl, now.Add(-time.Minute)))
	})
}

func TestClampRating(t *testing.T) {
	assert.Equal(t, 0.0, clampRating(-1))
	assert.Equal(t, 4.27, clampRating(4.268))
	assert.Equal(t, 5.0, clampRating(9.3))
}

func TestDeepLink(t *testing.T) {
	assert.Equal(t, "https://go.farescout.example/book/duffel/off_1", deepLink("", "duffel", "off_1"))
	assert.Equal(t, "https://links.example.com/book/amadeus/7", deepLink("https://links.example.com", "amadeus", "7"))
	assert.Equal(t, "https://go.farescout.example/book/atlas/hotel%2F001", deepLink("", "atlas", "hotel/001"))
}

func TestParseISODurationMinutes(t *testing.T) {
	assert.Equal(t, 130, parseISODurationMinutes("PT2H10M"))
	assert.Equal(t, 150, parseISODurationMinutes("PT150M"))
	assert.Equal(t, 180, parseISODurationMinutes("PT3H"))
	assert.Equal(t, 0, parseISODurationMinutes(""))
}

func TestParseAPITime(t *testing.T) {
	assert.Equal(t,
		time.Date(2026, 9, 10, 8, 45, 0, 0, time.UTC),
		parseAPITime("2026-09-10T08:45:00Z"))
	assert.Equal(t,
		time.Date(2026, 9, 10, 8, 45, 0, 0, time.UTC),
		parseAPITime("2026-09-10T08:45:00"))
	assert.True(t, parseAPITime("yesterday").IsZero())
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrKind
	}{
		{"deadline", context.DeadlineExceeded, ErrTimeout},
		{"url wraps network", &url.Error{Op: "Get", URL: "https://x", Err: errors.New("refused")}, ErrNetwork},
		{"json syntax", &json.SyntaxError{}, ErrParse},
		{"anything else", errors.New("http 502"), ErrUpstream},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ae := Classify("p1", tc.err)
			assert.Equal(t, "p1", ae.Provider)
			assert.Equal(t, tc.want, ae.Kind)
			assert.ErrorIs(t, ae, tc.err)
		})
	}
}

func TestClassifyKeepsExistingAdapterError(t *testing.T) {
	orig := fail("duffel", ErrAuth, "token missing")
	got := Classify("duffel", orig)
	assert.Same(t, orig, got)
}
