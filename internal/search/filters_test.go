package search

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/you/go-farescout/internal/models"
)

func facetQuote(id string, price float64, duration int, rating float64, reviews int, features ...string) models.Quote {
	return models.Quote{
		ID:              id,
		ProviderID:      "p",
		Price:           models.Price{Amount: price, Currency: "EUR"},
		DurationMinutes: duration,
		Rating:          models.SupplierRating{Score: rating, ReviewCount: reviews},
		Features:        features,
	}
}

func TestBuildFiltersRanges(t *testing.T) {
	quotes := []models.Quote{
		facetQuote("a", 90, 0, 4.0, 10, "wifi", "pool"),
		facetQuote("b", 120, 60, 3.0, 0, "wifi", "spa"),
		facetQuote("c", 100, 45, 4.5, 5, "gym"),
	}

	f := BuildFilters(quotes, 20)
	require.Equal(t, [2]float64{90, 120}, f.PriceRange)
	require.Equal(t, [2]int{45, 60}, f.DurationRange, "zero durations are not applicable, not minimums")
	require.Equal(t, [2]float64{4.0, 4.5}, f.RatingRange, "unreviewed quotes carry no rating signal")
	require.Equal(t, []string{"gym", "pool", "spa", "wifi"}, f.Features)
}

func TestBuildFiltersFeatureCap(t *testing.T) {
	quotes := []models.Quote{
		facetQuote("a", 100, 0, 0, 0, "wifi", "pool", "spa", "gym", "bar"),
	}
	f := BuildFilters(quotes, 3)
	require.Equal(t, []string{"bar", "gym", "pool"}, f.Features)
}

func TestBuildFiltersEmptySet(t *testing.T) {
	f := BuildFilters(nil, 20)
	require.Equal(t, [2]float64{0, 0}, f.PriceRange)
	require.Equal(t, [2]int{0, 0}, f.DurationRange)
	require.Equal(t, [2]float64{0, 0}, f.RatingRange)
	require.Empty(t, f.Features)
}
