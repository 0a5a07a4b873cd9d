package search

import (
	"sort"

	"github.com/you/go-farescout/internal/models"
)

// BuildFilters derives the facet ranges the caller can filter the result set
// by. Duration and rating ranges only consider quotes that actually carry
// those attributes; the feature list is deduplicated, sorted, and capped.
func BuildFilters(quotes []models.Quote, featureCap int) models.FacetFilters {
	var f models.FacetFilters
	if len(quotes) == 0 {
		return f
	}

	f.PriceRange = [2]float64{quotes[0].Price.Amount, quotes[0].Price.Amount}
	for _, q := range quotes[1:] {
		if q.Price.Amount < f.PriceRange[0] {
			f.PriceRange[0] = q.Price.Amount
		}
		if q.Price.Amount > f.PriceRange[1] {
			f.PriceRange[1] = q.Price.Amount
		}
	}

	durSeen := false
	for _, q := range quotes {
		if q.DurationMinutes <= 0 {
			continue
		}
		if !durSeen {
			f.DurationRange = [2]int{q.DurationMinutes, q.DurationMinutes}
			durSeen = true
			continue
		}
		if q.DurationMinutes < f.DurationRange[0] {
			f.DurationRange[0] = q.DurationMinutes
		}
		if q.DurationMinutes > f.DurationRange[1] {
			f.DurationRange[1] = q.DurationMinutes
		}
	}

	ratingSeen := false
	for _, q := range quotes {
		if q.Rating.ReviewCount == 0 {
			continue
		}
		if !ratingSeen {
			f.RatingRange = [2]float64{q.Rating.Score, q.Rating.Score}
			ratingSeen = true
			continue
		}
		if q.Rating.Score < f.RatingRange[0] {
			f.RatingRange[0] = q.Rating.Score
		}
		if q.Rating.Score > f.RatingRange[1] {
			f.RatingRange[1] = q.Rating.Score
		}
	}

	set := map[string]struct{}{}
	for _, q := range quotes {
		for _, feat := range q.Features {
			set[feat] = struct{}{}
		}
	}
	features := make([]string, 0, len(set))
	for feat := range set {
		features = append(features, feat)
	}
	sort.Strings(features)
	if len(features) > featureCap {
		features = features[:featureCap]
	}
	f.Features = features

	return f
}
