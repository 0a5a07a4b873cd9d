package search

import (
	"sort"

	"github.com/you/go-farescout/internal/config"
	"github.com/you/go-farescout/internal/models"
)

// Ranker applies the multi-criteria scoring policy. The weighting is policy,
// not implementation: it comes from configuration and its exact output is
// pinned by tests.
type Ranker struct {
	weights         config.RankWeights
	availabilityCap int
}

func NewRanker(weights config.RankWeights, availabilityCap int) *Ranker {
	return &Ranker{weights: weights, availabilityCap: availabilityCap}
}

// Rank returns a new slice sorted by descending score. Ties break on
// provider id, then quote id, so equal-scoring candidates always come back
// in the same order.
func (r *Ranker) Rank(quotes []models.Quote) []models.Quote {
	if len(quotes) == 0 {
		return nil
	}
	minPrice, maxPrice := priceBounds(quotes)

	ranked := make([]models.Quote, len(quotes))
	copy(ranked, quotes)
	scores := make(map[string]float64, len(ranked))
	for i := range ranked {
		scores[ranked[i].ID] = r.Score(&ranked[i], minPrice, maxPrice)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := scores[ranked[i].ID], scores[ranked[j].ID]
		if si != sj {
			return si > sj
		}
		if ranked[i].ProviderID != ranked[j].ProviderID {
			return ranked[i].ProviderID < ranked[j].ProviderID
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked
}

// Score computes the weighted total in [0,1]. Each sub-score is normalized
// before weighting; an equal-priced candidate set scores everyone 1.0 on
// price.
func (r *Ranker) Score(q *models.Quote, minPrice, maxPrice float64) float64 {
	price := 1.0
	if maxPrice > minPrice {
		price = (maxPrice - q.Price.Amount) / (maxPrice - minPrice)
	}

	rating := q.Rating.Score / 5
	if rating < 0 {
		rating = 0
	}
	if rating > 1 {
		rating = 1
	}

	avail := 0.0
	if q.Availability.Available && q.Availability.Remaining > 0 {
		n := q.Availability.Remaining
		if n > r.availabilityCap {
			n = r.availabilityCap
		}
		avail = float64(n) / float64(r.availabilityCap)
	}

	cancel := 0.0
	if q.Cancellation.Refundable {
		cancel = 1.0
	}

	w := r.weights
	return (w.Price*price + w.Rating*rating + w.Availability*avail + w.Refundable*cancel) / 100
}

func priceBounds(quotes []models.Quote) (min, max float64) {
	min, max = quotes[0].Price.Amount, quotes[0].Price.Amount
	for _, q := range quotes[1:] {
		if q.Price.Amount < min {
			min = q.Price.Amount
		}
		if q.Price.Amount > max {
			max = q.Price.Amount
		}
	}
	return min, max
}

// Recommend picks the three headline shortcuts out of a result set. Best
// value maximizes rating per currency unit, quickest minimizes duration
// among quotes that have one, most popular maximizes review volume weighted
// by rating. All ties break on quote id.
func Recommend(quotes []models.Quote) models.Recommendations {
	rec := models.Recommendations{}

	rec.BestValue = topIDs(quotes, 3, func(q *models.Quote) (float64, bool) {
		if q.Price.Amount <= 0 {
			return 0, false
		}
		return q.Rating.Score / q.Price.Amount, true
	})

	rec.Quickest = topIDs(quotes, 3, func(q *models.Quote) (float64, bool) {
		if q.DurationMinutes <= 0 {
			return 0, false
		}
		return -float64(q.DurationMinutes), true
	})

	rec.MostPopular = topIDs(quotes, 3, func(q *models.Quote) (float64, bool) {
		if q.Rating.ReviewCount == 0 {
			return 0, false
		}
		return float64(q.Rating.ReviewCount) * q.Rating.Score, true
	})

	return rec
}

// topIDs returns the ids of the n highest-scoring quotes under score,
// skipping quotes for which score reports false.
func topIDs(quotes []models.Quote, n int, score func(*models.Quote) (float64, bool)) []string {
	type scored struct {
		id    string
		value float64
	}
	eligible := make([]scored, 0, len(quotes))
	for i := range quotes {
		v, ok := score(&quotes[i])
		if !ok {
			continue
		}
		eligible = append(eligible, scored{id: quotes[i].ID, value: v})
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].value != eligible[j].value {
			return eligible[i].value > eligible[j].value
		}
		return eligible[i].id < eligible[j].id
	})
	ids := make([]string, 0, n)
	for i := 0; i < len(eligible) && i < n; i++ {
		ids = append(ids, eligible[i].id)
	}
	return ids
}
