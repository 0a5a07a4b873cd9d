package history

import (
	"math"
	"sort"

	"github.com/you/go-farescout/internal/models"
)

// Statistics computes rolling descriptive statistics over an in-window
// price series. The trend threshold is the relative first-half to
// second-half change (in percent) that flips the direction off stable.
type Statistics struct {
	trendThreshold float64 // fraction, e.g. 0.05
}

func NewStatistics(trendThresholdPct float64) *Statistics {
	return &Statistics{trendThreshold: trendThresholdPct / 100}
}

// Compute derives the full statistics block from the given points. The
// input is not modified; ordering is re-established internally so callers
// may pass points in any order.
func (s *Statistics) Compute(points []models.PricePoint) models.PriceStatistics {
	n := len(points)
	if n == 0 {
		return models.PriceStatistics{}
	}

	ordered := make([]models.PricePoint, n)
	copy(ordered, points)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	prices := make([]float64, n)
	sum := 0.0
	for i, p := range ordered {
		prices[i] = p.Price
		sum += p.Price
	}
	mean := sum / float64(n)

	sorted := make([]float64, n)
	copy(sorted, prices)
	sort.Float64s(sorted)

	stats := models.PriceStatistics{
		Min:            sorted[0],
		Max:            sorted[n-1],
		Mean:           mean,
		Median:         median(sorted),
		Volatility:     stddev(prices, mean),
		TrendDirection: s.trendDirection(prices),
		TrendStrength:  trendStrength(prices),
		SampleCount:    n,
		WindowStart:    ordered[0].Timestamp,
		WindowEnd:      ordered[n-1].Timestamp,
	}
	return stats
}

// median expects an ascending slice.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// stddev is the population standard deviation.
func stddev(prices []float64, mean float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	var ss float64
	for _, p := range prices {
		d := p - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(prices)))
}

// trendDirection compares the mean of the chronological first half against
// the second half. Odd-length series give the extra point to the second half.
func (s *Statistics) trendDirection(prices []float64) models.TrendDirection {
	n := len(prices)
	if n < 2 {
		return models.TrendStable
	}
	first := meanOf(prices[:n/2])
	second := meanOf(prices[n/2:])
	if first == 0 {
		return models.TrendStable
	}
	rel := (second - first) / first
	switch {
	case rel > s.trendThreshold:
		return models.TrendUp
	case rel < -s.trendThreshold:
		return models.TrendDown
	default:
		return models.TrendStable
	}
}

func meanOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// trendStrength is the coefficient of determination (R²) of an OLS fit of
// price against the chronological index. Series shorter than two points or
// with zero price variance report 0.
func trendStrength(prices []float64) float64 {
	n := len(prices)
	if n < 2 {
		return 0
	}
	xbar := float64(n-1) / 2
	ybar := meanOf(prices)

	var sxy, sxx, syy float64
	for i, y := range prices {
		dx := float64(i) - xbar
		dy := y - ybar
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if syy == 0 {
		return 0
	}
	slope := sxy / sxx
	intercept := ybar - slope*xbar

	var ssres float64
	for i, y := range prices {
		fit := intercept + slope*float64(i)
		d := y - fit
		ssres += d * d
	}
	r2 := 1 - ssres/syy
	if r2 < 0 {
		return 0
	}
	if r2 > 1 {
		return 1
	}
	return r2
}
