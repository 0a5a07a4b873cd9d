package search

import (
	"github.com/you/go-farescout/internal/models"
)

// BuildInsights positions the cheapest current offer against the historical
// window mean. Returns nil when there is no usable history, in which case the
// result carries a zero-value insights block.
func BuildInsights(cheapest float64, stats *models.PriceStatistics) *models.PriceInsights {
	if stats == nil || stats.Mean <= 0 {
		return nil
	}
	in := &models.PriceInsights{MarketAverage: stats.Mean}

	switch {
	case cheapest < 0.9*stats.Mean:
		in.PricePosition = models.PositionLow
	case cheapest > 1.1*stats.Mean:
		in.PricePosition = models.PositionHigh
	default:
		in.PricePosition = models.PositionAverage
	}

	if savings := (stats.Mean - cheapest) / stats.Mean * 100; savings > 0 {
		in.SavingsPercent = savings
	}

	switch in.PricePosition {
	case models.PositionLow:
		in.Recommendation = "Current prices are below the recent average. Good time to book."
	case models.PositionHigh:
		in.Recommendation = "Current prices are above the recent average. Consider waiting or setting an alert."
	default:
		in.Recommendation = "Current prices are in line with the recent average."
	}
	return in
}
