package history

import (
	"sort"
	"time"

	"github.com/you/go-farescout/internal/config"
	"github.com/you/go-farescout/internal/models"
)

// Predictor projects near-term price bands and derives market alerts from a
// price series plus its statistics. Every constant it applies comes from the
// policy, so the model can be tuned without code changes.
type Predictor struct {
	policy config.PredictionPolicy
}

func NewPredictor(policy config.PredictionPolicy) *Predictor {
	return &Predictor{policy: policy}
}

// Predict returns nil when there is nothing to project.
func (p *Predictor) Predict(itemID string, points []models.PricePoint, stats models.PriceStatistics, now time.Time) *models.PricePrediction {
	if len(points) == 0 {
		return nil
	}

	slope := p.dailySlope(points, now)
	conf := p.confidence(stats)

	pred := &models.PricePrediction{
		NextWeek:       p.band(stats, slope, 7, p.policy.WeekBandFactor, conf),
		NextMonth:      p.band(stats, slope, 30, p.policy.MonthBandFactor, conf),
		BestTimeToBook: p.bestTimeToBook(stats.TrendDirection, now),
		Alerts:         p.alerts(itemID, points, stats, now),
		GeneratedAt:    now,
	}
	return pred
}

// dailySlope fits price against days-elapsed over the recent trend window.
func (p *Predictor) dailySlope(points []models.PricePoint, now time.Time) float64 {
	cutoff := now.AddDate(0, 0, -p.policy.RecentTrendDays)
	var recent []models.PricePoint
	for _, pt := range points {
		if !pt.Timestamp.Before(cutoff) {
			recent = append(recent, pt)
		}
	}
	if len(recent) < 2 {
		return 0
	}
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].Timestamp.Before(recent[j].Timestamp)
	})

	t0 := recent[0].Timestamp
	var xbar, ybar float64
	xs := make([]float64, len(recent))
	for i, pt := range recent {
		xs[i] = pt.Timestamp.Sub(t0).Hours() / 24
		xbar += xs[i]
		ybar += pt.Price
	}
	xbar /= float64(len(recent))
	ybar /= float64(len(recent))

	var sxy, sxx float64
	for i, pt := range recent {
		dx := xs[i] - xbar
		sxy += dx * (pt.Price - ybar)
		sxx += dx * dx
	}
	if sxx == 0 {
		return 0
	}
	return sxy / sxx
}

func (p *Predictor) band(stats models.PriceStatistics, slope float64, horizonDays int, factor, conf float64) models.PriceBand {
	center := stats.Mean + slope*float64(horizonDays)
	if center < 0 {
		center = 0
	}
	low := center - factor*stats.Volatility
	if low < 0 {
		low = 0
	}
	return models.PriceBand{
		Low:        low,
		High:       center + factor*stats.Volatility,
		Confidence: conf,
	}
}

func (p *Predictor) confidence(stats models.PriceStatistics) float64 {
	if stats.Mean <= 0 {
		return p.policy.MinConfidence
	}
	conf := 1 - stats.Volatility/stats.Mean
	if conf < p.policy.MinConfidence {
		return p.policy.MinConfidence
	}
	if conf > 1 {
		return 1
	}
	return conf
}

func (p *Predictor) bestTimeToBook(dir models.TrendDirection, now time.Time) time.Time {
	switch dir {
	case models.TrendUp:
		return now.AddDate(0, 0, p.policy.BookSoonDays)
	case models.TrendDown:
		return now.AddDate(0, 0, p.policy.BookWaitDays)
	default:
		return now.AddDate(0, 0, p.policy.BookStableDays)
	}
}

// alerts inspects the latest search snapshot (the points sharing the most
// recent timestamp) against the window statistics.
func (p *Predictor) alerts(itemID string, points []models.PricePoint, stats models.PriceStatistics, now time.Time) []models.MarketAlert {
	var latest time.Time
	for _, pt := range points {
		if pt.Timestamp.After(latest) {
			latest = pt.Timestamp
		}
	}

	currentMin := 0.0
	providers := map[string]struct{}{}
	for _, pt := range points {
		if !pt.Timestamp.Equal(latest) || !pt.Available {
			continue
		}
		providers[pt.ProviderID] = struct{}{}
		if currentMin == 0 || pt.Price < currentMin {
			currentMin = pt.Price
		}
	}

	var out []models.MarketAlert
	dropFloor := stats.Mean * (1 - p.policy.DropAlertPct/100)
	if currentMin > 0 && stats.Mean > 0 && currentMin < dropFloor {
		pct := (1 - currentMin/stats.Mean) * 100
		out = append(out, models.NewMarketAlert(itemID, models.AlertPriceDrop, models.UrgencyHigh,
			"current low %.2f is %.0f%% below the %.2f average", currentMin, pct, stats.Mean))
	}
	if len(providers) < p.policy.LowAvailability {
		out = append(out, models.NewMarketAlert(itemID, models.AlertAvailabilityLow, models.UrgencyMedium,
			"only %d providers report availability", len(providers)))
	}
	if stats.TrendDirection == models.TrendUp && stats.TrendStrength > p.policy.SpikeMinStrength {
		out = append(out, models.NewMarketAlert(itemID, models.AlertPriceSpike, models.UrgencyMedium,
			"prices trending up with strength %.2f", stats.TrendStrength))
	}
	for i := range out {
		out[i].CreatedAt = now
	}
	return out
}
