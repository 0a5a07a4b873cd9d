package adapters

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/you/go-farescout/internal/config"
	"github.com/you/go-farescout/internal/models"
	"github.com/you/go-farescout/internal/registry"
)

// Fixture is an offline provider that fabricates plausible quotes. It backs
// demo mode when no upstream credentials are configured, and tests use its
// delay and failure hooks to script provider behavior. Output is a pure
// function of (provider id, criteria), so repeat searches see stable prices.
type Fixture struct {
	desc     registry.Descriptor
	quoteTTL time.Duration
	linkBase string

	delay    time.Duration
	failWith error
	calls    atomic.Int32
	now      func() time.Time
}

func NewFixture(id, displayName string, cfg *config.Config) *Fixture {
	return &Fixture{
		desc: registry.Descriptor{
			ID:          id,
			DisplayName: displayName,
			ItemTypes: []models.ItemType{
				models.ItemFlight, models.ItemHotel, models.ItemCar, models.ItemActivity,
			},
			Capabilities: registry.CapSearch | registry.CapBook | registry.CapModify |
				registry.CapCancel | registry.CapRealTimeInventory,
			CommissionPct: 3.0,
			Currencies:    []string{"EUR", "USD"},
			Regions:       []string{"global"},
		},
		quoteTTL: cfg.QuoteTTL,
		linkBase: cfg.DeepLinkBase,
		now:      time.Now,
	}
}

func (f *Fixture) Descriptor() registry.Descriptor { return f.desc }

// WithDelay makes every Search sleep before answering. Test hook.
func (f *Fixture) WithDelay(d time.Duration) *Fixture {
	f.delay = d
	return f
}

// WithFailure makes every Search return err. Test hook.
func (f *Fixture) WithFailure(err error) *Fixture {
	f.failWith = err
	return f
}

// Calls reports how many times Search has been invoked.
func (f *Fixture) Calls() int32 { return f.calls.Load() }

type fixtureShape struct {
	priceLo, priceHi float64
	durLo, durHi     int
	titles           []string
	features         []string
}

var fixtureShapes = map[models.ItemType]fixtureShape{
	models.ItemFlight: {
		priceLo: 120, priceHi: 800, durLo: 90, durHi: 600,
		titles:   []string{"Nonstop", "One-stop", "Red-eye", "Morning departure"},
		features: []string{"direct", "economy", "refundable", "checked_bag", "wifi"},
	},
	models.ItemHotel: {
		priceLo: 80, priceHi: 400,
		titles:   []string{"Central Plaza", "Harbor View", "Old Town Suites", "Garden Inn"},
		features: []string{"wifi", "breakfast", "pool", "parking", "free_cancellation", "spa"},
	},
	models.ItemCar: {
		priceLo: 30, priceHi: 150,
		titles:   []string{"Compact", "Midsize SUV", "Economy", "Estate"},
		features: []string{"automatic", "unlimited_km", "free_cancellation", "gps", "child_seat"},
	},
	models.ItemActivity: {
		priceLo: 20, priceHi: 200, durLo: 60, durHi: 300,
		titles:   []string{"City Walking Tour", "Museum Pass", "Food Market Tour", "River Cruise"},
		features: []string{"guided", "skip_the_line", "free_cancellation", "small_group"},
	},
}

func (f *Fixture) Search(ctx context.Context, sr models.SearchRequest) ([]models.Quote, error) {
	f.calls.Add(1)
	if f.failWith != nil {
		return nil, Classify(f.desc.ID, f.failWith)
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	shape := fixtureShapes[sr.ItemType]
	rng := rand.New(rand.NewSource(fixtureSeed(f.desc.ID, sr.CriteriaKey())))
	now := f.now()

	n := 3 + rng.Intn(4)
	out := make([]models.Quote, 0, n)
	for i := 0; i < n; i++ {
		total := round2(shape.priceLo + rng.Float64()*(shape.priceHi-shape.priceLo))
		refundable := rng.Intn(3) > 0
		remaining := 1 + rng.Intn(9)
		dur := 0
		if shape.durHi > 0 {
			dur = shape.durLo + rng.Intn(shape.durHi-shape.durLo)
		}

		features := pickFeatures(rng, shape.features)
		if refundable {
			features = appendUnique(features, "refundable")
		}

		cancel := models.CancellationTerms{Refundable: refundable}
		if refundable {
			deadline := now.Add(24 * time.Hour * time.Duration(1+rng.Intn(5)))
			cancel.Deadline = &deadline
			cancel.PenaltyPct = float64(rng.Intn(3)) * 10
		}

		native := fmt.Sprintf("%s-%03d", sr.ItemType, i+1)
		out = append(out, models.Quote{
			ID:         quoteID(f.desc.ID, native),
			ProviderID: f.desc.ID,
			ItemType:   sr.ItemType,
			Title:      fmt.Sprintf("%s %s-%s", shape.titles[rng.Intn(len(shape.titles))], sr.Criteria.Origin, sr.Criteria.Destination),
			Price: models.Price{
				Amount:    total,
				Currency:  sr.Currency,
				Breakdown: applyCommission(total, f.desc.CommissionPct),
			},
			Availability: models.Availability{
				Available: true,
				Remaining: remaining,
				ExpiresAt: now.Add(f.quoteTTL),
			},
			Cancellation: cancel,
			Rating: models.SupplierRating{
				Score:       clampRating(3 + rng.Float64()*2),
				ReviewCount: 20 + rng.Intn(1980),
			},
			DurationMinutes: dur,
			Features:        features,
			DeepLink:        deepLink(f.linkBase, f.desc.ID, native),
		})
	}
	return out, nil
}

func fixtureSeed(id, criteriaKey string) int64 {
	h := fnv.New64a()
	h.Write([]byte(id))
	h.Write([]byte{'|'})
	h.Write([]byte(criteriaKey))
	return int64(h.Sum64())
}

func pickFeatures(rng *rand.Rand, pool []string) []string {
	n := 1 + rng.Intn(3)
	if n > len(pool) {
		n = len(pool)
	}
	perm := rng.Perm(len(pool))
	out := make([]string, 0, n)
	for _, idx := range perm[:n] {
		out = append(out, pool[idx])
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}
