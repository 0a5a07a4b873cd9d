package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/you/go-farescout/internal/adapters"
	"github.com/you/go-farescout/internal/booking"
	"github.com/you/go-farescout/internal/cache"
	"github.com/you/go-farescout/internal/config"
	"github.com/you/go-farescout/internal/history"
	"github.com/you/go-farescout/internal/models"
	"github.com/you/go-farescout/internal/obs"
	"github.com/you/go-farescout/internal/registry"
)

type stubAdapter struct {
	id     string
	quotes []models.Quote
	err    error
	delay  time.Duration
	hang   bool
	calls  atomic.Int32
}

func (s *stubAdapter) Descriptor() registry.Descriptor {
	return registry.Descriptor{
		ID:          s.id,
		DisplayName: s.id,
		ItemTypes:   []models.ItemType{models.ItemHotel},
		Currencies:  []string{"EUR"},
	}
}

func (s *stubAdapter) Search(ctx context.Context, _ models.SearchRequest) ([]models.Quote, error) {
	s.calls.Add(1)
	if s.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.Quote, len(s.quotes))
	copy(out, s.quotes)
	return out, nil
}

func hotelQuote(provider, native string, price float64) models.Quote {
	return models.Quote{
		ID:         provider + ":" + native,
		ProviderID: provider,
		ItemType:   models.ItemHotel,
		Title:      "Hotel " + native,
		Price: models.Price{
			Amount:    price,
			Currency:  "EUR",
			Breakdown: models.PriceBreakdown{Base: price},
		},
		Availability: models.Availability{Available: true, Remaining: 5, ExpiresAt: time.Now().Add(time.Hour)},
		Cancellation: models.CancellationTerms{Refundable: true},
		Rating:       models.SupplierRating{Score: 4.0, ReviewCount: 120},
	}
}

func hotelRequest() models.SearchRequest {
	return models.SearchRequest{
		ItemType: models.ItemHotel,
		Criteria: models.SearchCriteria{
			Destination: "PAR",
			StartDate:   "2026-09-10",
			EndDate:     "2026-09-12",
			Occupancy:   1,
		},
		Travelers: models.Travelers{Adults: 2},
		Currency:  "EUR",
	}
}

func testSearchConfig() *config.Config {
	return &config.Config{
		SearchDeadline:    2 * time.Second,
		AdapterTimeout:    150 * time.Millisecond,
		MaxConcurrency:    4,
		ProviderCacheTTL:  time.Minute,
		AggregateCacheTTL: 2 * time.Minute,
		QuoteTTL:          30 * time.Minute,
		QuotaCapacity:     100,
		QuotaRefill:       time.Minute,
		HistoryRetention:  90 * 24 * time.Hour,
		Weights:           testWeights(),
		AvailabilityCap:   10,
		FeatureCap:        20,
		Prediction: config.PredictionPolicy{
			TrendThresholdPct: 5,
			DropAlertPct:      15,
			SpikeMinStrength:  0.6,
			WeekBandFactor:    0.5,
			MonthBandFactor:   1.5,
			MinConfidence:     0.2,
			LowAvailability:   3,
			RecentTrendDays:   7,
			BookSoonDays:      1,
			BookStableDays:    7,
			BookWaitDays:      14,
		},
	}
}

func newTestOrchestrator(t *testing.T, cfg *config.Config, adp ...adapters.Adapter) (*Orchestrator, *history.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := history.NewStore(cfg.HistoryRetention,
		history.NewStatistics(cfg.Prediction.TrendThresholdPct),
		history.NewPredictor(cfg.Prediction), logger)
	mem := cache.NewMemory(0)
	t.Cleanup(func() { _ = mem.Close() })

	o := NewOrchestrator(cfg, registry.New(), mem, store,
		booking.NewSigner("test-secret"), obs.NewMetrics(prometheus.NewRegistry()), logger)
	for _, a := range adp {
		require.NoError(t, o.RegisterAdapter(a))
	}
	return o, store
}

// Three hotel adapters: one returns two quotes, one returns the cheapest
// quote after a short delay, one hangs until its timeout. The search must
// come back partial, ranked cheapest-first, positioned low against seeded
// history, and bounded by the adapter timeout rather than the hang.
func TestSearchEndToEndHotelScenario(t *testing.T) {
	cfg := testSearchConfig()
	alpha := &stubAdapter{id: "alpha", quotes: []models.Quote{
		hotelQuote("alpha", "h1", 100),
		hotelQuote("alpha", "h2", 120),
	}}
	bravo := &stubAdapter{id: "bravo", delay: 20 * time.Millisecond, quotes: []models.Quote{
		hotelQuote("bravo", "h1", 90),
	}}
	charlie := &stubAdapter{id: "charlie", hang: true}
	o, store := newTestOrchestrator(t, cfg, alpha, bravo, charlie)

	req := hotelRequest()
	now := time.Now()
	store.Record(context.Background(), req.ItemID(), req.ItemType, req.CriteriaKey(),
		models.PricePoint{Timestamp: now.Add(-48 * time.Hour), Price: 150, Currency: "EUR", ProviderID: "alpha", Available: true, Source: "search", Confidence: 1},
		models.PricePoint{Timestamp: now.Add(-24 * time.Hour), Price: 150, Currency: "EUR", ProviderID: "bravo", Available: true, Source: "search", Confidence: 1},
	)

	started := time.Now()
	res, err := o.Search(context.Background(), req)
	elapsed := time.Since(started)

	require.NoError(t, err)
	require.Equal(t, models.SearchPartial, res.Status)
	require.Len(t, res.Results, 3)
	require.Equal(t, 3, res.TotalCount)
	require.Equal(t, 90.0, res.Results[0].Price.Amount, "cheapest quote ranks first, all else equal")
	require.Equal(t, []string{"alpha", "bravo"}, res.Providers)
	require.Len(t, res.ProviderErrors, 1)
	require.Equal(t, "charlie", res.ProviderErrors[0].Provider)
	require.Equal(t, "timeout", res.ProviderErrors[0].Kind)
	require.False(t, res.Cached)
	require.Less(t, elapsed, time.Second,
		"search latency must be bounded by the adapter timeout, not the hung adapter")

	require.Equal(t, models.PositionLow, res.Insights.PricePosition)
	require.Equal(t, 122.5, res.Insights.MarketAverage)

	kinds := make(map[models.AlertKind]bool)
	for _, a := range res.Alerts {
		kinds[a.Kind] = true
	}
	require.True(t, kinds[models.AlertPriceDrop], "90 sits more than 15%% below the window mean")
	require.True(t, kinds[models.AlertAvailabilityLow], "only two providers reported availability")

	for _, q := range res.Results {
		require.NotEmpty(t, q.Voucher, "every surfaced quote carries a voucher")
	}
}

func TestSearchHungAdapterIsBounded(t *testing.T) {
	cfg := testSearchConfig()
	cfg.AdapterTimeout = 100 * time.Millisecond
	cfg.SearchDeadline = 5 * time.Second
	good := &stubAdapter{id: "good", quotes: []models.Quote{hotelQuote("good", "h1", 110)}}
	hung := &stubAdapter{id: "hung", hang: true}
	o, _ := newTestOrchestrator(t, cfg, good, hung)

	started := time.Now()
	res, err := o.Search(context.Background(), hotelRequest())
	elapsed := time.Since(started)

	require.NoError(t, err)
	require.Equal(t, models.SearchPartial, res.Status)
	require.Len(t, res.Results, 1)
	require.GreaterOrEqual(t, elapsed, 90*time.Millisecond)
	require.Less(t, elapsed, time.Second)
}

func TestCancelSearchResolvesPromptly(t *testing.T) {
	cfg := testSearchConfig()
	cfg.SearchDeadline = 5 * time.Second
	hung := &stubAdapter{id: "hung", hang: true}
	o, _ := newTestOrchestrator(t, cfg, hung)

	type outcome struct {
		res *models.ComparisonResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := o.Search(context.Background(), hotelRequest())
		done <- outcome{res, err}
	}()

	var id string
	require.Eventually(t, func() bool {
		running := o.Running()
		if len(running) == 0 {
			return false
		}
		id = running[0]
		return true
	}, time.Second, 5*time.Millisecond)

	cancelAt := time.Now()
	require.NoError(t, o.CancelSearch(id))

	select {
	case out := <-done:
		require.NoError(t, out.err)
		require.Equal(t, models.SearchCancelled, out.res.Status)
		require.Empty(t, out.res.Results, "no provider had settled before the cancel")
		require.Less(t, time.Since(cancelAt), 500*time.Millisecond,
			"cancellation must resolve the search well before the deadline")
	case <-time.After(2 * time.Second):
		t.Fatal("search did not resolve after cancellation")
	}

	require.ErrorIs(t, o.CancelSearch("unknown-id"), models.ErrNotFound)
	require.Zero(t, o.ActiveSearches())
}

// Cancelling mid-flight keeps what already settled: the fast adapter's quote
// comes back ranked and signed under the cancelled status, while the adapter
// still blocked at cancel time contributes neither quotes nor an error entry.
func TestCancelSearchReturnsSettledQuotes(t *testing.T) {
	cfg := testSearchConfig()
	cfg.SearchDeadline = 5 * time.Second
	fast := &stubAdapter{id: "fast", quotes: []models.Quote{hotelQuote("fast", "h1", 100)}}
	slow := &stubAdapter{id: "slow", hang: true}
	o, store := newTestOrchestrator(t, cfg, fast, slow)
	req := hotelRequest()

	type outcome struct {
		res *models.ComparisonResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := o.Search(context.Background(), req)
		done <- outcome{res, err}
	}()

	var id string
	require.Eventually(t, func() bool {
		running := o.Running()
		if len(running) == 0 {
			return false
		}
		id = running[0]
		for _, h := range o.ProviderStatus() {
			if h.Provider == "fast" && !h.LastSuccess.IsZero() {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond, "fast adapter settles before the cancel")

	require.NoError(t, o.CancelSearch(id))

	select {
	case out := <-done:
		require.NoError(t, out.err)
		require.Equal(t, models.SearchCancelled, out.res.Status)
		require.Len(t, out.res.Results, 1)
		require.Equal(t, "fast:h1", out.res.Results[0].ID)
		require.NotEmpty(t, out.res.Results[0].Voucher, "settled quotes are signed like any other")
		require.Equal(t, 1, out.res.TotalCount)
		require.Equal(t, []string{"fast"}, out.res.Providers)
		require.Empty(t, out.res.ProviderErrors, "an adapter aborted by the caller is not a failure")
	case <-time.After(2 * time.Second):
		t.Fatal("search did not resolve after cancellation")
	}

	_, ok := store.Get(context.Background(), req.ItemID())
	require.False(t, ok, "a cancelled search leaves no history behind")
}

func TestSearchPartialOnProviderFailure(t *testing.T) {
	cfg := testSearchConfig()
	good := &stubAdapter{id: "good", quotes: []models.Quote{hotelQuote("good", "h1", 100)}}
	bad := &stubAdapter{id: "bad", err: errors.New("upstream exploded")}
	o, _ := newTestOrchestrator(t, cfg, good, bad)

	res, err := o.Search(context.Background(), hotelRequest())
	require.NoError(t, err)
	require.Equal(t, models.SearchPartial, res.Status)
	require.Equal(t, []string{"good"}, res.Providers)
	require.Len(t, res.ProviderErrors, 1)
	require.Equal(t, "bad", res.ProviderErrors[0].Provider)
	require.Equal(t, "upstream", res.ProviderErrors[0].Kind)

	for _, h := range o.ProviderStatus() {
		switch h.Provider {
		case "bad":
			require.Equal(t, models.ProviderDegraded, h.State)
			require.Equal(t, 1, h.ConsecutiveFailures)
		case "good":
			require.Equal(t, models.ProviderOK, h.State)
		}
	}
	require.False(t, o.Degraded())
}

func TestSearchAllProvidersFailed(t *testing.T) {
	cfg := testSearchConfig()
	a := &stubAdapter{id: "a", err: errors.New("boom")}
	b := &stubAdapter{id: "b", err: errors.New("bang")}
	o, store := newTestOrchestrator(t, cfg, a, b)

	req := hotelRequest()
	res, err := o.Search(context.Background(), req)

	var allErr *models.AllProvidersFailedError
	require.ErrorAs(t, err, &allErr)
	require.Len(t, allErr.Errors, 2)

	require.NotNil(t, res)
	require.Equal(t, models.SearchFailed, res.Status)
	require.Empty(t, res.Results)
	require.Len(t, res.ProviderErrors, 2)

	_, ok := store.Get(context.Background(), req.ItemID())
	require.False(t, ok, "a failed search must not leave history behind")
}

func TestSearchServedFromAggregateCache(t *testing.T) {
	cfg := testSearchConfig()
	prov := &stubAdapter{id: "solo", quotes: []models.Quote{hotelQuote("solo", "h1", 150)}}
	o, _ := newTestOrchestrator(t, cfg, prov)

	res1, err := o.Search(context.Background(), hotelRequest())
	require.NoError(t, err)
	require.False(t, res1.Cached)
	require.EqualValues(t, 1, prov.calls.Load())

	res2, err := o.Search(context.Background(), hotelRequest())
	require.NoError(t, err)
	require.True(t, res2.Cached)
	require.Equal(t, res1.RequestID, res2.RequestID, "a cached answer keeps its original request id")
	require.Equal(t, quoteIDs(res1.Results), quoteIDs(res2.Results))
	for i := range res1.Results {
		require.Equal(t, res1.Results[i].Voucher, res2.Results[i].Voucher,
			"cached quotes keep the vouchers they were signed with")
	}
	require.EqualValues(t, 1, prov.calls.Load(), "cache hit must not call the adapter")

	// A different budget ceiling is a different request shape.
	req3 := hotelRequest()
	req3.BudgetCeiling = 500
	_, err = o.Search(context.Background(), req3)
	require.NoError(t, err)
	require.EqualValues(t, 2, prov.calls.Load())
}

func TestProviderCacheShortCircuitsAdapter(t *testing.T) {
	cfg := testSearchConfig()
	cfg.AggregateCacheTTL = 0 // aggregate layer off, provider layer on
	prov := &stubAdapter{id: "solo", quotes: []models.Quote{hotelQuote("solo", "h1", 150)}}
	o, _ := newTestOrchestrator(t, cfg, prov)

	res1, err := o.Search(context.Background(), hotelRequest())
	require.NoError(t, err)
	require.False(t, res1.Cached)

	res2, err := o.Search(context.Background(), hotelRequest())
	require.NoError(t, err)
	require.False(t, res2.Cached, "the comparison was rebuilt, only the provider call was saved")
	require.EqualValues(t, 1, prov.calls.Load())
	require.Equal(t, quoteIDs(res1.Results), quoteIDs(res2.Results))
}

func TestSearchQuotaExceeded(t *testing.T) {
	cfg := testSearchConfig()
	cfg.QuotaCapacity = 1
	cfg.QuotaRefill = time.Hour
	prov := &stubAdapter{id: "solo", quotes: []models.Quote{hotelQuote("solo", "h1", 150)}}
	o, _ := newTestOrchestrator(t, cfg, prov)

	_, err := o.Search(context.Background(), hotelRequest())
	require.NoError(t, err)

	other := hotelRequest()
	other.Criteria.Destination = "ROM"
	_, err = o.Search(context.Background(), other)
	require.ErrorIs(t, err, models.ErrQuotaExceeded)
	require.EqualValues(t, 1, prov.calls.Load(), "quota rejection happens before any provider call")

	// The cache still answers for shapes it already holds.
	res, err := o.Search(context.Background(), hotelRequest())
	require.NoError(t, err)
	require.True(t, res.Cached)
}

func TestSearchNoProvidersForItemType(t *testing.T) {
	cfg := testSearchConfig()
	prov := &stubAdapter{id: "hotelier", quotes: []models.Quote{hotelQuote("hotelier", "h1", 150)}}
	o, _ := newTestOrchestrator(t, cfg, prov)

	req := hotelRequest()
	req.ItemType = models.ItemFlight
	req.Criteria.Origin = "AMS"
	_, err := o.Search(context.Background(), req)
	require.ErrorIs(t, err, models.ErrNoProviders)
}

func TestSearchEmptyProviderResponseIsValid(t *testing.T) {
	cfg := testSearchConfig()
	prov := &stubAdapter{id: "solo"}
	o, store := newTestOrchestrator(t, cfg, prov)

	res, err := o.Search(context.Background(), hotelRequest())
	require.NoError(t, err)
	require.Equal(t, models.SearchCompleted, res.Status)
	require.Empty(t, res.Results)
	require.Equal(t, []string{"solo"}, res.Providers)
	require.Zero(t, store.Len(), "no quotes means no history points")
}

func TestSearchRecordsHistorySnapshot(t *testing.T) {
	cfg := testSearchConfig()
	alpha := &stubAdapter{id: "alpha", quotes: []models.Quote{
		hotelQuote("alpha", "h1", 100),
		hotelQuote("alpha", "h2", 120),
	}}
	bravo := &stubAdapter{id: "bravo", quotes: []models.Quote{hotelQuote("bravo", "h1", 90)}}
	o, store := newTestOrchestrator(t, cfg, alpha, bravo)

	req := hotelRequest()
	_, err := o.Search(context.Background(), req)
	require.NoError(t, err)

	h, ok := store.Get(context.Background(), req.ItemID())
	require.True(t, ok)
	require.Len(t, h.Points, 2, "one point per responding provider, cheapest quote each")
	require.True(t, h.Points[0].Timestamp.Equal(h.Points[1].Timestamp),
		"one search records one snapshot timestamp")
	require.Equal(t, "alpha", h.Points[0].ProviderID)
	require.Equal(t, 100.0, h.Points[0].Price)
	require.Equal(t, "bravo", h.Points[1].ProviderID)
	require.Equal(t, 90.0, h.Points[1].Price)
	for _, p := range h.Points {
		require.Equal(t, "search", p.Source)
		require.Equal(t, 1.0, p.Confidence)
		require.True(t, p.Available)
	}
	require.NotNil(t, h.Statistics)
	require.Equal(t, 95.0, h.Statistics.Mean)

	// A cache-served repeat must not double-record the snapshot.
	_, err = o.Search(context.Background(), req)
	require.NoError(t, err)
	h2, ok := store.Get(context.Background(), req.ItemID())
	require.True(t, ok)
	require.Len(t, h2.Points, 2)
}

func TestSearchRejectsInvalidRequest(t *testing.T) {
	cfg := testSearchConfig()
	prov := &stubAdapter{id: "solo", quotes: []models.Quote{hotelQuote("solo", "h1", 150)}}
	o, _ := newTestOrchestrator(t, cfg, prov)

	_, err := o.Search(context.Background(), models.SearchRequest{ItemType: models.ItemHotel})
	require.Error(t, err)
	require.Contains(t, err.Error(), "destination is required")
	require.Zero(t, prov.calls.Load())
}

func TestSearchDeterministicAcrossInstances(t *testing.T) {
	build := func() (*Orchestrator, models.SearchRequest) {
		cfg := testSearchConfig()
		alpha := &stubAdapter{id: "alpha", quotes: []models.Quote{
			hotelQuote("alpha", "h1", 100),
			hotelQuote("alpha", "h2", 95),
		}}
		bravo := &stubAdapter{id: "bravo", quotes: []models.Quote{hotelQuote("bravo", "h1", 95)}}
		o, _ := newTestOrchestrator(t, cfg, alpha, bravo)
		return o, hotelRequest()
	}

	o1, req1 := build()
	o2, req2 := build()
	res1, err := o1.Search(context.Background(), req1)
	require.NoError(t, err)
	res2, err := o2.Search(context.Background(), req2)
	require.NoError(t, err)
	require.Equal(t, quoteIDs(res1.Results), quoteIDs(res2.Results))
}

func quoteIDs(quotes []models.Quote) []string {
	ids := make([]string, len(quotes))
	for i, q := range quotes {
		ids[i] = q.ID
	}
	return ids
}
