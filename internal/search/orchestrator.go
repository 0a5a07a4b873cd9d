// Package search runs the provider fan-out that answers one comparison
// request, layers the caches in front of it, and feeds every completed
// search into the price history.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/you/go-farescout/internal/adapters"
	"github.com/you/go-farescout/internal/cache"
	"github.com/you/go-farescout/internal/config"
	"github.com/you/go-farescout/internal/models"
	"github.com/you/go-farescout/internal/obs"
	"github.com/you/go-farescout/internal/registry"
)

// QuoteSigner mints the booking voucher carried by each ranked quote.
type QuoteSigner interface {
	Issue(q *models.Quote) (string, error)
}

// HistoryRecorder is the slice of the history store the orchestrator needs.
type HistoryRecorder interface {
	Record(ctx context.Context, itemID string, itemType models.ItemType, criteriaKey string, points ...models.PricePoint)
	Get(ctx context.Context, itemID string) (*models.PriceHistory, bool)
}

// Orchestrator owns one search end to end: adapter selection, bounded
// concurrent dispatch, cache layering, ranking, and history recording.
type Orchestrator struct {
	cfg      *config.Config
	registry *registry.Registry
	cache    cache.Cache
	history  HistoryRecorder
	quota    *Quota
	ranker   *Ranker
	signer   QuoteSigner
	status   *StatusBoard
	metrics  *obs.Metrics
	logger   *slog.Logger
	now      func() time.Time

	mu          sync.Mutex
	adapters    map[string]adapters.Adapter
	active      map[string]context.CancelFunc
	lastRequest map[string]models.SearchRequest // by item id, feeds watch re-runs
}

func NewOrchestrator(cfg *config.Config, reg *registry.Registry, c cache.Cache, h HistoryRecorder, signer QuoteSigner, metrics *obs.Metrics, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		registry:    reg,
		cache:       c,
		history:     h,
		quota:       NewQuota(cfg.QuotaCapacity, cfg.QuotaRefill),
		ranker:      NewRanker(cfg.Weights, cfg.AvailabilityCap),
		signer:      signer,
		status:      NewStatusBoard(),
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
		adapters:    make(map[string]adapters.Adapter),
		active:      make(map[string]context.CancelFunc),
		lastRequest: make(map[string]models.SearchRequest),
	}
}

// RegisterAdapter indexes the adapter together with its descriptor so lookup
// and dispatch can never disagree about what is registered.
func (o *Orchestrator) RegisterAdapter(a adapters.Adapter) error {
	d := a.Descriptor()
	if err := o.registry.Register(d); err != nil {
		return err
	}
	o.mu.Lock()
	o.adapters[d.ID] = a
	o.mu.Unlock()
	o.status.Track(d.ID)
	return nil
}

// Search answers one comparison request. Failures of individual providers
// degrade the result instead of aborting it; only a search in which no
// provider contributed returns an error, and that error carries the full
// per-provider failure list.
func (o *Orchestrator) Search(ctx context.Context, req models.SearchRequest) (*models.ComparisonResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	started := o.now()
	requestID := uuid.NewString()
	itemID := req.ItemID()
	aggKey := cache.AggregateKey(req.RequestHash())

	o.mu.Lock()
	o.lastRequest[itemID] = req
	o.mu.Unlock()

	// Aggregate fast path. A hit is only served while every quote in it is
	// still within its availability window; otherwise the entry is stale
	// regardless of its TTL and the search runs fresh.
	if hit, ok, err := cache.GetJSON[models.ComparisonResult](ctx, o.cache, aggKey); err == nil && ok {
		if !o.anyExpired(hit.Results) {
			o.metrics.IncCacheHit("aggregate")
			o.metrics.IncSearch("cached")
			hit.Cached = true
			return hit, nil
		}
		_ = o.cache.Invalidate(ctx, aggKey)
	} else if err != nil {
		o.logger.Warn("aggregate cache read failed", "error", err)
	}
	o.metrics.IncCacheMiss("aggregate")

	if !o.quota.Allow() {
		o.metrics.IncQuotaDrops()
		return nil, models.ErrQuotaExceeded
	}

	descriptors := o.registry.ByItemType(req.ItemType)
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("%w %q", models.ErrNoProviders, req.ItemType)
	}

	o.logger.Info("search started",
		"request_id", requestID, "item_id", itemID,
		"item_type", req.ItemType, "providers", len(descriptors))
	o.metrics.SearchStarted()
	defer o.metrics.SearchFinished()

	searchCtx, cancel := context.WithTimeout(ctx, o.cfg.SearchDeadline)
	defer cancel()
	o.trackActive(requestID, cancel)
	defer o.untrackActive(requestID)

	var (
		mu        sync.Mutex
		merged    []models.Quote
		providers []string
		perrs     []models.ProviderError
	)
	sem := semaphore.NewWeighted(o.cfg.MaxConcurrency)
	var wg sync.WaitGroup
	for _, d := range descriptors {
		wg.Add(1)
		go func(d registry.Descriptor) {
			defer wg.Done()
			if err := sem.Acquire(searchCtx, 1); err != nil {
				// An abort by the caller is not a provider failure.
				if errors.Is(err, context.Canceled) {
					return
				}
				ae := adapters.Classify(d.ID, err)
				mu.Lock()
				perrs = append(perrs, providerError(ae))
				mu.Unlock()
				return
			}
			defer sem.Release(1)

			quotes, err := o.searchProvider(searchCtx, d, req)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					perrs = append(perrs, providerError(adapters.Classify(d.ID, err)))
				}
				return
			}
			merged = append(merged, quotes...)
			providers = append(providers, d.ID)
		}(d)
	}
	wg.Wait()

	if errors.Is(searchCtx.Err(), context.Canceled) {
		// Cancellation still surfaces whatever settled before the abort,
		// ranked and signed like a normal answer. An aborted fan-out is
		// never cached and never recorded into history.
		ranked := o.ranker.Rank(o.dropExpired(merged))
		o.signVouchers(ranked)
		res := &models.ComparisonResult{
			RequestID:       requestID,
			ItemID:          itemID,
			Status:          models.SearchCancelled,
			Results:         ranked,
			TotalCount:      len(ranked),
			SearchLatencyMs: o.now().Sub(started).Milliseconds(),
			Providers:       providers,
			ProviderErrors:  perrs,
			CreatedAt:       o.now(),
		}
		o.metrics.IncSearch(string(models.SearchCancelled))
		o.logger.Info("search cancelled", "request_id", requestID, "item_id", itemID,
			"settled_quotes", len(ranked), "responders", len(providers))
		return res, nil
	}

	if len(providers) == 0 {
		res := &models.ComparisonResult{
			RequestID:       requestID,
			ItemID:          itemID,
			Status:          models.SearchFailed,
			ProviderErrors:  perrs,
			SearchLatencyMs: o.now().Sub(started).Milliseconds(),
			CreatedAt:       o.now(),
		}
		o.metrics.IncSearch(string(models.SearchFailed))
		o.logger.Warn("search failed, no provider contributed",
			"request_id", requestID, "item_id", itemID, "failures", len(perrs))
		return res, &models.AllProvidersFailedError{Errors: perrs}
	}

	merged = o.dropExpired(merged)
	ranked := o.ranker.Rank(merged)
	recs := Recommend(ranked)
	filters := BuildFilters(ranked, o.cfg.FeatureCap)

	observedAt := o.now()
	o.history.Record(context.WithoutCancel(ctx), itemID, req.ItemType, req.CriteriaKey(),
		snapshotPoints(ranked, observedAt)...)

	var insights *models.PriceInsights
	var marketAlerts []models.MarketAlert
	if h, ok := o.history.Get(ctx, itemID); ok && h.Statistics != nil {
		if len(ranked) > 0 {
			insights = BuildInsights(filters.PriceRange[0], h.Statistics)
		}
		if h.Predictions != nil {
			marketAlerts = h.Predictions.Alerts
		}
	}

	o.signVouchers(ranked)

	status := models.SearchCompleted
	if len(perrs) > 0 {
		status = models.SearchPartial
	}
	res := &models.ComparisonResult{
		RequestID:       requestID,
		ItemID:          itemID,
		Status:          status,
		Results:         ranked,
		TotalCount:      len(ranked),
		SearchLatencyMs: o.now().Sub(started).Milliseconds(),
		Providers:       providers,
		ProviderErrors:  perrs,
		Filters:         filters,
		Recommendations: recs,
		Alerts:          marketAlerts,
		CreatedAt:       o.now(),
	}
	if insights != nil {
		res.Insights = *insights
	}

	// Partial results are not cached: a degraded answer must not mask the
	// recovered one for a full TTL.
	if res.Status == models.SearchCompleted {
		if err := cache.PutJSON(context.WithoutCancel(ctx), o.cache, aggKey, res, o.cfg.AggregateCacheTTL); err != nil {
			o.logger.Warn("aggregate cache write failed", "error", err)
		}
	}

	o.metrics.IncSearch(string(res.Status))
	o.metrics.ObserveSearchDuration(o.now().Sub(started).Seconds())
	o.metrics.ObserveQuotes(len(ranked))
	o.logger.Info("search finished",
		"request_id", requestID, "item_id", itemID, "status", res.Status,
		"quotes", len(ranked), "responders", len(providers),
		"failures", len(perrs), "latency_ms", res.SearchLatencyMs)
	return res, nil
}

// searchProvider resolves one provider's quotes, consulting the per-provider
// cache before dialing out. Fresh responses are validated quote by quote;
// invalid quotes are dropped, never propagated.
func (o *Orchestrator) searchProvider(ctx context.Context, d registry.Descriptor, req models.SearchRequest) ([]models.Quote, error) {
	key := cache.ProviderKey(d.ID, req.RequestHash())
	if hit, ok, err := cache.GetJSON[[]models.Quote](ctx, o.cache, key); err == nil && ok {
		o.metrics.IncCacheHit("provider")
		return *hit, nil
	} else if err != nil {
		o.logger.Warn("provider cache read failed", "provider", d.ID, "error", err)
	}
	o.metrics.IncCacheMiss("provider")

	o.mu.Lock()
	a := o.adapters[d.ID]
	o.mu.Unlock()
	if a == nil {
		return nil, adapters.Classify(d.ID, errors.New("adapter not wired"))
	}

	actx, cancel := context.WithTimeout(ctx, o.cfg.AdapterTimeout)
	defer cancel()
	started := o.now()
	quotes, err := a.Search(actx, req)
	latency := o.now().Sub(started)
	if err != nil {
		ae := adapters.Classify(d.ID, err)
		// A search the caller aborted is not the provider's failure.
		if !errors.Is(ae, context.Canceled) {
			o.status.RecordFailure(d.ID, ae)
			o.metrics.IncProviderFailure(d.ID, string(ae.Kind))
			o.logger.Warn("provider search failed",
				"provider", d.ID, "kind", ae.Kind, "error", ae.Err)
		}
		return nil, ae
	}

	now := o.now()
	valid := make([]models.Quote, 0, len(quotes))
	for _, q := range quotes {
		if err := q.Validate(now); err != nil {
			o.logger.Warn("dropping invalid quote", "provider", d.ID, "error", err)
			continue
		}
		valid = append(valid, q)
	}
	o.status.RecordSuccess(d.ID, latency)
	o.metrics.ObserveProviderLatency(d.ID, float64(latency.Milliseconds()))
	if err := cache.PutJSON(context.WithoutCancel(ctx), o.cache, key, &valid, o.cfg.ProviderCacheTTL); err != nil {
		o.logger.Warn("provider cache write failed", "provider", d.ID, "error", err)
	}
	return valid, nil
}

// signVouchers mints a booking voucher onto each quote. A quote whose signing
// fails is surfaced without one rather than dropped.
func (o *Orchestrator) signVouchers(quotes []models.Quote) {
	for i := range quotes {
		v, err := o.signer.Issue(&quotes[i])
		if err != nil {
			o.logger.Warn("voucher signing failed", "quote_id", quotes[i].ID, "error", err)
			continue
		}
		quotes[i].Voucher = v
	}
}

// CancelSearch aborts a running search; the search itself still resolves,
// carrying whatever quotes had settled by then. Unknown ids report
// models.ErrNotFound.
func (o *Orchestrator) CancelSearch(requestID string) error {
	o.mu.Lock()
	cancel, ok := o.active[requestID]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("search %s: %w", requestID, models.ErrNotFound)
	}
	cancel()
	return nil
}

// ActiveSearches reports how many searches are currently in flight.
func (o *Orchestrator) ActiveSearches() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active)
}

// Running lists the ids of in-flight searches, sorted for stable output.
func (o *Orchestrator) Running() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.active))
	for id := range o.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RequestFor returns the most recent request seen for an item. Watch streams
// use it to re-run the same search on their interval.
func (o *Orchestrator) RequestFor(itemID string) (models.SearchRequest, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	req, ok := o.lastRequest[itemID]
	return req, ok
}

// ProviderStatus is the per-provider health snapshot for the health endpoint.
func (o *Orchestrator) ProviderStatus() []models.ProviderHealth {
	return o.status.Snapshot()
}

// Degraded reports whether any provider is currently failing.
func (o *Orchestrator) Degraded() bool {
	return o.status.Degraded()
}

// QuotaRemaining reports how many searches the current quota window still
// admits.
func (o *Orchestrator) QuotaRemaining() int {
	return o.quota.Remaining()
}

func (o *Orchestrator) trackActive(requestID string, cancel context.CancelFunc) {
	o.mu.Lock()
	o.active[requestID] = cancel
	o.mu.Unlock()
}

func (o *Orchestrator) untrackActive(requestID string) {
	o.mu.Lock()
	delete(o.active, requestID)
	o.mu.Unlock()
}

func (o *Orchestrator) dropExpired(quotes []models.Quote) []models.Quote {
	now := o.now()
	out := make([]models.Quote, 0, len(quotes))
	for _, q := range quotes {
		if !q.Expired(now) {
			out = append(out, q)
		}
	}
	return out
}

func (o *Orchestrator) anyExpired(quotes []models.Quote) bool {
	now := o.now()
	for _, q := range quotes {
		if q.Expired(now) {
			return true
		}
	}
	return false
}

func providerError(ae *adapters.AdapterError) models.ProviderError {
	return models.ProviderError{Provider: ae.Provider, Kind: string(ae.Kind), Message: ae.Err.Error()}
}

// snapshotPoints turns one settled search into history observations: the
// cheapest quote per responding provider, all sharing a single timestamp so
// the points of one search form one snapshot.
func snapshotPoints(quotes []models.Quote, at time.Time) []models.PricePoint {
	cheapest := make(map[string]models.Quote, len(quotes))
	for _, q := range quotes {
		cur, ok := cheapest[q.ProviderID]
		if !ok || q.Price.Amount < cur.Price.Amount {
			cheapest[q.ProviderID] = q
		}
	}
	ids := make([]string, 0, len(cheapest))
	for id := range cheapest {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	points := make([]models.PricePoint, 0, len(ids))
	for _, id := range ids {
		q := cheapest[id]
		points = append(points, models.PricePoint{
			Timestamp:  at,
			Price:      q.Price.Amount,
			Currency:   q.Price.Currency,
			ProviderID: id,
			Available:  q.Availability.Available,
			Source:     "search",
			Confidence: 1,
			Fees:       q.Price.Breakdown.Fees,
			Taxes:      q.Price.Breakdown.Taxes,
		})
	}
	return points
}
