// Package history tracks item price series over a bounded retention window
// and derives statistics, predictions, and market alerts from them.
package history

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/you/go-farescout/internal/models"
)

// PersistentStore is the boundary to durable storage. The in-memory store
// works without one; when present it receives best-effort write-throughs and
// serves warm starts for items not yet seen in memory. LoadRecent carries the
// item's identity alongside its points and returns nil when nothing is
// archived for the item.
type PersistentStore interface {
	SavePoints(ctx context.Context, itemID string, itemType models.ItemType, criteriaKey string, points []models.PricePoint) error
	LoadRecent(ctx context.Context, itemID string, since time.Time) (*models.PriceHistory, error)
	Close()
}

// Observer is notified after a Record call with the freshly added points and
// the recomputed window statistics. Callbacks run outside the store lock.
type Observer interface {
	HistoryUpdated(ctx context.Context, itemID string, added []models.PricePoint, stats models.PriceStatistics)
}

// Store keeps one PriceHistory per tracked item. Points are append-only;
// only the retention sweep removes them, and statistics are recomputed in
// the same critical section so readers never observe stale statistics.
type Store struct {
	mu    sync.RWMutex
	items map[string]*models.PriceHistory

	retention time.Duration
	stats     *Statistics
	predictor *Predictor
	persist   PersistentStore
	observer  Observer
	logger    *slog.Logger
	now       func() time.Time
}

func NewStore(retention time.Duration, stats *Statistics, predictor *Predictor, logger *slog.Logger) *Store {
	return &Store{
		items:     make(map[string]*models.PriceHistory),
		retention: retention,
		stats:     stats,
		predictor: predictor,
		logger:    logger,
		now:       time.Now,
	}
}

// WithPersistence attaches the durable backend.
func (s *Store) WithPersistence(p PersistentStore) *Store {
	s.persist = p
	return s
}

// WithObserver attaches the post-record callback.
func (s *Store) WithObserver(o Observer) *Store {
	s.observer = o
	return s
}

// Record appends points to an item's history, prunes anything outside the
// retention window, and recomputes statistics and predictions before
// returning. Persistence failures are logged, never propagated; a search
// must not fail because the archive is down.
func (s *Store) Record(ctx context.Context, itemID string, itemType models.ItemType, criteriaKey string, points ...models.PricePoint) {
	if len(points) == 0 {
		return
	}
	now := s.now()

	s.mu.Lock()
	h, ok := s.items[itemID]
	if !ok {
		h = &models.PriceHistory{
			ItemID:      itemID,
			ItemType:    itemType,
			CriteriaKey: criteriaKey,
		}
		s.items[itemID] = h
	}
	h.Points = append(h.Points, points...)
	s.recomputeLocked(h, now)
	added := make([]models.PricePoint, len(points))
	copy(added, points)
	var stats models.PriceStatistics
	if h.Statistics != nil {
		stats = *h.Statistics
	}
	s.mu.Unlock()

	if s.persist != nil {
		if err := s.persist.SavePoints(ctx, itemID, itemType, criteriaKey, added); err != nil {
			s.logger.Warn("history write-through failed", "item_id", itemID, "error", err)
		}
	}
	if s.observer != nil {
		s.observer.HistoryUpdated(ctx, itemID, added, stats)
	}
}

// Get returns a deep copy of an item's history. Items absent from memory are
// warm-started from the persistent store when one is attached.
func (s *Store) Get(ctx context.Context, itemID string) (*models.PriceHistory, bool) {
	s.mu.RLock()
	h, ok := s.items[itemID]
	if ok {
		out := copyHistory(h)
		s.mu.RUnlock()
		return out, true
	}
	s.mu.RUnlock()

	if s.persist == nil {
		return nil, false
	}
	loaded, err := s.persist.LoadRecent(ctx, itemID, s.now().Add(-s.retention))
	if err != nil {
		s.logger.Warn("history warm start failed", "item_id", itemID, "error", err)
		return nil, false
	}
	if loaded == nil || len(loaded.Points) == 0 {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.items[itemID]; ok { // lost the race to another loader
		return copyHistory(h), true
	}
	h = &models.PriceHistory{
		ItemID:      itemID,
		ItemType:    loaded.ItemType,
		CriteriaKey: loaded.CriteriaKey,
		Points:      loaded.Points,
	}
	s.recomputeLocked(h, s.now())
	s.items[itemID] = h
	return copyHistory(h), true
}

// Len reports how many items are currently tracked.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Sweep drops out-of-window points across all items and recomputes the
// statistics of every history it touched. Emptied histories are removed.
func (s *Store) Sweep(ctx context.Context) (dropped int) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, h := range s.items {
		before := len(h.Points)
		s.recomputeLocked(h, now)
		dropped += before - len(h.Points)
		if len(h.Points) == 0 {
			delete(s.items, id)
		}
	}
	return dropped
}

// SweepLoop runs Sweep on the given interval until the context ends.
func (s *Store) SweepLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.Sweep(ctx); n > 0 {
				s.logger.Info("history sweep", "dropped_points", n, "tracked_items", s.Len())
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// recomputeLocked prunes the retention window and refreshes the derived
// blocks. Caller holds the write lock.
func (s *Store) recomputeLocked(h *models.PriceHistory, now time.Time) {
	cutoff := now.Add(-s.retention)
	kept := h.Points[:0]
	for _, p := range h.Points {
		if p.Timestamp.After(cutoff) {
			kept = append(kept, p)
		}
	}
	h.Points = kept

	if len(h.Points) == 0 {
		h.Statistics = nil
		h.Predictions = nil
		h.UpdatedAt = now
		return
	}
	stats := s.stats.Compute(h.Points)
	h.Statistics = &stats
	h.Predictions = s.predictor.Predict(h.ItemID, h.Points, stats, now)
	h.UpdatedAt = now
}

func copyHistory(h *models.PriceHistory) *models.PriceHistory {
	out := *h
	out.Points = make([]models.PricePoint, len(h.Points))
	copy(out.Points, h.Points)
	if h.Statistics != nil {
		st := *h.Statistics
		out.Statistics = &st
	}
	if h.Predictions != nil {
		pr := *h.Predictions
		pr.Alerts = append([]models.MarketAlert(nil), h.Predictions.Alerts...)
		out.Predictions = &pr
	}
	return &out
}
