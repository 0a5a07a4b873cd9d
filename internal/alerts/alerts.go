// Package alerts manages user price-alert subscriptions and fires
// notifications when recorded prices cross their thresholds.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/you/go-farescout/internal/models"
	"github.com/you/go-farescout/internal/obs"
)

// NotificationSink delivers triggered notifications. Transport (email, push,
// SMS) lives outside the core; the sink only receives the payload.
type NotificationSink interface {
	Notify(ctx context.Context, n models.AlertNotification) error
}

// LogSink writes notifications to the log. It is the default sink and the
// demo-mode delivery channel.
type LogSink struct {
	Logger *slog.Logger
}

func (l *LogSink) Notify(_ context.Context, n models.AlertNotification) error {
	l.Logger.Info("price alert triggered",
		"alert_id", n.Alert.ID,
		"item_id", n.Alert.ItemID,
		"kind", n.Kind,
		"current_price", n.CurrentPrice,
		"target_price", n.Alert.TargetPrice,
		"methods", n.Alert.NotificationMethods,
	)
	return nil
}

// Service holds the live subscriptions. It satisfies the history store's
// observer contract, so every recorded search evaluates the affected item's
// alerts exactly once.
type Service struct {
	mu     sync.RWMutex
	byID   map[string]*models.PriceAlert
	byItem map[string]map[string]struct{}

	sink    NotificationSink
	metrics *obs.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(sink NotificationSink, logger *slog.Logger) *Service {
	return &Service{
		byID:   make(map[string]*models.PriceAlert),
		byItem: make(map[string]map[string]struct{}),
		sink:   sink,
		logger: logger,
		now:    time.Now,
	}
}

// WithMetrics attaches the triggered-alert counter.
func (s *Service) WithMetrics(m *obs.Metrics) *Service {
	s.metrics = m
	return s
}

// Subscribe registers an alert and returns it with its generated id.
func (s *Service) Subscribe(userID, itemID string, targetPrice float64, currency string, cond models.AlertCondition, methods []string) (*models.PriceAlert, error) {
	if itemID == "" {
		return nil, fmt.Errorf("alerts: item id is required")
	}
	if targetPrice <= 0 {
		return nil, fmt.Errorf("alerts: target price must be positive")
	}
	if !cond.Valid() {
		return nil, fmt.Errorf("alerts: unknown condition %q", cond)
	}

	a := &models.PriceAlert{
		ID:                  uuid.NewString(),
		UserID:              userID,
		ItemID:              itemID,
		TargetPrice:         targetPrice,
		Currency:            currency,
		Condition:           cond,
		Active:              true,
		CreatedAt:           s.now(),
		NotificationMethods: methods,
	}

	s.mu.Lock()
	s.byID[a.ID] = a
	if s.byItem[itemID] == nil {
		s.byItem[itemID] = make(map[string]struct{})
	}
	s.byItem[itemID][a.ID] = struct{}{}
	s.mu.Unlock()

	out := *a
	return &out, nil
}

// Cancel removes an alert regardless of its triggered state.
func (s *Service) Cancel(alertID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[alertID]
	if !ok {
		return models.ErrNotFound
	}
	delete(s.byID, alertID)
	if ids := s.byItem[a.ItemID]; ids != nil {
		delete(ids, alertID)
		if len(ids) == 0 {
			delete(s.byItem, a.ItemID)
		}
	}
	return nil
}

// Get returns a copy of an alert.
func (s *Service) Get(alertID string) (*models.PriceAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[alertID]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := *a
	return &out, nil
}

// ForItem returns copies of all alerts subscribed to an item.
func (s *Service) ForItem(itemID string) []models.PriceAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.PriceAlert
	for id := range s.byItem[itemID] {
		out = append(out, *s.byID[id])
	}
	return out
}

// Active reports the number of armed subscriptions.
func (s *Service) Active() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.byID {
		if a.Active {
			n++
		}
	}
	return n
}

// HistoryUpdated is the history store's post-record callback. The cheapest
// available point of the batch is the price the thresholds compare against.
func (s *Service) HistoryUpdated(ctx context.Context, itemID string, added []models.PricePoint, stats models.PriceStatistics) {
	current := 0.0
	for _, p := range added {
		if !p.Available {
			continue
		}
		if current == 0 || p.Price < current {
			current = p.Price
		}
	}
	if current == 0 {
		return
	}
	s.Evaluate(ctx, itemID, current, stats.Mean)
}

// Evaluate fires every armed alert on the item whose condition the current
// price satisfies. Each alert triggers at most once and is then disarmed;
// delivery failures are logged, not retried.
func (s *Service) Evaluate(ctx context.Context, itemID string, currentPrice, mean float64) {
	now := s.now()

	s.mu.Lock()
	var fired []models.AlertNotification
	for id := range s.byItem[itemID] {
		a := s.byID[id]
		if !a.Active || !crossed(a.Condition, a.TargetPrice, currentPrice, mean) {
			continue
		}
		a.Active = false
		ts := now
		a.TriggeredAt = &ts
		fired = append(fired, models.AlertNotification{
			Alert:        *a,
			Kind:         kindFor(a.Condition),
			CurrentPrice: currentPrice,
			Message: fmt.Sprintf("price %.2f %s crossed %s threshold %.2f",
				currentPrice, a.Currency, a.Condition, a.TargetPrice),
			TriggeredAt: now,
		})
	}
	s.mu.Unlock()

	for _, n := range fired {
		if s.metrics != nil {
			s.metrics.IncAlertTriggered()
		}
		if err := s.sink.Notify(ctx, n); err != nil {
			s.logger.Warn("alert delivery failed", "alert_id", n.Alert.ID, "error", err)
		}
	}
}

// crossed decides threshold satisfaction. The relative conditions read the
// target as a percent change against the rolling window mean.
func crossed(cond models.AlertCondition, target, current, mean float64) bool {
	switch cond {
	case models.CondBelow:
		return current < target
	case models.CondAbove:
		return current > target
	case models.CondDropsBy:
		return mean > 0 && (1-current/mean)*100 >= target
	case models.CondRisesBy:
		return mean > 0 && (current/mean-1)*100 >= target
	default:
		return false
	}
}

func kindFor(cond models.AlertCondition) models.AlertKind {
	if cond == models.CondAbove || cond == models.CondRisesBy {
		return models.AlertPriceSpike
	}
	return models.AlertPriceDrop
}
