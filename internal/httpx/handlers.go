package httpx

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/you/go-farescout/internal/alerts"
	"github.com/you/go-farescout/internal/booking"
	"github.com/you/go-farescout/internal/cache"
	"github.com/you/go-farescout/internal/config"
	"github.com/you/go-farescout/internal/history"
	"github.com/you/go-farescout/internal/models"
	"github.com/you/go-farescout/internal/obs"
	"github.com/you/go-farescout/internal/search"
)

// Handler carries the services behind the REST surface.
type Handler struct {
	orch     *search.Orchestrator
	history  *history.Store
	alerts   *alerts.Service
	bookings *booking.Service
	cache    cache.Cache
	metrics  *obs.Metrics
	logger   *slog.Logger

	watchInterval time.Duration
	started       time.Time
}

func NewHandler(
	cfg *config.Config,
	orch *search.Orchestrator,
	store *history.Store,
	alertSvc *alerts.Service,
	bookingSvc *booking.Service,
	c cache.Cache,
	m *obs.Metrics,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		orch:          orch,
		history:       store,
		alerts:        alertSvc,
		bookings:      bookingSvc,
		cache:         c,
		metrics:       m,
		logger:        logger,
		watchInterval: cfg.WatchInterval,
		started:       time.Now(),
	}
}

// Search runs one comparison search from query parameters.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	req, err := requestFromQuery(r.URL.Query())
	if err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	res, err := h.orch.Search(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// CancelSearch aborts an in-flight search by its request id.
func (h *Handler) CancelSearch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "requestID")
	if err := h.orch.CancelSearch(id); err != nil {
		respondError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"request_id": id, "status": "cancelling"})
}

// History serves the recorded price series of one item.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "itemID")
	hist, ok := h.history.Get(r.Context(), id)
	if !ok {
		WriteError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("no price history for item %s", id))
		return
	}
	WriteJSON(w, http.StatusOK, hist)
}

type subscribeRequest struct {
	UserID              string                `json:"user_id"`
	ItemID              string                `json:"item_id"`
	TargetPrice         float64               `json:"target_price"`
	Currency            string                `json:"currency"`
	Condition           models.AlertCondition `json:"condition"`
	NotificationMethods []string              `json:"notification_methods"`
}

// SubscribeAlert registers a price alert for an item.
func (h *Handler) SubscribeAlert(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}
	alert, err := h.alerts.Subscribe(req.UserID, req.ItemID, req.TargetPrice, req.Currency, req.Condition, req.NotificationMethods)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, alert)
}

// CancelAlert removes a subscription.
func (h *Handler) CancelAlert(w http.ResponseWriter, r *http.Request) {
	if err := h.alerts.Cancel(chi.URLParam(r, "alertID")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateBooking confirms a set of signed vouchers. A payment decline is a
// valid outcome and answers 402 with the rejected confirmation.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}
	conf, err := h.bookings.Confirm(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	h.metrics.IncBooking(string(conf.Status))
	status := http.StatusCreated
	if conf.Status == models.BookingRejected {
		status = http.StatusPaymentRequired
	}
	WriteJSON(w, status, conf)
}

// Health reports provider states and live counters for operators.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if h.orch.Degraded() {
		status = "degraded"
	}
	out := models.SystemHealth{
		Status:         status,
		Providers:      h.orch.ProviderStatus(),
		ActiveSearches: h.orch.ActiveSearches(),
		QuotaRemaining: h.orch.QuotaRemaining(),
		TrackedItems:   h.history.Len(),
		ActiveAlerts:   h.alerts.Active(),
		UptimeSeconds:  int64(time.Since(h.started).Seconds()),
	}
	if c, ok := h.cache.(interface{ Len() int }); ok {
		out.CachedResults = c.Len()
	}
	WriteJSON(w, http.StatusOK, out)
}

func requestFromQuery(q url.Values) (models.SearchRequest, error) {
	req := models.SearchRequest{
		ItemType: models.ItemType(q.Get("item_type")),
		Criteria: models.SearchCriteria{
			Origin:      q.Get("origin"),
			Destination: q.Get("destination"),
			StartDate:   q.Get("start_date"),
			EndDate:     q.Get("end_date"),
		},
		Currency: q.Get("currency"),
	}
	var err error
	if req.Criteria.Occupancy, err = intParam(q, "occupancy", 0); err != nil {
		return req, err
	}
	if req.Travelers.Adults, err = intParam(q, "adults", 1); err != nil {
		return req, err
	}
	if req.Travelers.Children, err = intParam(q, "children", 0); err != nil {
		return req, err
	}
	if req.BookingWindowDays, err = intParam(q, "booking_window_days", 0); err != nil {
		return req, err
	}
	if req.BudgetCeiling, err = floatParam(q, "budget_ceiling", 0); err != nil {
		return req, err
	}
	return req, nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

func floatParam(q url.Values, name string, def float64) (float64, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return v, nil
}
