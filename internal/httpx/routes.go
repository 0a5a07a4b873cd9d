package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	mw "github.com/you/go-farescout/internal/middleware"
)

// Routes wires the REST surface onto a chi router.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(mw.Metrics(h.metrics))
	r.Use(mw.Logging(h.logger))

	r.Get("/search", h.Search)
	r.Post("/search/{requestID}/cancel", h.CancelSearch)
	r.Get("/history/{itemID}", h.History)
	r.Post("/alerts", h.SubscribeAlert)
	r.Delete("/alerts/{alertID}", h.CancelAlert)
	r.Post("/bookings", h.CreateBooking)
	r.Get("/watch/sse/{itemID}", h.WatchSSE)
	r.Get("/watch/ws/{itemID}", h.WatchWS)
	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	return r
}
