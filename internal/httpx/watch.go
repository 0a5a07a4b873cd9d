package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// Watch streams re-run the item's most recent search on the watch interval.
// Ticks inside the aggregate TTL are served from cache, so a stream is cheap
// until the cached comparison ages out.

// WatchSSE streams comparison updates over server-sent events. The first
// update arrives after one interval; an upstream failure emits an error
// event and ends the stream.
func (h *Handler) WatchSSE(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	req, ok := h.orch.RequestFor(itemID)
	if !ok {
		WriteError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("item %s has not been searched yet", itemID))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "response writer cannot stream")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(h.watchInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("watch stream closed", "item_id", itemID, "transport", "sse")
			return

		case <-ticker.C:
			res, err := h.orch.Search(ctx, req)
			if err != nil {
				fmt.Fprintf(w, "event: error\ndata: %q\n\n", err.Error())
				flusher.Flush()
				return
			}
			payload, err := json.Marshal(res)
			if err != nil {
				return
			}
			fmt.Fprintf(w, "event: update\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // watch streams carry no credentials; origin checks stay at the proxy
	},
}

// WatchWS streams comparison updates over a websocket. The first update is
// written immediately, then one per interval until either side closes.
func (h *Handler) WatchWS(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	req, ok := h.orch.RequestFor(itemID)
	if !ok {
		WriteError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("item %s has not been searched yet", itemID))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "item_id", itemID, "error", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(h.watchInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		res, err := h.orch.Search(ctx, req)
		if err != nil {
			_ = conn.WriteJSON(ErrorResponse{Error: err.Error(), Code: "WATCH_FAILED"})
			return
		}
		if err := conn.WriteJSON(res); err != nil {
			h.logger.Debug("watch stream closed", "item_id", itemID, "transport", "ws")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
