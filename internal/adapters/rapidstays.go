package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/you/go-farescout/internal/config"
	"github.com/you/go-farescout/internal/models"
	"github.com/you/go-farescout/internal/registry"
)

// RapidStays searches hotel stays through a RapidAPI aggregation gateway.
type RapidStays struct {
	host        string
	path        string
	rapidAPIKey string
	quoteTTL    time.Duration
	linkBase    string
	client      *http.Client
}

func NewRapidStays(cfg *config.Config) *RapidStays {
	return &RapidStays{
		host:        cfg.RapidStaysHost,
		path:        "/api/v1/hotels/searchHotels",
		rapidAPIKey: cfg.RapidStaysAPIKey,
		quoteTTL:    cfg.QuoteTTL,
		linkBase:    cfg.DeepLinkBase,
		client:      http.DefaultClient,
	}
}

func (r *RapidStays) Descriptor() registry.Descriptor {
	return registry.Descriptor{
		ID:            "rapidstays",
		DisplayName:   "RapidStays",
		ItemTypes:     []models.ItemType{models.ItemHotel},
		Capabilities:  registry.CapSearch,
		CommissionPct: 4.0,
		Currencies:    []string{"EUR", "USD"},
		Regions:       []string{"eu", "us"},
	}
}

func (r *RapidStays) Search(ctx context.Context, sr models.SearchRequest) ([]models.Quote, error) {
	if r.rapidAPIKey == "" {
		return nil, fail("rapidstays", ErrAuth, "missing API key")
	}

	u := url.URL{
		Scheme: "https",
		Host:   r.host,
		Path:   r.path,
	}
	q := u.Query()
	q.Set("dest_id", sr.Criteria.Destination)
	q.Set("search_type", "CITY")
	q.Set("arrival_date", sr.Criteria.StartDate)  // YYYY-MM-DD
	q.Set("departure_date", sr.Criteria.EndDate)
	q.Set("adults", strconv.Itoa(sr.Travelers.Adults))
	q.Set("room_qty", strconv.Itoa(sr.Criteria.Occupancy))
	q.Set("page_number", "1")
	q.Set("sort_by", "popularity")
	q.Set("currency_code", sr.Currency)
	u.RawQuery = q.Encode()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	req.Header.Set("X-RapidAPI-Key", r.rapidAPIKey)
	req.Header.Set("X-RapidAPI-Host", r.host)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, Classify("rapidstays", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fail("rapidstays", ErrUpstream, "search: %s", resp.Status)
	}

	var payload struct {
		Data struct {
			Hotels []struct {
				HotelID  int64 `json:"hotel_id"`
				Property struct {
					Name           string   `json:"name"`
					ReviewScore    float64  `json:"reviewScore"` // 0..10
					ReviewCount    int      `json:"reviewCount"`
					AvailableRooms int      `json:"availableRooms"`
					Amenities      []string `json:"amenities"`
					PriceBreakdown struct {
						GrossPrice struct {
							CurrencyCode string `json:"currencyCode"`
							Units        int64  `json:"units"`
							Nanos        int64  `json:"nanos"`
						} `json:"grossPrice"`
					} `json:"priceBreakdown"`
				} `json:"property"`
				FreeCancellation bool `json:"free_cancellation"`
			} `json:"hotels"`
		} `json:"data"`
		Status  bool   `json:"status"`
		Message string `json:"message"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fail("rapidstays", ErrParse, "decode hotels: %v", err)
	}
	if !payload.Status {
		return nil, fail("rapidstays", ErrUpstream, "%s", payload.Message)
	}

	now := time.Now()
	desc := r.Descriptor()
	var out []models.Quote
	for _, h := range payload.Data.Hotels {
		gross := h.Property.PriceBreakdown.GrossPrice
		total := float64(gross.Units) + float64(gross.Nanos)/1e9
		if total <= 0 {
			continue
		}
		currency := gross.CurrencyCode
		if currency == "" {
			currency = sr.Currency
		}
		remaining := h.Property.AvailableRooms
		if remaining <= 0 {
			remaining = 1 // gateway priced the stay, so at least one room exists
		}

		var features []string
		features = append(features, h.Property.Amenities...)
		if h.FreeCancellation {
			features = append(features, "free_cancellation")
		}

		native := strconv.FormatInt(h.HotelID, 10)
		out = append(out, models.Quote{
			ID:         quoteID(desc.ID, native),
			ProviderID: desc.ID,
			ItemType:   models.ItemHotel,
			Title:      h.Property.Name,
			Price: models.Price{
				Amount:    round2(total),
				Currency:  currency,
				Breakdown: applyCommission(total, desc.CommissionPct),
			},
			Availability: models.Availability{
				Available: true,
				Remaining: remaining,
				ExpiresAt: quoteExpiry(now, r.quoteTTL, time.Time{}),
			},
			Cancellation: models.CancellationTerms{Refundable: h.FreeCancellation},
			Rating: models.SupplierRating{
				Score:       clampRating(h.Property.ReviewScore / 2),
				ReviewCount: h.Property.ReviewCount,
			},
			Features: features,
			DeepLink: deepLink(r.linkBase, desc.ID, native),
		})
	}
	return out, nil
}
