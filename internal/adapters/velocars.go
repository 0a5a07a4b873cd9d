package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/you/go-farescout/internal/config"
	"github.com/you/go-farescout/internal/models"
	"github.com/you/go-farescout/internal/registry"
)

// Velocars searches rental cars through the Velocars partner API.
type Velocars struct {
	host     string
	apiKey   string
	quoteTTL time.Duration
	linkBase string
	client   *http.Client
}

func NewVelocars(cfg *config.Config) *Velocars {
	return &Velocars{
		host:     cfg.VelocarsHost,
		apiKey:   cfg.VelocarsAPIKey,
		quoteTTL: cfg.QuoteTTL,
		linkBase: cfg.DeepLinkBase,
		client:   http.DefaultClient,
	}
}

func (v *Velocars) Descriptor() registry.Descriptor {
	return registry.Descriptor{
		ID:            "velocars",
		DisplayName:   "Velocars",
		ItemTypes:     []models.ItemType{models.ItemCar},
		Capabilities:  registry.CapSearch | registry.CapBook | registry.CapCancel | registry.CapRealTimeInventory,
		CommissionPct: 3.5,
		Currencies:    []string{"EUR", "USD"},
		Regions:       []string{"eu"},
	}
}

type velocarsRental struct {
	ID       string `json:"id"`
	Vehicle  string `json:"vehicle"`
	Class    string `json:"class"`
	Supplier struct {
		Name    string  `json:"name"`
		Rating  float64 `json:"rating"` // 0..5
		Reviews int     `json:"reviews"`
	} `json:"supplier"`
	Price struct {
		Total    float64 `json:"total"`
		Base     float64 `json:"base"`
		Taxes    float64 `json:"taxes"`
		Fees     float64 `json:"fees"`
		Currency string  `json:"currency"`
	} `json:"price"`
	FreeCancellation bool     `json:"free_cancellation"`
	CancelBy         string   `json:"cancel_by"`
	CarsLeft         int      `json:"cars_left"`
	Features         []string `json:"features"`
	BookingURL       string   `json:"booking_url"`
}

func (v *Velocars) Search(ctx context.Context, sr models.SearchRequest) ([]models.Quote, error) {
	if v.apiKey == "" {
		return nil, fail("velocars", ErrAuth, "missing API key")
	}

	q := url.Values{}
	q.Set("pickup", sr.Criteria.Origin)
	q.Set("dropoff", sr.Criteria.Destination)
	q.Set("from", sr.Criteria.StartDate)
	q.Set("to", sr.Criteria.EndDate)
	q.Set("currency", sr.Currency)

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, v.host+"/v1/rentals?"+q.Encode(), nil)
	req.Header.Set("X-API-Key", v.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, Classify("velocars", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fail("velocars", ErrUpstream, "rentals: %s", resp.Status)
	}

	var payload struct {
		Rentals []velocarsRental `json:"rentals"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fail("velocars", ErrParse, "decode rentals: %v", err)
	}

	now := time.Now()
	desc := v.Descriptor()
	var out []models.Quote
	for _, r := range payload.Rentals {
		if r.Price.Total <= 0 {
			continue
		}
		breakdown := models.PriceBreakdown{
			Base:       round2(r.Price.Base),
			Taxes:      round2(r.Price.Taxes),
			Fees:       round2(r.Price.Fees),
			Commission: round2(r.Price.Total * desc.CommissionPct / 100),
		}
		// Partner breakdowns include our commission in base; carve it out so
		// the components still sum to the displayed total.
		breakdown.Base = round2(breakdown.Base - breakdown.Commission)

		cancel := models.CancellationTerms{Refundable: r.FreeCancellation}
		if r.FreeCancellation && r.CancelBy != "" {
			if dl := parseAPITime(r.CancelBy); !dl.IsZero() {
				cancel.Deadline = &dl
			}
		}

		link := r.BookingURL
		if link == "" {
			link = deepLink(v.linkBase, desc.ID, r.ID)
		}

		out = append(out, models.Quote{
			ID:          quoteID(desc.ID, r.ID),
			ProviderID:  desc.ID,
			ItemType:    models.ItemCar,
			Title:       r.Supplier.Name + " " + r.Vehicle,
			Description: r.Class,
			Price: models.Price{
				Amount:    round2(r.Price.Total),
				Currency:  r.Price.Currency,
				Breakdown: breakdown,
			},
			Availability: models.Availability{
				Available: r.CarsLeft > 0,
				Remaining: r.CarsLeft,
				ExpiresAt: quoteExpiry(now, v.quoteTTL, time.Time{}),
			},
			Cancellation: cancel,
			Rating: models.SupplierRating{
				Score:       clampRating(r.Supplier.Rating),
				ReviewCount: r.Supplier.Reviews,
			},
			Features: r.Features,
			DeepLink: link,
		})
	}
	return out, nil
}
