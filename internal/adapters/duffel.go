package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/you/go-farescout/internal/config"
	"github.com/you/go-farescout/internal/models"
	"github.com/you/go-farescout/internal/registry"
)

// Duffel searches flight offers through the Duffel offer-request API.
type Duffel struct {
	host     string
	token    string
	quoteTTL time.Duration
	linkBase string
	client   *http.Client
}

func NewDuffel(cfg *config.Config) *Duffel {
	return &Duffel{
		host:     cfg.DuffelHost,
		token:    cfg.DuffelToken,
		quoteTTL: cfg.QuoteTTL,
		linkBase: cfg.DeepLinkBase,
		client:   http.DefaultClient,
	}
}

func (d *Duffel) Descriptor() registry.Descriptor {
	return registry.Descriptor{
		ID:            "duffel",
		DisplayName:   "Duffel",
		ItemTypes:     []models.ItemType{models.ItemFlight},
		Capabilities:  registry.CapSearch | registry.CapBook | registry.CapModify | registry.CapCancel,
		CommissionPct: 1.8,
		Currencies:    []string{"EUR", "USD", "GBP"},
		Regions:       []string{"global"},
	}
}

type duffelSlice struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureDate string `json:"departure_date"`
}

type duffelPassenger struct {
	Type string `json:"type"`
}

type duffelOfferRequest struct {
	Slices       []duffelSlice     `json:"slices"`
	Passengers   []duffelPassenger `json:"passengers"`
	CabinClass   string            `json:"cabin_class"`
	CurrencyCode string            `json:"currency"`
	ReturnOffers bool              `json:"return_offers"`
}

type duffelOfferRequestEnvelope struct {
	Data duffelOfferRequest `json:"data"`
}

type duffelOffer struct {
	ID            string `json:"id"`
	TotalAmount   string `json:"total_amount"`
	TotalCurrency string `json:"total_currency"`
	ExpiresAt     string `json:"expires_at"`
	Owner         struct {
		Name string `json:"name"`
	} `json:"owner"`
	Conditions struct {
		RefundBeforeDeparture struct {
			Allowed       bool    `json:"allowed"`
			PenaltyAmount *string `json:"penalty_amount"`
		} `json:"refund_before_departure"`
	} `json:"conditions"`
	Slices []struct {
		Segments []struct {
			DepartingAt string `json:"departing_at"`
			ArrivingAt  string `json:"arriving_at"`
			Duration    string `json:"duration"` // ISO8601 e.g. PT2H10M
		} `json:"segments"`
	} `json:"slices"`
}

type duffelOfferResp struct {
	Data struct {
		Offers []duffelOffer `json:"offers"`
	} `json:"data"`
}

func (d *Duffel) Search(ctx context.Context, sr models.SearchRequest) ([]models.Quote, error) {
	if d.token == "" {
		return nil, fail("duffel", ErrAuth, "token missing")
	}

	passengers := make([]duffelPassenger, 0, sr.Travelers.Adults+sr.Travelers.Children)
	for i := 0; i < sr.Travelers.Adults; i++ {
		passengers = append(passengers, duffelPassenger{Type: "adult"})
	}
	for i := 0; i < sr.Travelers.Children; i++ {
		passengers = append(passengers, duffelPassenger{Type: "child"})
	}

	reqBody := duffelOfferRequestEnvelope{Data: duffelOfferRequest{
		Slices: []duffelSlice{{
			Origin:        sr.Criteria.Origin,
			Destination:   sr.Criteria.Destination,
			DepartureDate: sr.Criteria.StartDate,
		}},
		Passengers:   passengers,
		CabinClass:   "economy",
		CurrencyCode: sr.Currency,
		ReturnOffers: true,
	}}
	b, _ := json.Marshal(reqBody)

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, d.host+"/air/offer_requests", bytes.NewReader(b))
	req.Header.Set("Authorization", "Bearer "+d.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Duffel-Version", "v2")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, Classify("duffel", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fail("duffel", ErrUpstream, "offer request: %s", resp.Status)
	}

	var pr duffelOfferResp
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fail("duffel", ErrParse, "decode offers: %v", err)
	}

	now := time.Now()
	desc := d.Descriptor()
	var out []models.Quote
	for _, o := range pr.Data.Offers {
		if len(o.Slices) == 0 || len(o.Slices[0].Segments) == 0 {
			continue
		}
		total, err := strconv.ParseFloat(o.TotalAmount, 64)
		if err != nil {
			continue
		}
		segs := o.Slices[0].Segments
		dur := 0
		for _, s := range segs {
			dur += parseISODurationMinutes(s.Duration)
		}

		cancel := models.CancellationTerms{Refundable: o.Conditions.RefundBeforeDeparture.Allowed}
		if cancel.Refundable {
			if p := o.Conditions.RefundBeforeDeparture.PenaltyAmount; p != nil {
				if penalty, err := strconv.ParseFloat(*p, 64); err == nil && total > 0 {
					cancel.PenaltyPct = round2(penalty / total * 100)
				}
			}
			if dep := parseAPITime(segs[0].DepartingAt); !dep.IsZero() {
				cancel.Deadline = &dep
			}
		}

		features := []string{"economy"}
		if len(segs) == 1 {
			features = append(features, "direct")
		}
		if cancel.Refundable {
			features = append(features, "refundable")
		}

		out = append(out, models.Quote{
			ID:         quoteID(desc.ID, o.ID),
			ProviderID: desc.ID,
			ItemType:   models.ItemFlight,
			Title:      o.Owner.Name + " " + sr.Criteria.Origin + "-" + sr.Criteria.Destination,
			Price: models.Price{
				Amount:    total,
				Currency:  o.TotalCurrency,
				Breakdown: applyCommission(total, desc.CommissionPct),
			},
			Availability: models.Availability{
				Available: true,
				Remaining: 1, // Duffel holds one priced offer per request
				ExpiresAt: quoteExpiry(now, d.quoteTTL, parseAPITime(o.ExpiresAt)),
			},
			Cancellation:    cancel,
			DurationMinutes: dur,
			Features:        features,
			DeepLink:        deepLink(d.linkBase, desc.ID, o.ID),
			Metadata: map[string]string{
				"departs": segs[0].DepartingAt,
				"arrives": segs[len(segs)-1].ArrivingAt,
			},
		})
	}
	return out, nil
}
