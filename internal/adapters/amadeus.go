package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/you/go-farescout/internal/config"
	"github.com/you/go-farescout/internal/models"
	"github.com/you/go-farescout/internal/registry"
)

// Amadeus searches flight offers through the Amadeus self-service API.
// OAuth2 tokens are cached under a mutex and refreshed shortly before expiry.
type Amadeus struct {
	host       string
	authPath   string
	searchPath string
	client     *http.Client
	id         string
	secret     string
	quoteTTL   time.Duration
	linkBase   string

	mu      sync.Mutex
	tok     string
	expires time.Time
}

func NewAmadeus(cfg *config.Config) *Amadeus {
	return &Amadeus{
		host:       cfg.AmadeusURL,
		authPath:   "/v1/security/oauth2/token",
		searchPath: "/v2/shopping/flight-offers",
		id:         cfg.AmadeusClientID,
		secret:     cfg.AmadeusClientSecret,
		quoteTTL:   cfg.QuoteTTL,
		linkBase:   cfg.DeepLinkBase,
		client:     http.DefaultClient,
	}
}

func (a *Amadeus) Descriptor() registry.Descriptor {
	return registry.Descriptor{
		ID:            "amadeus",
		DisplayName:   "Amadeus",
		ItemTypes:     []models.ItemType{models.ItemFlight},
		Capabilities:  registry.CapSearch | registry.CapBook | registry.CapRealTimeInventory,
		CommissionPct: 2.5,
		Currencies:    []string{"EUR", "USD", "GBP"},
		Regions:       []string{"global"},
	}
}

func (a *Amadeus) token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tok != "" && time.Now().Before(a.expires.Add(-10*time.Second)) {
		return a.tok, nil
	}
	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", a.id)
	data.Set("client_secret", a.secret)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, a.host+a.authPath, strings.NewReader(data.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fail("amadeus", ErrAuth, "token: %s", resp.Status)
	}
	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", err
	}
	a.tok = tr.AccessToken
	a.expires = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	return a.tok, nil
}

func (a *Amadeus) Search(ctx context.Context, sr models.SearchRequest) ([]models.Quote, error) {
	if a.id == "" || a.secret == "" {
		return nil, fail("amadeus", ErrAuth, "credentials missing")
	}
	tok, err := a.token(ctx)
	if err != nil {
		return nil, Classify("amadeus", err)
	}

	u := fmt.Sprintf("%s%s?originLocationCode=%s&destinationLocationCode=%s&departureDate=%s&adults=%d&currencyCode=%s&max=20",
		a.host,
		a.searchPath,
		url.QueryEscape(sr.Criteria.Origin),
		url.QueryEscape(sr.Criteria.Destination),
		url.QueryEscape(sr.Criteria.StartDate),
		sr.Travelers.Adults,
		url.QueryEscape(sr.Currency))

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, Classify("amadeus", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fail("amadeus", ErrUpstream, "search: %s", resp.Status)
	}

	var payload struct {
		Data []struct {
			ID                    string `json:"id"`
			NumberOfBookableSeats int    `json:"numberOfBookableSeats"`
			Price                 struct {
				Total string `json:"total"`
				Base  string `json:"base"`
			} `json:"price"`
			ValidatingAirlineCodes []string `json:"validatingAirlineCodes"`
			Itineraries            []struct {
				Duration string `json:"duration"` // ISO8601 e.g. PT2H10M
				Segments []struct {
					Departure struct {
						At string `json:"at"`
					} `json:"departure"`
					Arrival struct {
						At string `json:"at"`
					} `json:"arrival"`
				} `json:"segments"`
			} `json:"itineraries"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fail("amadeus", ErrParse, "decode offers: %v", err)
	}

	now := time.Now()
	desc := a.Descriptor()
	var out []models.Quote
	for _, d := range payload.Data {
		if len(d.Itineraries) == 0 || len(d.Itineraries[0].Segments) == 0 {
			continue
		}
		total, err := strconv.ParseFloat(d.Price.Total, 64)
		if err != nil {
			continue
		}
		itin := d.Itineraries[0]
		stops := len(itin.Segments) - 1
		features := []string{"economy"}
		if stops == 0 {
			features = append(features, "direct")
		}
		carrier := ""
		if len(d.ValidatingAirlineCodes) > 0 {
			carrier = d.ValidatingAirlineCodes[0]
		}

		breakdown := applyCommission(total, desc.CommissionPct)
		if base, err := strconv.ParseFloat(d.Price.Base, 64); err == nil && base > 0 && base <= total {
			taxes := round2(total - base - breakdown.Commission)
			if taxes < 0 {
				// The commission carve-out can overshoot the upstream tax
				// portion; the remainder comes out of base so no component
				// goes negative and the sum still matches the total.
				base = round2(base + taxes)
				taxes = 0
			}
			breakdown.Base = round2(base)
			breakdown.Taxes = taxes
		}

		out = append(out, models.Quote{
			ID:         quoteID(desc.ID, d.ID),
			ProviderID: desc.ID,
			ItemType:   models.ItemFlight,
			Title:      fmt.Sprintf("%s %s-%s", carrier, sr.Criteria.Origin, sr.Criteria.Destination),
			Price: models.Price{
				Amount:    total,
				Currency:  sr.Currency,
				Breakdown: breakdown,
			},
			Availability: models.Availability{
				Available: d.NumberOfBookableSeats > 0,
				Remaining: d.NumberOfBookableSeats,
				ExpiresAt: quoteExpiry(now, a.quoteTTL, time.Time{}),
			},
			DurationMinutes: parseISODurationMinutes(itin.Duration),
			Features:        features,
			DeepLink:        deepLink(a.linkBase, desc.ID, d.ID),
			Metadata: map[string]string{
				"stops":   strconv.Itoa(stops),
				"departs": itin.Segments[0].Departure.At,
				"arrives": itin.Segments[len(itin.Segments)-1].Arrival.At,
			},
		})
	}
	return out, nil
}
