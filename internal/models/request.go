package models

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ItemType identifies the kind of travel item a search targets.
type ItemType string

const (
	ItemFlight   ItemType = "flight"
	ItemHotel    ItemType = "hotel"
	ItemCar      ItemType = "car"
	ItemActivity ItemType = "activity"
)

// ParseItemType maps a request string onto a known item type.
func ParseItemType(s string) (ItemType, error) {
	switch ItemType(strings.ToLower(strings.TrimSpace(s))) {
	case ItemFlight:
		return ItemFlight, nil
	case ItemHotel:
		return ItemHotel, nil
	case ItemCar:
		return ItemCar, nil
	case ItemActivity:
		return ItemActivity, nil
	default:
		return "", fmt.Errorf("unknown item type %q", s)
	}
}

// Travelers carries the party composition for a search.
type Travelers struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
}

// SearchCriteria is the provider-facing part of a search: where, when, how many.
// Origin is empty for stationary items (hotels, activities).
type SearchCriteria struct {
	Origin      string `json:"origin,omitempty"`
	Destination string `json:"destination"`
	StartDate   string `json:"start_date"` // YYYY-MM-DD
	EndDate     string `json:"end_date,omitempty"`
	Occupancy   int    `json:"occupancy,omitempty"` // rooms for hotels, seats for cars
}

// SearchRequest is created by the caller per search and read-only to the core.
type SearchRequest struct {
	ItemType          ItemType       `json:"item_type"`
	Criteria          SearchCriteria `json:"criteria"`
	Travelers         Travelers      `json:"travelers"`
	BudgetCeiling     float64        `json:"budget_ceiling,omitempty"` // 0 = no ceiling
	Currency          string         `json:"currency"`
	BookingWindowDays int            `json:"booking_window_days,omitempty"`
}

const dateLayout = "2006-01-02"

// Validate normalizes the request in place and reports every problem at once.
func (r *SearchRequest) Validate() error {
	var errs []string

	if _, err := ParseItemType(string(r.ItemType)); err != nil {
		errs = append(errs, err.Error())
	}

	r.Criteria.Origin = strings.ToUpper(strings.TrimSpace(r.Criteria.Origin))
	r.Criteria.Destination = strings.ToUpper(strings.TrimSpace(r.Criteria.Destination))
	if r.Criteria.Destination == "" {
		errs = append(errs, "destination is required")
	}
	if r.ItemType == ItemFlight && r.Criteria.Origin == "" {
		errs = append(errs, "origin is required for flight searches")
	}

	start, err := time.Parse(dateLayout, r.Criteria.StartDate)
	if err != nil {
		errs = append(errs, "invalid start_date")
	}
	if r.Criteria.EndDate != "" {
		end, err := time.Parse(dateLayout, r.Criteria.EndDate)
		if err != nil {
			errs = append(errs, "invalid end_date")
		} else if start.After(end) {
			errs = append(errs, "end_date before start_date")
		}
	}

	if r.Travelers.Adults <= 0 {
		errs = append(errs, "at least one adult traveler required")
	}
	if r.Travelers.Adults > 9 || r.Travelers.Children > 9 {
		errs = append(errs, "traveler count out of range")
	}
	if r.BudgetCeiling < 0 {
		errs = append(errs, "budget_ceiling must not be negative")
	}

	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	if r.Currency == "" {
		r.Currency = "EUR"
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, ", "))
	}
	return nil
}

// CriteriaKey is the normalized identity of the searched item. Two searches
// with the same key observe the same item and share a price history.
func (r *SearchRequest) CriteriaKey() string {
	return strings.Join([]string{
		string(r.ItemType),
		strings.ToLower(r.Criteria.Origin),
		strings.ToLower(r.Criteria.Destination),
		r.Criteria.StartDate,
		r.Criteria.EndDate,
		fmt.Sprintf("%d", r.Criteria.Occupancy),
		fmt.Sprintf("%d-%d", r.Travelers.Adults, r.Travelers.Children),
	}, "|")
}

// ItemID is the URL-safe identity derived from CriteriaKey, used for price
// history lookups, alert subscriptions and cache keys.
func (r *SearchRequest) ItemID() string {
	return HashKey(r.CriteriaKey())
}

// RequestHash keys the aggregate result cache. Unlike CriteriaKey it also
// covers budget and currency, which change the produced comparison without
// changing the tracked item.
func (r *SearchRequest) RequestHash() string {
	return HashKey(fmt.Sprintf("%s|%s|%.2f", r.CriteriaKey(), r.Currency, r.BudgetCeiling))
}

// HashKey shortens an arbitrary key to 16 hex chars of its SHA-256.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:16]
}
