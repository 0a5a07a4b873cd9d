package models

import (
	"fmt"
	"time"
)

// AlertCondition is the trigger rule of a subscription.
type AlertCondition string

const (
	CondBelow   AlertCondition = "below"    // price < target
	CondAbove   AlertCondition = "above"    // price > target
	CondDropsBy AlertCondition = "drops_by" // price fell >= target percent vs window mean
	CondRisesBy AlertCondition = "rises_by" // price rose >= target percent vs window mean
)

// Valid reports whether c is a known condition.
func (c AlertCondition) Valid() bool {
	switch c {
	case CondBelow, CondAbove, CondDropsBy, CondRisesBy:
		return true
	}
	return false
}

// PriceAlert is a caller's subscription to price movements of one item.
// Deactivated once triggered or cancelled.
type PriceAlert struct {
	ID                  string         `json:"id"`
	UserID              string         `json:"user_id"`
	ItemID              string         `json:"item_id"`
	TargetPrice         float64        `json:"target_price"` // absolute for below/above, percent for drops_by/rises_by
	Currency            string         `json:"currency"`
	Condition           AlertCondition `json:"condition"`
	Active              bool           `json:"active"`
	CreatedAt           time.Time      `json:"created_at"`
	TriggeredAt         *time.Time     `json:"triggered_at,omitempty"`
	NotificationMethods []string       `json:"notification_methods"`
}

// AlertKind classifies an emitted alert.
type AlertKind string

const (
	AlertPriceDrop       AlertKind = "price_drop"
	AlertPriceSpike      AlertKind = "price_spike"
	AlertAvailabilityLow AlertKind = "availability_low"
)

// AlertUrgency grades how promptly an alert should reach the user.
type AlertUrgency string

const (
	UrgencyLow    AlertUrgency = "low"
	UrgencyMedium AlertUrgency = "medium"
	UrgencyHigh   AlertUrgency = "high"
)

// MarketAlert is an advisory emitted by the prediction engine for everyone
// watching an item, independent of subscriptions.
type MarketAlert struct {
	ItemID    string       `json:"item_id"`
	Kind      AlertKind    `json:"kind"`
	Urgency   AlertUrgency `json:"urgency"`
	Message   string       `json:"message"`
	CreatedAt time.Time    `json:"created_at"`
}

// AlertNotification is what a triggered subscription delivers to the sink.
type AlertNotification struct {
	Alert        PriceAlert `json:"alert"`
	Kind         AlertKind  `json:"kind"`
	CurrentPrice float64    `json:"current_price"`
	Message      string     `json:"message"`
	TriggeredAt  time.Time  `json:"triggered_at"`
}

// NewMarketAlert builds an advisory with a rendered message.
func NewMarketAlert(itemID string, kind AlertKind, urgency AlertUrgency, format string, args ...any) MarketAlert {
	return MarketAlert{
		ItemID:    itemID,
		Kind:      kind,
		Urgency:   urgency,
		Message:   fmt.Sprintf(format, args...),
		CreatedAt: time.Now().UTC(),
	}
}
