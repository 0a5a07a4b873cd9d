package models

import "time"

// BookingStatus is the state of a confirmation.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingRejected  BookingStatus = "rejected"
)

// Traveler is the minimal identity the core validates before handing off to
// the payment collaborator.
type Traveler struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
}

// BookingItem pairs a selected quote id with its signed voucher.
type BookingItem struct {
	QuoteID string `json:"quote_id"`
	Voucher string `json:"voucher"`
}

// BookingRequest is the confirmation input from the caller.
type BookingRequest struct {
	Items        []BookingItem `json:"items"`
	Travelers    []Traveler    `json:"travelers"`
	PaymentToken string        `json:"payment_token"`
}

// BookingConfirmation is the core's answer; payment settlement happens in the
// external collaborator behind the gateway interface.
type BookingConfirmation struct {
	BookingRef  string        `json:"booking_ref"`
	Status      BookingStatus `json:"status"`
	QuoteIDs    []string      `json:"quote_ids"`
	TotalAmount float64       `json:"total_amount"`
	Currency    string        `json:"currency"`
	CreatedAt   time.Time     `json:"created_at"`
}
