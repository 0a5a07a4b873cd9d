// Package booking turns selected quotes into confirmed bookings. Quotes are
// carried between search and confirmation as signed vouchers, so the core
// never has to keep per-quote server state alive between the two calls.
package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/you/go-farescout/internal/models"
)

// VoucherClaims is what a verified voucher asserts about its quote. The
// voucher expiry equals the quote's availability deadline, so an expired
// voucher and an expired quote are the same event.
type VoucherClaims struct {
	QuoteID   string
	Provider  string
	Amount    float64
	Currency  string
	ExpiresAt time.Time
}

// Signer mints and verifies vouchers with an HMAC secret.
type Signer struct {
	secret []byte
	now    func() time.Time
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret), now: time.Now}
}

// Issue signs a voucher binding the quote's identity, price, and expiry.
func (s *Signer) Issue(q *models.Quote) (string, error) {
	claims := jwt.MapClaims{
		"sub": q.ID,
		"prv": q.ProviderID,
		"amt": q.Price.Amount,
		"cur": q.Price.Currency,
		"iat": s.now().Unix(),
		"exp": q.Availability.ExpiresAt.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

// Verify checks the signature and expiry and returns the bound claims.
// Expired vouchers report models.ErrQuoteExpired; everything else about a
// bad voucher is an opaque verification failure.
func (s *Signer) Verify(voucher string) (*VoucherClaims, error) {
	tok, err := jwt.Parse(voucher, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrQuoteExpired
		}
		return nil, fmt.Errorf("booking: invalid voucher: %w", err)
	}

	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("booking: unexpected claims shape")
	}
	sub, _ := mc["sub"].(string)
	prv, _ := mc["prv"].(string)
	amt, _ := mc["amt"].(float64)
	cur, _ := mc["cur"].(string)
	if sub == "" || cur == "" {
		return nil, fmt.Errorf("booking: voucher missing quote identity")
	}
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("booking: voucher missing expiry")
	}

	return &VoucherClaims{
		QuoteID:   sub,
		Provider:  prv,
		Amount:    amt,
		Currency:  cur,
		ExpiresAt: exp.Time,
	}, nil
}
