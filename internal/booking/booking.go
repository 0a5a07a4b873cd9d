package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/you/go-farescout/internal/models"
)

// ErrPaymentDeclined is how a gateway reports a decline, as opposed to being
// unreachable. Declines become rejected confirmations, not errors.
var ErrPaymentDeclined = errors.New("payment declined")

// ErrPaymentUnavailable wraps gateway transport failures so callers can tell
// an unreachable gateway apart from a bad request.
var ErrPaymentUnavailable = errors.New("payment gateway unavailable")

// PaymentGateway authorizes the total against the caller's payment token.
// Settlement and capture live entirely in the external collaborator.
type PaymentGateway interface {
	Authorize(ctx context.Context, paymentToken string, amount float64, currency string) (authRef string, err error)
}

// NoopGateway approves every authorization. Demo-mode default.
type NoopGateway struct{}

func (NoopGateway) Authorize(context.Context, string, float64, string) (string, error) {
	return "noop-" + uuid.NewString()[:8], nil
}

type Service struct {
	signer  *Signer
	gateway PaymentGateway
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(signer *Signer, gateway PaymentGateway, logger *slog.Logger) *Service {
	return &Service{signer: signer, gateway: gateway, logger: logger, now: time.Now}
}

// Confirm validates every voucher in the request, authorizes the combined
// total, and returns the confirmation. Any expired quote fails the whole
// booking with models.ErrQuoteExpired before payment is touched.
func (s *Service) Confirm(ctx context.Context, req models.BookingRequest) (*models.BookingConfirmation, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var (
		total    float64
		currency string
		quoteIDs = make([]string, 0, len(req.Items))
	)
	for _, item := range req.Items {
		claims, err := s.signer.Verify(item.Voucher)
		if err != nil {
			return nil, err
		}
		if claims.QuoteID != item.QuoteID {
			return nil, fmt.Errorf("booking: voucher is bound to quote %s, not %s", claims.QuoteID, item.QuoteID)
		}
		if currency == "" {
			currency = claims.Currency
		} else if currency != claims.Currency {
			return nil, fmt.Errorf("booking: mixed currencies %s and %s in one booking", currency, claims.Currency)
		}
		total += claims.Amount
		quoteIDs = append(quoteIDs, claims.QuoteID)
	}

	authRef, err := s.gateway.Authorize(ctx, req.PaymentToken, total, currency)
	ref := s.bookingRef()
	conf := &models.BookingConfirmation{
		BookingRef:  ref,
		QuoteIDs:    quoteIDs,
		TotalAmount: total,
		Currency:    currency,
		CreatedAt:   s.now(),
	}
	switch {
	case errors.Is(err, ErrPaymentDeclined):
		conf.Status = models.BookingRejected
		s.logger.Info("booking rejected", "booking_ref", ref, "total", total, "currency", currency)
		return conf, nil
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrPaymentUnavailable, err)
	}

	conf.Status = models.BookingConfirmed
	s.logger.Info("booking confirmed",
		"booking_ref", ref,
		"auth_ref", authRef,
		"quotes", len(quoteIDs),
		"total", total,
		"currency", currency,
	)
	return conf, nil
}

func validateRequest(req models.BookingRequest) error {
	var problems []string
	if len(req.Items) == 0 {
		problems = append(problems, "at least one quote is required")
	}
	for i, item := range req.Items {
		if item.QuoteID == "" || item.Voucher == "" {
			problems = append(problems, fmt.Sprintf("item %d needs quote_id and voucher", i))
		}
	}
	if len(req.Travelers) == 0 {
		problems = append(problems, "at least one traveler is required")
	}
	for i, t := range req.Travelers {
		if t.FirstName == "" || t.LastName == "" {
			problems = append(problems, fmt.Sprintf("traveler %d needs first and last name", i))
		}
	}
	if req.PaymentToken == "" {
		problems = append(problems, "payment_token is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("booking: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (s *Service) bookingRef() string {
	return "FS-" + strings.ToUpper(uuid.NewString()[:8])
}
