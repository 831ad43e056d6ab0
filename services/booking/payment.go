package booking

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"go.uber.org/zap"
)

// PaymentOutcome is the result of a single authorization attempt.
type PaymentOutcome string

const (
	PaymentApproved PaymentOutcome = "approved"
	PaymentDeclined PaymentOutcome = "declined"
	PaymentTimeout  PaymentOutcome = "timeout"
)

// PaymentRequest carries what the authorization collaborator needs. The
// booking id doubles as the idempotency key, so retries after a timeout
// never double-charge.
type PaymentRequest struct {
	BookingID string
	ClientID  string
	Amount    int64
	Currency  string
	Method    string
}

// PaymentAuthorizer is the external payment collaborator. Implementations
// must be idempotent under retry for the same booking id.
type PaymentAuthorizer interface {
	Authorize(ctx context.Context, req PaymentRequest) (PaymentOutcome, error)
}

// StripeAuthorizer authorizes card payments through Stripe payment
// intents, keyed by booking id for idempotency.
type StripeAuthorizer struct {
	logger *zap.Logger
}

// NewStripeAuthorizer builds the production card authorizer. The Stripe
// API key must be set on the stripe package before first use.
func NewStripeAuthorizer(apiKey string, logger *zap.Logger) *StripeAuthorizer {
	stripe.Key = apiKey
	return &StripeAuthorizer{logger: logger}
}

func (a *StripeAuthorizer) Authorize(ctx context.Context, req PaymentRequest) (PaymentOutcome, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(req.Currency),
		Confirm:       stripe.Bool(true),
		PaymentMethod: stripe.String(req.Method),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey("booking-" + req.BookingID)

	pi, err := paymentintent.New(params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return PaymentTimeout, nil
		}
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			if stripeErr.Type == stripe.ErrorTypeCard {
				a.logger.Info("card declined",
					zap.String("booking_id", req.BookingID),
					zap.String("decline_code", string(stripeErr.DeclineCode)),
				)
				return PaymentDeclined, nil
			}
		}
		return PaymentDeclined, err
	}

	if pi.Status == stripe.PaymentIntentStatusSucceeded ||
		pi.Status == stripe.PaymentIntentStatusRequiresCapture {
		return PaymentApproved, nil
	}
	a.logger.Info("payment intent not authorized",
		zap.String("booking_id", req.BookingID),
		zap.String("status", string(pi.Status)),
	)
	return PaymentDeclined, nil
}

// AutoApproveAuthorizer approves everything instantly. Used for providers
// that collect payment on service and in development setups.
type AutoApproveAuthorizer struct{}

func (AutoApproveAuthorizer) Authorize(ctx context.Context, req PaymentRequest) (PaymentOutcome, error) {
	select {
	case <-ctx.Done():
		return PaymentTimeout, nil
	default:
		return PaymentApproved, nil
	}
}
