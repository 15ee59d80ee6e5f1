package payments

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/paymentintent"
)

// StripeHolds places deposit holds as manual-capture PaymentIntents. The
// intent stays in requires_capture until we either capture (no-show) or
// cancel (completion, timely cancellation).
type StripeHolds struct {
	logger *slog.Logger
}

func NewStripeHolds(secretKey string, logger *slog.Logger) *StripeHolds {
	stripe.Key = secretKey
	return &StripeHolds{logger: logger}
}

// eurosToCents converts a euro amount to Stripe's integer minor units.
func eurosToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func (s *StripeHolds) AuthorizeHold(ctx context.Context, amount float64, payerRef string, metadata map[string]string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(eurosToCents(amount)),
		Currency:      stripe.String(string(stripe.CurrencyEUR)),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Description:   stripe.String("Booking deposit hold"),
		PaymentMethodTypes: []*string{
			stripe.String("card"),
		},
	}
	params.Context = ctx
	if payerRef != "" {
		params.AddMetadata("payer_ref", payerRef)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe authorize hold: %w", err)
	}
	s.logger.Info("hold authorized", "payment_intent_id", pi.ID, "amount_cents", pi.Amount)
	return pi.ID, nil
}

func (s *StripeHolds) CaptureHold(ctx context.Context, holdRef string, amount float64) error {
	params := &stripe.PaymentIntentCaptureParams{
		AmountToCapture: stripe.Int64(eurosToCents(amount)),
	}
	params.Context = ctx

	pi, err := paymentintent.Capture(holdRef, params)
	if err != nil {
		return fmt.Errorf("stripe capture hold %s: %w", holdRef, err)
	}
	s.logger.Info("hold captured", "payment_intent_id", pi.ID, "amount_cents", pi.AmountReceived)
	return nil
}

func (s *StripeHolds) ReleaseHold(ctx context.Context, holdRef string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx

	pi, err := paymentintent.Cancel(holdRef, params)
	if err != nil {
		return fmt.Errorf("stripe release hold %s: %w", holdRef, err)
	}
	s.logger.Info("hold released", "payment_intent_id", pi.ID)
	return nil
}
