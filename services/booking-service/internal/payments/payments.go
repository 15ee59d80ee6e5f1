package payments

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// NoopHolds stands in for the payment processor when no Stripe key is
// configured (local development). Authorizations hand out fake hold refs;
// capture and release always succeed.
type NoopHolds struct {
	logger *slog.Logger
}

func NewNoopHolds(logger *slog.Logger) *NoopHolds {
	return &NoopHolds{logger: logger}
}

func (n *NoopHolds) AuthorizeHold(_ context.Context, amount float64, payerRef string, _ map[string]string) (string, error) {
	ref := "hold_mock_" + uuid.NewString()
	n.logger.Info("mock hold authorized", "amount", fmt.Sprintf("%.2f", amount), "payer", payerRef, "hold_ref", ref)
	return ref, nil
}

func (n *NoopHolds) CaptureHold(_ context.Context, holdRef string, amount float64) error {
	n.logger.Info("mock hold captured", "hold_ref", holdRef, "amount", fmt.Sprintf("%.2f", amount))
	return nil
}

func (n *NoopHolds) ReleaseHold(_ context.Context, holdRef string) error {
	n.logger.Info("mock hold released", "hold_ref", holdRef)
	return nil
}
