package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aurasync/timehold/services/booking-service/internal/lifecycle"
	"github.com/aurasync/timehold/services/booking-service/internal/model"
)

type fakeStore struct {
	lifecycle.Store

	unresolved []model.Booking
	resolved   []string
	ledger     []model.LedgerTransaction
}

func (s *fakeStore) ListUnresolvedHolds(_ context.Context, limit int) ([]model.Booking, error) {
	if len(s.unresolved) > limit {
		return s.unresolved[:limit], nil
	}
	return s.unresolved, nil
}

func (s *fakeStore) MarkHoldResolved(_ context.Context, bookingID string) error {
	s.resolved = append(s.resolved, bookingID)
	return nil
}

func (s *fakeStore) AppendLedger(_ context.Context, txs ...model.LedgerTransaction) error {
	s.ledger = append(s.ledger, txs...)
	return nil
}

type fakeHolds struct {
	captured []string
	released []string
	captErr  error
}

func (h *fakeHolds) AuthorizeHold(context.Context, float64, string, map[string]string) (string, error) {
	return "", errors.New("not used")
}

func (h *fakeHolds) CaptureHold(_ context.Context, ref string, _ float64) error {
	if h.captErr != nil {
		return h.captErr
	}
	h.captured = append(h.captured, ref)
	return nil
}

func (h *fakeHolds) ReleaseHold(_ context.Context, ref string) error {
	h.released = append(h.released, ref)
	return nil
}

func newReconciler(store lifecycle.Store, holds lifecycle.HoldClient) *HoldReconciler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHoldReconciler(nil, store, holds, logger, Config{BatchSize: 10})
}

func TestReconcileCapturesNoShowHolds(t *testing.T) {
	store := &fakeStore{unresolved: []model.Booking{
		{ID: "b1", MasterID: "m1", ClientID: "c1", Status: model.StatusNoShow, PaymentIntentID: "pi_1", HoldAmount: 20},
	}}
	holds := &fakeHolds{}

	newReconciler(store, holds).ReconcileOnce(context.Background())

	if len(holds.captured) != 1 || holds.captured[0] != "pi_1" {
		t.Fatalf("captured = %v, want [pi_1]", holds.captured)
	}
	if len(holds.released) != 0 {
		t.Fatalf("unexpected releases: %v", holds.released)
	}
	if len(store.resolved) != 1 || store.resolved[0] != "b1" {
		t.Fatalf("resolved = %v, want [b1]", store.resolved)
	}
	if len(store.ledger) != 1 || store.ledger[0].Kind != model.TxHoldCapture {
		t.Fatalf("ledger = %+v, want one hold_capture row", store.ledger)
	}
	if store.ledger[0].Amount != 20 {
		t.Fatalf("ledger amount = %v, want 20", store.ledger[0].Amount)
	}
}

func TestReconcileReleasesCompletedAndCancelled(t *testing.T) {
	store := &fakeStore{unresolved: []model.Booking{
		{ID: "b1", Status: model.StatusCompleted, PaymentIntentID: "pi_1", HoldAmount: 12},
		{ID: "b2", Status: model.StatusCancelled, PaymentIntentID: "pi_2", HoldAmount: 8},
	}}
	holds := &fakeHolds{}

	newReconciler(store, holds).ReconcileOnce(context.Background())

	if len(holds.released) != 2 {
		t.Fatalf("released = %v, want two releases", holds.released)
	}
	if len(store.ledger) != 2 {
		t.Fatalf("ledger rows = %d, want 2", len(store.ledger))
	}
	for _, tx := range store.ledger {
		if tx.Kind != model.TxHoldRelease {
			t.Fatalf("ledger kind = %s, want hold_release", tx.Kind)
		}
	}
}

func TestReconcileLeavesFailedCaptureUnresolved(t *testing.T) {
	store := &fakeStore{unresolved: []model.Booking{
		{ID: "b1", Status: model.StatusNoShow, PaymentIntentID: "pi_1", HoldAmount: 20},
	}}
	holds := &fakeHolds{captErr: errors.New("provider down")}

	newReconciler(store, holds).ReconcileOnce(context.Background())

	if len(store.resolved) != 0 {
		t.Fatalf("resolved = %v, want none while capture keeps failing", store.resolved)
	}
	if len(store.ledger) != 0 {
		t.Fatalf("ledger rows = %d, want 0", len(store.ledger))
	}
}

func TestReconcileClosesHoldlessBookings(t *testing.T) {
	store := &fakeStore{unresolved: []model.Booking{
		{ID: "b1", Status: model.StatusCompleted},
	}}
	holds := &fakeHolds{}

	newReconciler(store, holds).ReconcileOnce(context.Background())

	if len(store.resolved) != 1 || store.resolved[0] != "b1" {
		t.Fatalf("resolved = %v, want [b1]", store.resolved)
	}
	if len(store.ledger) != 0 {
		t.Fatalf("ledger rows = %d, want 0", len(store.ledger))
	}
}
