package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aurasync/timehold/services/booking-service/internal/engine"
	"github.com/aurasync/timehold/services/booking-service/internal/model"
)

const (
	EventBookingCreated   = "booking.created.v1"
	EventBookingCompleted = "booking.completed.v1"
	EventBookingNoShow    = "booking.no_show.v1"
	EventBookingCancelled = "booking.cancelled.v1"
)

const rescheduleWindow = 24 * time.Hour

var activeStatuses = []model.BookingStatus{model.StatusPending, model.StatusConfirmed}

// Coordinator drives booking status transitions: it computes the deposit and
// risk snapshot at creation, issues authorize/capture/release instructions to
// the payment collaborator, mutates client aggregate statistics, and appends
// ledger transactions.
//
// Ordering under failure: local state is committed first, with the booking
// marked hold-unresolved, and the payment call runs after. A failed payment
// call leaves the booking for the hold reconciler to retry; it never leaves a
// silent partial transition. The one exception is creation, where a denied
// authorization aborts before anything is persisted.
type Coordinator struct {
	store  Store
	holds  HoldClient
	events EventSink
	logger *slog.Logger

	paymentTimeout time.Duration
	now            func() time.Time
}

type Config struct {
	// PaymentTimeout bounds every call to the payment collaborator; a stuck
	// external call is treated as failure on expiry.
	PaymentTimeout time.Duration
}

func NewCoordinator(store Store, holds HoldClient, events EventSink, logger *slog.Logger, cfg Config) *Coordinator {
	if cfg.PaymentTimeout <= 0 {
		cfg.PaymentTimeout = 10 * time.Second
	}
	return &Coordinator{
		store:          store,
		holds:          holds,
		events:         events,
		logger:         logger,
		paymentTimeout: cfg.PaymentTimeout,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

type CreateInput struct {
	MasterID    string
	ClientID    string
	ServiceID   string
	BookingDate time.Time
	Notes       string
	// WithPayment requests a synchronous authorization hold; the booking is
	// created confirmed only when the hold succeeds.
	WithPayment bool
}

// Create validates the referenced entities, snapshots price, duration, hold
// amount and risk score onto a new booking, and increments the client's
// total_bookings by exactly one. On the payment path a denied authorization
// fails the whole operation with nothing persisted.
func (c *Coordinator) Create(ctx context.Context, in CreateInput) (model.Booking, error) {
	svc, err := c.store.GetService(ctx, in.ServiceID)
	if err != nil {
		return model.Booking{}, fmt.Errorf("service %s: %w", in.ServiceID, err)
	}
	client, err := c.store.GetClient(ctx, in.ClientID)
	if err != nil {
		return model.Booking{}, fmt.Errorf("client %s: %w", in.ClientID, err)
	}
	master, err := c.store.GetMaster(ctx, in.MasterID)
	if err != nil {
		return model.Booking{}, fmt.Errorf("master %s: %w", in.MasterID, err)
	}
	if !svc.Active {
		return model.Booking{}, fmt.Errorf("service %s is inactive: %w", svc.ID, ErrNotEligible)
	}
	if svc.NewClientsOnly && client.TotalBookings > 0 {
		return model.Booking{}, fmt.Errorf("service %s accepts new clients only: %w", svc.ID, ErrNotEligible)
	}

	now := c.now()
	booking := model.Booking{
		ID:              uuid.NewString(),
		MasterID:        master.ID,
		ClientID:        client.ID,
		ServiceID:       svc.ID,
		BookingDate:     in.BookingDate.UTC(),
		DurationMinutes: svc.DurationMinutes,
		ServicePrice:    svc.Price,
		HoldAmount: engine.HoldAmount(
			svc.Price, svc.DurationMinutes, client.Reliability, client.NoShows, client.Cancellations,
		),
		RiskScore: engine.RiskScore(
			client.TotalBookings, client.CompletedBookings, client.NoShows, client.Cancellations,
		),
		Status:             model.StatusPending,
		HoldResolved:       true,
		RescheduleDeadline: in.BookingDate.UTC().Add(-rescheduleWindow),
		Notes:              in.Notes,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if in.WithPayment {
		holdRef, err := c.authorize(ctx, booking, client)
		if err != nil {
			return model.Booking{}, fmt.Errorf("%w: %v", ErrPaymentAuthorizationFailed, err)
		}
		booking.PaymentIntentID = holdRef
		booking.PaymentAuthorized = true
		booking.Status = model.StatusConfirmed
	}

	if err := c.store.InsertBooking(ctx, &booking); err != nil {
		if booking.PaymentIntentID != "" {
			c.releaseOrphanedHold(booking.PaymentIntentID)
		}
		return model.Booking{}, fmt.Errorf("persist booking: %w", err)
	}

	if _, err := c.store.AdjustClientCounters(ctx, client.ID, model.CounterDelta{TotalBookings: 1}); err != nil {
		return model.Booking{}, fmt.Errorf("increment total_bookings for client %s: %w", client.ID, err)
	}

	if booking.PaymentIntentID != "" {
		err := c.store.AppendLedger(ctx, model.LedgerTransaction{
			ID:          uuid.NewString(),
			BookingID:   booking.ID,
			MasterID:    master.ID,
			ClientID:    client.ID,
			Kind:        model.TxHoldAuth,
			Amount:      booking.HoldAmount,
			Description: fmt.Sprintf("Hold authorized for booking %s", booking.ID),
			CreatedAt:   c.now(),
		})
		if err != nil {
			return model.Booking{}, fmt.Errorf("ledger hold_auth for booking %s: %w", booking.ID, err)
		}
	}

	c.emit(ctx, EventBookingCreated, booking, map[string]any{
		"hold_amount": booking.HoldAmount,
		"risk_score":  booking.RiskScore,
	})
	return booking, nil
}

// Complete marks attendance. It increments completed_bookings, re-derives the
// client's reliability tier from the updated counters, and releases any
// outstanding hold. Completion never captures funds.
func (c *Coordinator) Complete(ctx context.Context, bookingID string) (model.Booking, error) {
	booking, err := c.transition(ctx, bookingID, activeStatuses, model.StatusCompleted)
	if err != nil {
		return model.Booking{}, err
	}

	client, err := c.store.AdjustClientCounters(ctx, booking.ClientID, model.CounterDelta{CompletedBookings: 1})
	if err != nil {
		return model.Booking{}, fmt.Errorf("increment completed_bookings: %w", err)
	}
	if err := c.reclassify(ctx, client); err != nil {
		return model.Booking{}, err
	}

	c.settleRelease(ctx, booking)

	booking.Status = model.StatusCompleted
	c.emit(ctx, EventBookingCompleted, booking, nil)
	return booking, nil
}

// NoShowResult reports the revenue split applied to a no-show.
type NoShowResult struct {
	Booking model.Booking
	Split   engine.NoShowSplit
}

// NoShow captures the hold and splits it between provider compensation and
// client wallet credit. Exactly two ledger transactions are appended for the
// split, atomically with respect to each other.
func (c *Coordinator) NoShow(ctx context.Context, bookingID string) (NoShowResult, error) {
	booking, err := c.transition(ctx, bookingID, activeStatuses, model.StatusNoShow)
	if err != nil {
		return NoShowResult{}, err
	}

	split := engine.SplitNoShow(booking.HoldAmount)

	client, err := c.store.AdjustClientCounters(ctx, booking.ClientID, model.CounterDelta{
		NoShows:      1,
		WalletCredit: split.ClientWalletCredit,
	})
	if err != nil {
		return NoShowResult{}, fmt.Errorf("apply no-show counters: %w", err)
	}
	if err := c.reclassify(ctx, client); err != nil {
		return NoShowResult{}, err
	}

	now := c.now()
	err = c.store.AppendLedger(ctx,
		model.LedgerTransaction{
			ID:          uuid.NewString(),
			BookingID:   booking.ID,
			MasterID:    booking.MasterID,
			Kind:        model.TxPayout,
			Amount:      split.MasterCompensation,
			Description: fmt.Sprintf("No-show compensation for booking %s", booking.ID),
			CreatedAt:   now,
		},
		model.LedgerTransaction{
			ID:          uuid.NewString(),
			BookingID:   booking.ID,
			ClientID:    booking.ClientID,
			Kind:        model.TxWalletCredit,
			Amount:      split.ClientWalletCredit,
			Description: "Wallet credit from no-show hold",
			CreatedAt:   now,
		},
	)
	if err != nil {
		return NoShowResult{}, fmt.Errorf("append no-show ledger rows: %w", err)
	}

	c.settleCapture(ctx, booking)

	booking.Status = model.StatusNoShow
	c.emit(ctx, EventBookingNoShow, booking, map[string]any{
		"master_compensation":  split.MasterCompensation,
		"client_wallet_credit": split.ClientWalletCredit,
	})
	return NoShowResult{Booking: booking, Split: split}, nil
}

// Cancel releases the hold and increments cancellations. It is allowed only
// while now <= reschedule_deadline; a late cancel must be recorded as a
// no-show instead. Cancellation does not re-classify reliability.
func (c *Coordinator) Cancel(ctx context.Context, bookingID string) (model.Booking, error) {
	current, err := c.store.GetBooking(ctx, bookingID)
	if err != nil {
		return model.Booking{}, fmt.Errorf("booking %s: %w", bookingID, err)
	}
	if current.Status.Terminal() {
		return model.Booking{}, fmt.Errorf("booking %s is %s: %w", bookingID, current.Status, ErrInvalidTransition)
	}
	if c.now().After(current.RescheduleDeadline) {
		return model.Booking{}, fmt.Errorf("booking %s: %w", bookingID, ErrDeadlineExceeded)
	}

	from := []model.BookingStatus{model.StatusPending, model.StatusConfirmed, model.StatusRescheduled}
	booking, err := c.transition(ctx, bookingID, from, model.StatusCancelled)
	if err != nil {
		return model.Booking{}, err
	}

	if _, err := c.store.AdjustClientCounters(ctx, booking.ClientID, model.CounterDelta{Cancellations: 1}); err != nil {
		return model.Booking{}, fmt.Errorf("increment cancellations: %w", err)
	}

	c.settleRelease(ctx, booking)

	booking.Status = model.StatusCancelled
	c.emit(ctx, EventBookingCancelled, booking, nil)
	return booking, nil
}

// transition loads the booking and applies the compare-and-set status change.
// The returned booking is the pre-transition snapshot; its immutable pricing
// fields are what later steps consume.
func (c *Coordinator) transition(ctx context.Context, bookingID string, from []model.BookingStatus, to model.BookingStatus) (model.Booking, error) {
	booking, err := c.store.GetBooking(ctx, bookingID)
	if err != nil {
		return model.Booking{}, fmt.Errorf("booking %s: %w", bookingID, err)
	}
	if !statusIn(booking.Status, from) {
		return model.Booking{}, fmt.Errorf("booking %s is %s: %w", bookingID, booking.Status, ErrInvalidTransition)
	}
	if err := c.store.TransitionBooking(ctx, bookingID, from, to); err != nil {
		return model.Booking{}, fmt.Errorf("booking %s to %s: %w", bookingID, to, err)
	}
	return booking, nil
}

// reclassify re-derives the reliability tier from the post-increment
// counters. It runs after completions and no-shows only; cancellations feed
// risk scoring but do not trigger a tier change.
func (c *Coordinator) reclassify(ctx context.Context, client model.ClientProfile) error {
	tier := engine.Classify(client.TotalBookings, client.NoShows)
	if tier == client.Reliability {
		return nil
	}
	if err := c.store.SetClientReliability(ctx, client.ID, tier); err != nil {
		return fmt.Errorf("update reliability for client %s: %w", client.ID, err)
	}
	return nil
}

func (c *Coordinator) authorize(ctx context.Context, booking model.Booking, client model.ClientProfile) (string, error) {
	payerRef := client.StripeCustomerID
	if payerRef == "" {
		payerRef = client.Email
	}
	payCtx, cancel := context.WithTimeout(ctx, c.paymentTimeout)
	defer cancel()
	return c.holds.AuthorizeHold(payCtx, booking.HoldAmount, payerRef, map[string]string{
		"booking_id": booking.ID,
		"master_id":  booking.MasterID,
		"client_id":  booking.ClientID,
	})
}

// settleCapture captures the booking's hold for the full amount after the
// local transition committed. Failure leaves the hold unresolved for the
// reconciler; it is not surfaced as an operation error.
func (c *Coordinator) settleCapture(ctx context.Context, booking model.Booking) {
	if booking.PaymentIntentID == "" {
		return
	}
	payCtx, cancel := context.WithTimeout(ctx, c.paymentTimeout)
	defer cancel()
	if err := c.holds.CaptureHold(payCtx, booking.PaymentIntentID, booking.HoldAmount); err != nil {
		c.logger.Warn("hold capture failed; left for reconciler",
			"booking_id", booking.ID, "hold_ref", booking.PaymentIntentID, "err", err)
		return
	}
	c.finishHold(ctx, booking, model.TxHoldCapture, "Hold captured on no-show")
}

func (c *Coordinator) settleRelease(ctx context.Context, booking model.Booking) {
	if booking.PaymentIntentID == "" {
		return
	}
	payCtx, cancel := context.WithTimeout(ctx, c.paymentTimeout)
	defer cancel()
	if err := c.holds.ReleaseHold(payCtx, booking.PaymentIntentID); err != nil {
		c.logger.Warn("hold release failed; left for reconciler",
			"booking_id", booking.ID, "hold_ref", booking.PaymentIntentID, "err", err)
		return
	}
	c.finishHold(ctx, booking, model.TxHoldRelease, "Hold released")
}

func (c *Coordinator) finishHold(ctx context.Context, booking model.Booking, kind model.TransactionKind, desc string) {
	if err := c.store.MarkHoldResolved(ctx, booking.ID); err != nil {
		c.logger.Error("failed to mark hold resolved", "booking_id", booking.ID, "err", err)
		return
	}
	err := c.store.AppendLedger(ctx, model.LedgerTransaction{
		ID:          uuid.NewString(),
		BookingID:   booking.ID,
		MasterID:    booking.MasterID,
		ClientID:    booking.ClientID,
		Kind:        kind,
		Amount:      booking.HoldAmount,
		Description: fmt.Sprintf("%s (%s)", desc, booking.PaymentIntentID),
		CreatedAt:   c.now(),
	})
	if err != nil {
		c.logger.Error("failed to append hold settlement ledger row", "booking_id", booking.ID, "err", err)
	}
}

// releaseOrphanedHold cleans up an authorized hold whose booking failed to
// persist. Best-effort: the authorization expires server-side eventually.
func (c *Coordinator) releaseOrphanedHold(holdRef string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.paymentTimeout)
	defer cancel()
	if err := c.holds.ReleaseHold(ctx, holdRef); err != nil {
		c.logger.Error("failed to release orphaned hold", "hold_ref", holdRef, "err", err)
	}
}

func (c *Coordinator) emit(ctx context.Context, evtType string, booking model.Booking, payload map[string]any) {
	if c.events == nil {
		return
	}
	evt := Event{
		Type:     evtType,
		Booking:  booking,
		MasterID: booking.MasterID,
		ClientID: booking.ClientID,
		Payload:  payload,
	}
	if err := c.events.Record(ctx, evt); err != nil {
		c.logger.Warn("failed to record domain event", "type", evtType, "booking_id", booking.ID, "err", err)
	}
}

func statusIn(s model.BookingStatus, set []model.BookingStatus) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}
