package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aurasync/timehold/services/booking-service/internal/engine"
	"github.com/aurasync/timehold/services/booking-service/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store *memStore
	holds *memHolds
	sink  *memSink
	coord *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	store.masters["m1"] = model.Master{ID: "m1", Email: "sophia@studio.test", Name: "Sophia"}
	store.services["s1"] = model.ServiceOffering{
		ID: "s1", MasterID: "m1", Name: "Balayage",
		DurationMinutes: 60, Price: 100, Active: true,
	}
	store.clients["c1"] = model.ClientProfile{
		ID: "c1", Email: "anna@client.test", Name: "Anna", Reliability: model.ReliabilityNew,
	}
	holds := &memHolds{}
	sink := &memSink{}
	coord := NewCoordinator(store, holds, sink, testLogger(), Config{})
	return &fixture{store: store, holds: holds, sink: sink, coord: coord}
}

func (f *fixture) create(t *testing.T, withPayment bool) model.Booking {
	t.Helper()
	booking, err := f.coord.Create(context.Background(), CreateInput{
		MasterID:    "m1",
		ClientID:    "c1",
		ServiceID:   "s1",
		BookingDate: time.Now().UTC().Add(72 * time.Hour),
		WithPayment: withPayment,
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return booking
}

func TestCreate_SnapshotsPricingAndIncrementsTotal(t *testing.T) {
	f := newFixture(t)
	booking := f.create(t, false)

	if booking.Status != model.StatusPending {
		t.Fatalf("expected pending, got %s", booking.Status)
	}
	if booking.ServicePrice != 100 || booking.DurationMinutes != 60 {
		t.Fatalf("snapshot wrong: %+v", booking)
	}
	want := engine.HoldAmount(100, 60, model.ReliabilityNew, 0, 0)
	if booking.HoldAmount != want {
		t.Fatalf("hold %.2f, want %.2f", booking.HoldAmount, want)
	}
	if booking.RiskScore != 50 {
		t.Fatalf("zero-history client should score neutral 50, got %d", booking.RiskScore)
	}
	if !booking.RescheduleDeadline.Equal(booking.BookingDate.Add(-24 * time.Hour)) {
		t.Fatalf("deadline not 24h before booking date")
	}

	client, _ := f.store.GetClient(context.Background(), "c1")
	if client.TotalBookings != 1 {
		t.Fatalf("total_bookings = %d, want 1", client.TotalBookings)
	}
	if client.CompletedBookings != 0 || client.NoShows != 0 || client.Cancellations != 0 {
		t.Fatalf("terminal counters must not move on create: %+v", client)
	}
}

func TestCreate_WithPaymentConfirms(t *testing.T) {
	f := newFixture(t)
	booking := f.create(t, true)

	if booking.Status != model.StatusConfirmed {
		t.Fatalf("expected confirmed with authorized hold, got %s", booking.Status)
	}
	if !booking.PaymentAuthorized || booking.PaymentIntentID == "" {
		t.Fatalf("payment fields not set: %+v", booking)
	}
	rows := f.store.ledgerForBooking(booking.ID)
	if len(rows) != 1 || rows[0].Kind != model.TxHoldAuth {
		t.Fatalf("expected single hold_auth ledger row, got %+v", rows)
	}
}

func TestCreate_AuthorizationDeniedPersistsNothing(t *testing.T) {
	f := newFixture(t)
	f.holds.authErr = errors.New("card declined")

	_, err := f.coord.Create(context.Background(), CreateInput{
		MasterID: "m1", ClientID: "c1", ServiceID: "s1",
		BookingDate: time.Now().UTC().Add(72 * time.Hour),
		WithPayment: true,
	})
	if !errors.Is(err, ErrPaymentAuthorizationFailed) {
		t.Fatalf("expected ErrPaymentAuthorizationFailed, got %v", err)
	}
	if len(f.store.bookings) != 0 {
		t.Fatal("booking must not be persisted after denied authorization")
	}
	client, _ := f.store.GetClient(context.Background(), "c1")
	if client.TotalBookings != 0 {
		t.Fatalf("total_bookings moved to %d on failed create", client.TotalBookings)
	}
}

func TestCreate_MissingServiceAborts(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.Create(context.Background(), CreateInput{
		MasterID: "m1", ClientID: "c1", ServiceID: "nope",
		BookingDate: time.Now().UTC().Add(72 * time.Hour),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreate_NewClientsOnlyRejectsHistory(t *testing.T) {
	f := newFixture(t)
	svc := f.store.services["s1"]
	svc.NewClientsOnly = true
	f.store.services["s1"] = svc
	c := f.store.clients["c1"]
	c.TotalBookings = 4
	f.store.clients["c1"] = c

	_, err := f.coord.Create(context.Background(), CreateInput{
		MasterID: "m1", ClientID: "c1", ServiceID: "s1",
		BookingDate: time.Now().UTC().Add(72 * time.Hour),
	})
	if !errors.Is(err, ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
}

func TestComplete_IncrementsAndReleasesHold(t *testing.T) {
	f := newFixture(t)
	booking := f.create(t, true)

	if _, err := f.coord.Complete(context.Background(), booking.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	client, _ := f.store.GetClient(context.Background(), "c1")
	if client.CompletedBookings != 1 {
		t.Fatalf("completed_bookings = %d, want 1", client.CompletedBookings)
	}
	if client.NoShows != 0 || client.Cancellations != 0 {
		t.Fatalf("only completed_bookings may move: %+v", client)
	}
	if len(f.holds.captured) != 0 {
		t.Fatal("completion must never capture funds")
	}
	if len(f.holds.released) != 1 {
		t.Fatalf("expected one release, got %d", len(f.holds.released))
	}
	stored, _ := f.store.GetBooking(context.Background(), booking.ID)
	if !stored.HoldResolved {
		t.Fatal("hold should be resolved after successful release")
	}
}

func TestComplete_ReclassifiesReliability(t *testing.T) {
	f := newFixture(t)
	c := f.store.clients["c1"]
	c.TotalBookings = 2
	c.CompletedBookings = 2
	c.Reliability = model.ReliabilityNew
	f.store.clients["c1"] = c

	booking := f.create(t, false) // total becomes 3
	if _, err := f.coord.Complete(context.Background(), booking.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	client, _ := f.store.GetClient(context.Background(), "c1")
	if client.Reliability != model.ReliabilityReliable {
		t.Fatalf("expected reliable after third clean booking, got %s", client.Reliability)
	}
}

func TestNoShow_SplitWalletAndLedger(t *testing.T) {
	f := newFixture(t)
	booking := f.create(t, false)

	res, err := f.coord.NoShow(context.Background(), booking.ID)
	if err != nil {
		t.Fatalf("no-show: %v", err)
	}

	split := engine.SplitNoShow(booking.HoldAmount)
	if res.Split != split {
		t.Fatalf("split mismatch: got %+v want %+v", res.Split, split)
	}

	client, _ := f.store.GetClient(context.Background(), "c1")
	if client.NoShows != 1 {
		t.Fatalf("no_shows = %d, want 1", client.NoShows)
	}
	if client.WalletBalance != split.ClientWalletCredit {
		t.Fatalf("wallet %.2f, want %.2f", client.WalletBalance, split.ClientWalletCredit)
	}

	rows := f.store.ledgerForBooking(booking.ID)
	if len(rows) != 2 {
		t.Fatalf("expected exactly two ledger rows, got %d", len(rows))
	}
	var payout, credit float64
	for _, row := range rows {
		switch row.Kind {
		case model.TxPayout:
			payout = row.Amount
		case model.TxWalletCredit:
			credit = row.Amount
		default:
			t.Fatalf("unexpected ledger kind %s", row.Kind)
		}
	}
	if engine.Round2(payout+credit) != booking.HoldAmount {
		t.Fatalf("ledger split leaks: %.2f + %.2f != %.2f", payout, credit, booking.HoldAmount)
	}
}

func TestNoShow_CapturesFullHold(t *testing.T) {
	f := newFixture(t)
	booking := f.create(t, true)

	if _, err := f.coord.NoShow(context.Background(), booking.ID); err != nil {
		t.Fatalf("no-show: %v", err)
	}
	if len(f.holds.captured) != 1 {
		t.Fatalf("expected one capture, got %d", len(f.holds.captured))
	}
	if len(f.holds.released) != 0 {
		t.Fatal("no-show must not release the hold")
	}
}

func TestNoShow_ReclassifiesWithIncrementedCount(t *testing.T) {
	f := newFixture(t)
	c := f.store.clients["c1"]
	c.TotalBookings = 4
	c.CompletedBookings = 4
	c.Reliability = model.ReliabilityReliable
	f.store.clients["c1"] = c

	booking := f.create(t, false) // total 5
	if _, err := f.coord.NoShow(context.Background(), booking.ID); err != nil {
		t.Fatalf("no-show: %v", err)
	}

	client, _ := f.store.GetClient(context.Background(), "c1")
	// 1/5 = 20% is at the threshold, not above: still reliable.
	if client.Reliability != model.ReliabilityReliable {
		t.Fatalf("expected reliable at threshold, got %s", client.Reliability)
	}

	booking2 := f.create(t, false) // total 6
	if _, err := f.coord.NoShow(context.Background(), booking2.ID); err != nil {
		t.Fatalf("second no-show: %v", err)
	}
	client, _ = f.store.GetClient(context.Background(), "c1")
	// 2/6 = 33% tips into needs-protection.
	if client.Reliability != model.ReliabilityNeedsProtection {
		t.Fatalf("expected needs-protection, got %s", client.Reliability)
	}
}

func TestNoShow_RepeatRejected(t *testing.T) {
	f := newFixture(t)
	booking := f.create(t, false)

	if _, err := f.coord.NoShow(context.Background(), booking.ID); err != nil {
		t.Fatalf("first no-show: %v", err)
	}
	_, err := f.coord.NoShow(context.Background(), booking.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on repeat, got %v", err)
	}

	client, _ := f.store.GetClient(context.Background(), "c1")
	if client.NoShows != 1 {
		t.Fatalf("no_shows double-counted: %d", client.NoShows)
	}
	if rows := f.store.ledgerForBooking(booking.ID); len(rows) != 2 {
		t.Fatalf("ledger rows = %d, want 2", len(rows))
	}
}

func TestNoShow_ConcurrentRequestsExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	booking := f.create(t, false)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.coord.NoShow(context.Background(), booking.ID)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("loser got unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
	if rows := f.store.ledgerForBooking(booking.ID); len(rows) != 2 {
		t.Fatalf("ledger rows = %d, want exactly 2", len(rows))
	}
	client, _ := f.store.GetClient(context.Background(), "c1")
	if client.NoShows != 1 {
		t.Fatalf("no_shows = %d under concurrency, want 1", client.NoShows)
	}
}

func TestCancel_BeforeDeadlineReleasesHold(t *testing.T) {
	f := newFixture(t)
	booking := f.create(t, true)

	// Just inside the window.
	f.coord.now = func() time.Time { return booking.RescheduleDeadline.Add(-time.Second) }
	if _, err := f.coord.Cancel(context.Background(), booking.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	client, _ := f.store.GetClient(context.Background(), "c1")
	if client.Cancellations != 1 {
		t.Fatalf("cancellations = %d, want 1", client.Cancellations)
	}
	if len(f.holds.released) != 1 {
		t.Fatalf("expected hold release, got %d", len(f.holds.released))
	}
	// Cancellations never trigger a tier change.
	if client.Reliability != model.ReliabilityNew {
		t.Fatalf("reliability moved on cancel: %s", client.Reliability)
	}
}

func TestCancel_PastDeadlineRejected(t *testing.T) {
	f := newFixture(t)
	booking := f.create(t, false)

	f.coord.now = func() time.Time { return booking.RescheduleDeadline.Add(time.Second) }
	_, err := f.coord.Cancel(context.Background(), booking.ID)
	if !errors.Is(err, ErrDeadlineExceeded) {
		t.Fatalf("expected ErrDeadlineExceeded, got %v", err)
	}

	stored, _ := f.store.GetBooking(context.Background(), booking.ID)
	if stored.Status != model.StatusPending {
		t.Fatalf("booking mutated on rejected cancel: %s", stored.Status)
	}
	client, _ := f.store.GetClient(context.Background(), "c1")
	if client.Cancellations != 0 {
		t.Fatalf("cancellations moved on rejected cancel: %d", client.Cancellations)
	}
}

func TestCancel_TerminalRejected(t *testing.T) {
	f := newFixture(t)
	booking := f.create(t, false)
	if _, err := f.coord.Complete(context.Background(), booking.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	_, err := f.coord.Cancel(context.Background(), booking.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestPaymentFailureLeavesHoldForReconciler(t *testing.T) {
	f := newFixture(t)
	booking := f.create(t, true)
	f.holds.captErr = errors.New("stripe unavailable")

	// The transition still succeeds: local state committed, hold unresolved.
	if _, err := f.coord.NoShow(context.Background(), booking.ID); err != nil {
		t.Fatalf("no-show should not fail on capture error: %v", err)
	}

	stored, _ := f.store.GetBooking(context.Background(), booking.ID)
	if stored.Status != model.StatusNoShow {
		t.Fatalf("status = %s, want no-show", stored.Status)
	}
	if stored.HoldResolved {
		t.Fatal("hold must stay unresolved after failed capture")
	}
	unresolved, _ := f.store.ListUnresolvedHolds(context.Background(), 10)
	if len(unresolved) != 1 {
		t.Fatalf("reconciler should see one unresolved hold, got %d", len(unresolved))
	}
}

func TestLifecycleEventsEmitted(t *testing.T) {
	f := newFixture(t)
	booking := f.create(t, false)
	if _, err := f.coord.NoShow(context.Background(), booking.ID); err != nil {
		t.Fatalf("no-show: %v", err)
	}
	types := f.sink.types()
	if len(types) != 2 || types[0] != EventBookingCreated || types[1] != EventBookingNoShow {
		t.Fatalf("unexpected event stream: %v", types)
	}
}
