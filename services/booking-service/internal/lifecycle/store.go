package lifecycle

import (
	"context"

	"github.com/aurasync/timehold/services/booking-service/internal/model"
)

// Store is the persistence contract the coordinator drives. No cross-entity
// transactions are assumed: each method is individually atomic, counter
// adjustments are store-side increments (never read-modify-write in
// application memory), and TransitionBooking is a compare-and-set so that
// concurrent transitions for the same booking serialize; the loser observes
// ErrInvalidTransition.
type Store interface {
	GetMaster(ctx context.Context, id string) (model.Master, error)
	GetService(ctx context.Context, id string) (model.ServiceOffering, error)
	GetClient(ctx context.Context, id string) (model.ClientProfile, error)
	GetBooking(ctx context.Context, id string) (model.Booking, error)

	InsertBooking(ctx context.Context, b *model.Booking) error

	// TransitionBooking moves the booking to `to` only if its current status
	// is one of `from`. It returns ErrNotFound for a missing booking and
	// ErrInvalidTransition when the status check fails. A booking with an
	// outstanding payment hold comes out of a terminal transition with
	// HoldResolved=false until the hold's capture/release is confirmed.
	TransitionBooking(ctx context.Context, id string, from []model.BookingStatus, to model.BookingStatus) error

	// AdjustClientCounters applies the delta atomically and returns the
	// updated profile, so reliability can be re-derived from the exact
	// post-increment counters.
	AdjustClientCounters(ctx context.Context, clientID string, delta model.CounterDelta) (model.ClientProfile, error)
	SetClientReliability(ctx context.Context, clientID string, tier model.Reliability) error

	// AppendLedger appends all given transactions or none of them.
	AppendLedger(ctx context.Context, txs ...model.LedgerTransaction) error

	MarkHoldResolved(ctx context.Context, bookingID string) error
	// ListUnresolvedHolds returns terminal bookings whose payment hold still
	// awaits capture or release, oldest first.
	ListUnresolvedHolds(ctx context.Context, limit int) ([]model.Booking, error)
}

// HoldClient is the payment collaborator: an authorize/capture/release
// facade over the processor. All three operations are idempotent, so the
// reconciler may safely retry them with the same hold reference.
type HoldClient interface {
	AuthorizeHold(ctx context.Context, amount float64, payerRef string, metadata map[string]string) (string, error)
	CaptureHold(ctx context.Context, holdRef string, amount float64) error
	ReleaseHold(ctx context.Context, holdRef string) error
}

// Event is a domain event recorded for the notification pipeline.
type Event struct {
	Type     string
	Booking  model.Booking
	MasterID string
	ClientID string
	Payload  map[string]any
}

// EventSink records domain events best-effort; failures are logged by the
// coordinator and never fail a booking transition.
type EventSink interface {
	Record(ctx context.Context, evt Event) error
}
