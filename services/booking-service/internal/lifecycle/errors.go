package lifecycle

import "errors"

var (
	// ErrNotFound aborts an operation before any mutation when a referenced
	// master, client, service, or booking does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition rejects a status change that is not allowed from
	// the booking's current state, including repeats against an
	// already-terminal booking.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDeadlineExceeded rejects a cancellation past the reschedule
	// deadline; late cancellations must go through the no-show path.
	ErrDeadlineExceeded = errors.New("reschedule deadline passed")

	// ErrNotEligible rejects a booking against an inactive service or a
	// new-clients-only service for a client with prior history.
	ErrNotEligible = errors.New("client not eligible for service")

	// ErrPaymentAuthorizationFailed aborts booking creation when the
	// external hold is denied; no booking is persisted.
	ErrPaymentAuthorizationFailed = errors.New("payment authorization failed")

	// ErrPaymentOperationFailed marks a capture or release failure on the
	// synchronous path.
	ErrPaymentOperationFailed = errors.New("payment operation failed")
)
