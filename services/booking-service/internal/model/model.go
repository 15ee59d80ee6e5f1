package model

import "time"

type BookingStatus string

const (
	StatusPending     BookingStatus = "pending"
	StatusConfirmed   BookingStatus = "confirmed"
	StatusCompleted   BookingStatus = "completed"
	StatusNoShow      BookingStatus = "no-show"
	StatusCancelled   BookingStatus = "cancelled"
	StatusRescheduled BookingStatus = "rescheduled"
)

// Terminal reports whether a booking in this status can no longer transition.
func (s BookingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusNoShow || s == StatusCancelled
}

type Reliability string

const (
	ReliabilityNew             Reliability = "new"
	ReliabilityReliable        Reliability = "reliable"
	ReliabilityNeedsProtection Reliability = "needs-protection"
)

type TransactionKind string

const (
	TxHoldAuth     TransactionKind = "hold_auth"
	TxHoldCapture  TransactionKind = "hold_capture"
	TxHoldRelease  TransactionKind = "hold_release"
	TxWalletCredit TransactionKind = "wallet_credit"
	TxPayout       TransactionKind = "payout"
)

// Master is a service provider (the payee of no-show compensation).
type Master struct {
	ID             string
	Email          string
	Name           string
	Phone          string
	Specialty      string
	Bio            string
	Location       string
	BookingSlug    string
	StripeAccount  string
	TelegramChatID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type ServiceOffering struct {
	ID              string
	MasterID        string
	Name            string
	Description     string
	DurationMinutes int
	Price           float64
	BaseHold        float64
	Active          bool
	NewClientsOnly  bool
	CreatedAt       time.Time
}

// ClientProfile carries the booking-history counters the deposit engine
// reads. Counters are mutated only through atomic store increments; the
// invariant completed+no_shows+cancellations <= total_bookings holds because
// a booking increments total once at creation and exactly one of the other
// three at its terminal transition.
type ClientProfile struct {
	ID                string
	Email             string
	Name              string
	Phone             string
	TotalBookings     int
	CompletedBookings int
	NoShows           int
	Cancellations     int
	Reliability       Reliability
	WalletBalance     float64
	StripeCustomerID  string
	CreatedAt         time.Time
}

// Booking snapshots price and duration from the service at creation time;
// later service edits never alter past bookings.
type Booking struct {
	ID              string
	MasterID        string
	ClientID        string
	ServiceID       string
	BookingDate     time.Time
	DurationMinutes int

	ServicePrice float64
	HoldAmount   float64
	RiskScore    int

	Status BookingStatus

	PaymentIntentID   string
	PaymentAuthorized bool
	// HoldResolved is false while an authorized payment hold still awaits its
	// terminal capture or release against the payment provider.
	HoldResolved bool

	RescheduleDeadline time.Time
	Notes              string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// LedgerTransaction is an immutable financial event record. Displayed wallet
// balances and lifetime earnings are derived by summing these rows, never
// stored as mutable fields on the master.
type LedgerTransaction struct {
	ID          string
	BookingID   string
	MasterID    string
	ClientID    string
	Kind        TransactionKind
	Amount      float64
	Description string
	CreatedAt   time.Time
}

// CounterDelta is the set of atomic increments applied to a ClientProfile in
// one lifecycle transition.
type CounterDelta struct {
	TotalBookings     int
	CompletedBookings int
	NoShows           int
	Cancellations     int
	WalletCredit      float64
}
