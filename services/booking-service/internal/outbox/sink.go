package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aurasync/timehold/libs/db"
	"github.com/aurasync/timehold/services/booking-service/internal/lifecycle"
)

// Sink writes lifecycle events into the outbox table, where the publisher
// picks them up for Kafka. Implements lifecycle.EventSink.
type Sink struct {
	pool *db.Pool
	repo *Repository
}

func NewSink(pool *db.Pool, repo *Repository) *Sink {
	return &Sink{pool: pool, repo: repo}
}

// bookingEventPayload is the wire shape consumed by the notification
// service. Hold and split amounts ride in the extra fields of the
// originating event.
type bookingEventPayload struct {
	BookingID       string         `json:"booking_id"`
	MasterID        string         `json:"master_id"`
	ClientID        string         `json:"client_id"`
	ServiceID       string         `json:"service_id"`
	BookingDate     time.Time      `json:"booking_date"`
	DurationMinutes int            `json:"duration_minutes"`
	ServicePrice    float64        `json:"service_price"`
	HoldAmount      float64        `json:"hold_amount"`
	Status          string         `json:"status"`
	Extra           map[string]any `json:"extra,omitempty"`
}

func (s *Sink) Record(ctx context.Context, evt lifecycle.Event) error {
	payload, err := json.Marshal(bookingEventPayload{
		BookingID:       evt.Booking.ID,
		MasterID:        evt.MasterID,
		ClientID:        evt.ClientID,
		ServiceID:       evt.Booking.ServiceID,
		BookingDate:     evt.Booking.BookingDate,
		DurationMinutes: evt.Booking.DurationMinutes,
		ServicePrice:    evt.Booking.ServicePrice,
		HoldAmount:      evt.Booking.HoldAmount,
		Status:          string(evt.Booking.Status),
		Extra:           evt.Payload,
	})
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = s.repo.Insert(ctx, tx, Event{
		AggregateType: "booking",
		AggregateID:   evt.Booking.ID,
		EventType:     evt.Type,
		Payload:       payload,
	})
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}
