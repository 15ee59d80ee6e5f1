package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aurasync/timehold/services/booking-service/internal/lifecycle"
	"github.com/aurasync/timehold/services/booking-service/internal/model"
)

const bookingColumns = `id::text, master_id::text, client_id::text, service_id::text,
	booking_date, duration_minutes, service_price, hold_amount, risk_score, status,
	COALESCE(payment_intent_id, ''), payment_authorized, hold_resolved,
	reschedule_deadline, COALESCE(notes, ''), created_at, updated_at`

func (s *Store) InsertBooking(ctx context.Context, b *model.Booking) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO bookings
			(id, master_id, client_id, service_id, booking_date, duration_minutes,
			service_price, hold_amount, risk_score, status,
			payment_intent_id, payment_authorized, hold_resolved, reschedule_deadline, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $11 = '', $13, $14)
		RETURNING hold_resolved, created_at, updated_at
	`, b.ID, b.MasterID, b.ClientID, b.ServiceID, b.BookingDate, b.DurationMinutes,
		b.ServicePrice, b.HoldAmount, b.RiskScore, b.Status,
		b.PaymentIntentID, b.PaymentAuthorized, b.RescheduleDeadline, b.Notes).
		Scan(&b.HoldResolved, &b.CreatedAt, &b.UpdatedAt)
}

func (s *Store) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	var b model.Booking
	err := s.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id).Scan(scanBookingFields(&b)...)
	if err != nil {
		return model.Booking{}, notFound(err)
	}
	return b, nil
}

// TransitionBooking is the compare-and-set at the heart of the state machine.
// The status check runs inside the UPDATE itself, so two concurrent terminal
// transitions serialize on the row and exactly one matches. On a terminal
// transition the hold is marked unresolved whenever a payment intent is
// outstanding; the settlement step (or the reconciler) resolves it.
func (s *Store) TransitionBooking(ctx context.Context, id string, from []model.BookingStatus, to model.BookingStatus) error {
	fromStrs := make([]string, len(from))
	for i, f := range from {
		fromStrs[i] = string(f)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE bookings
		SET status = $2,
			hold_resolved = CASE WHEN $3 THEN COALESCE(payment_intent_id, '') = '' ELSE hold_resolved END,
			updated_at = now()
		WHERE id = $1 AND status = ANY($4)
	`, id, to, to.Terminal(), fromStrs)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var current string
	err = s.pool.QueryRow(ctx, `SELECT status FROM bookings WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return lifecycle.ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("status %s: %w", current, lifecycle.ErrInvalidTransition)
}

func (s *Store) MarkHoldResolved(ctx context.Context, bookingID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE bookings SET hold_resolved = TRUE, updated_at = now() WHERE id = $1
	`, bookingID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return lifecycle.ErrNotFound
	}
	return nil
}

func (s *Store) ListUnresolvedHolds(ctx context.Context, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE hold_resolved = FALSE
			AND status IN ('completed', 'no-show', 'cancelled')
		ORDER BY updated_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (s *Store) ListBookingsByMaster(ctx context.Context, masterID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE master_id = $1
		ORDER BY booking_date DESC
		LIMIT $2
	`, masterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (s *Store) ListBookingsByClient(ctx context.Context, clientID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE client_id = $1
		ORDER BY booking_date DESC
		LIMIT $2
	`, clientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

func scanBookingFields(b *model.Booking) []any {
	return []any{
		&b.ID, &b.MasterID, &b.ClientID, &b.ServiceID,
		&b.BookingDate, &b.DurationMinutes, &b.ServicePrice, &b.HoldAmount, &b.RiskScore, &b.Status,
		&b.PaymentIntentID, &b.PaymentAuthorized, &b.HoldResolved,
		&b.RescheduleDeadline, &b.Notes, &b.CreatedAt, &b.UpdatedAt,
	}
}

func scanBookings(rows pgx.Rows) ([]model.Booking, error) {
	var bookings []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(scanBookingFields(&b)...); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
