package storage

import (
	"context"

	"github.com/aurasync/timehold/services/booking-service/internal/lifecycle"
	"github.com/aurasync/timehold/services/booking-service/internal/model"
)

const clientColumns = `id::text, email, name, COALESCE(phone, ''),
	total_bookings, completed_bookings, no_shows, cancellations,
	reliability, wallet_balance, COALESCE(stripe_customer_id, ''), created_at`

func (s *Store) InsertClient(ctx context.Context, c *model.ClientProfile) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO client_profiles (id, email, name, phone, reliability, stripe_customer_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, c.ID, c.Email, c.Name, c.Phone, c.Reliability, c.StripeCustomerID).
		Scan(&c.CreatedAt)
}

func (s *Store) GetClient(ctx context.Context, id string) (model.ClientProfile, error) {
	var c model.ClientProfile
	err := s.pool.QueryRow(ctx, `
		SELECT `+clientColumns+`
		FROM client_profiles
		WHERE id = $1
	`, id).Scan(
		&c.ID, &c.Email, &c.Name, &c.Phone,
		&c.TotalBookings, &c.CompletedBookings, &c.NoShows, &c.Cancellations,
		&c.Reliability, &c.WalletBalance, &c.StripeCustomerID, &c.CreatedAt,
	)
	if err != nil {
		return model.ClientProfile{}, notFound(err)
	}
	return c, nil
}

func (s *Store) GetClientByEmail(ctx context.Context, email string) (model.ClientProfile, error) {
	var c model.ClientProfile
	err := s.pool.QueryRow(ctx, `
		SELECT `+clientColumns+`
		FROM client_profiles
		WHERE email = $1
	`, email).Scan(
		&c.ID, &c.Email, &c.Name, &c.Phone,
		&c.TotalBookings, &c.CompletedBookings, &c.NoShows, &c.Cancellations,
		&c.Reliability, &c.WalletBalance, &c.StripeCustomerID, &c.CreatedAt,
	)
	if err != nil {
		return model.ClientProfile{}, notFound(err)
	}
	return c, nil
}

// AdjustClientCounters applies all increments in one UPDATE and returns the
// fresh row, so two concurrent transitions can never lose an increment.
func (s *Store) AdjustClientCounters(ctx context.Context, clientID string, delta model.CounterDelta) (model.ClientProfile, error) {
	var c model.ClientProfile
	err := s.pool.QueryRow(ctx, `
		UPDATE client_profiles
		SET total_bookings = total_bookings + $2,
			completed_bookings = completed_bookings + $3,
			no_shows = no_shows + $4,
			cancellations = cancellations + $5,
			wallet_balance = ROUND((wallet_balance + $6)::numeric, 2)
		WHERE id = $1
		RETURNING `+clientColumns+`
	`, clientID, delta.TotalBookings, delta.CompletedBookings, delta.NoShows, delta.Cancellations, delta.WalletCredit).
		Scan(
			&c.ID, &c.Email, &c.Name, &c.Phone,
			&c.TotalBookings, &c.CompletedBookings, &c.NoShows, &c.Cancellations,
			&c.Reliability, &c.WalletBalance, &c.StripeCustomerID, &c.CreatedAt,
		)
	if err != nil {
		return model.ClientProfile{}, notFound(err)
	}
	return c, nil
}

func (s *Store) SetClientReliability(ctx context.Context, clientID string, tier model.Reliability) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE client_profiles SET reliability = $2 WHERE id = $1
	`, clientID, tier)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return lifecycle.ErrNotFound
	}
	return nil
}
