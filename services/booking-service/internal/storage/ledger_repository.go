package storage

import (
	"context"

	"github.com/aurasync/timehold/services/booking-service/internal/model"
)

// AppendLedger inserts all rows in one transaction. Ledger rows are
// append-only; there is no update or delete path.
func (s *Store) AppendLedger(ctx context.Context, txs ...model.LedgerTransaction) error {
	if len(txs) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i := range txs {
		t := &txs[i]
		err := tx.QueryRow(ctx, `
			INSERT INTO ledger_transactions (id, booking_id, master_id, client_id, kind, amount, description)
			VALUES ($1, $2, NULLIF($3, '')::uuid, NULLIF($4, '')::uuid, $5, $6, $7)
			RETURNING created_at
		`, t.ID, t.BookingID, t.MasterID, t.ClientID, t.Kind, t.Amount, t.Description).
			Scan(&t.CreatedAt)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) ListLedgerByBooking(ctx context.Context, bookingID string) ([]model.LedgerTransaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, booking_id::text, COALESCE(master_id::text, ''), COALESCE(client_id::text, ''),
			kind, amount, COALESCE(description, ''), created_at
		FROM ledger_transactions
		WHERE booking_id = $1
		ORDER BY created_at ASC
	`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []model.LedgerTransaction
	for rows.Next() {
		var t model.LedgerTransaction
		if err := rows.Scan(&t.ID, &t.BookingID, &t.MasterID, &t.ClientID, &t.Kind, &t.Amount, &t.Description, &t.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// MasterAnalytics aggregates a master's booking outcomes and ledger totals.
// Earnings figures are derived by summing ledger rows, never read from a
// mutable balance field.
type MasterAnalytics struct {
	TotalBookings      int
	Completed          int
	NoShows            int
	Cancelled          int
	Upcoming           int
	NoShowCompensation float64
	HeldAmountPending  float64
}

func (s *Store) GetMasterAnalytics(ctx context.Context, masterID string) (MasterAnalytics, error) {
	var a MasterAnalytics
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'no-show'),
			COUNT(*) FILTER (WHERE status = 'cancelled'),
			COUNT(*) FILTER (WHERE status IN ('pending', 'confirmed')),
			COALESCE(SUM(hold_amount) FILTER (WHERE status IN ('pending', 'confirmed') AND payment_authorized), 0)
		FROM bookings
		WHERE master_id = $1
	`, masterID).Scan(&a.TotalBookings, &a.Completed, &a.NoShows, &a.Cancelled, &a.Upcoming, &a.HeldAmountPending)
	if err != nil {
		return MasterAnalytics{}, err
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_transactions
		WHERE master_id = $1 AND kind = 'payout'
	`, masterID).Scan(&a.NoShowCompensation)
	if err != nil {
		return MasterAnalytics{}, err
	}
	return a, nil
}
