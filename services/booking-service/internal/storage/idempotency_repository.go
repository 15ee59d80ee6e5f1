package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRecord is a finished (or in-flight) booking-create response
// keyed by client and Idempotency-Key header.
type IdempotencyRecord struct {
	ClientID        string
	IdempotencyKey  string
	BookingID       string
	StatusCode      int
	ResponsePayload []byte
}

// LockIdempotencyKey claims the key under a row lock. It returns (record,
// true) when the key already exists, so a retry can replay the stored
// response, and (record, false) after inserting a fresh claim. The lock is
// held until the surrounding transaction commits, which serializes concurrent
// retries of the same key.
func (s *Store) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, clientID, key string) (IdempotencyRecord, bool, error) {
	rec, err := s.selectIdempotencyForUpdate(ctx, tx, clientID, key)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (client_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (client_id, idempotency_key) DO NOTHING
	`, clientID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = s.selectIdempotencyForUpdate(ctx, tx, clientID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, false, nil
}

func (s *Store) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, clientID, key, bookingID string, statusCode int, response []byte) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET booking_id = NULLIF($3, '')::uuid,
			status_code = $4,
			response_payload = $5,
			updated_at = now()
		WHERE client_id = $1 AND idempotency_key = $2
	`, clientID, key, bookingID, statusCode, response)
	return err
}

func (s *Store) selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, clientID, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := tx.QueryRow(ctx, `
		SELECT client_id::text,
			idempotency_key,
			COALESCE(booking_id::text, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM booking_idempotency_keys
		WHERE client_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, clientID, key).Scan(
		&rec.ClientID,
		&rec.IdempotencyKey,
		&rec.BookingID,
		&rec.StatusCode,
		&responseText,
	)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.ResponsePayload = []byte(responseText)
	}
	return rec, nil
}
