package storage

import (
	"context"

	"github.com/aurasync/timehold/services/booking-service/internal/model"
)

const masterColumns = `id::text, email, name, COALESCE(phone, ''), COALESCE(specialty, ''),
	COALESCE(bio, ''), COALESCE(location, ''), COALESCE(booking_slug, ''),
	COALESCE(stripe_account, ''), COALESCE(telegram_chat_id, ''), created_at, updated_at`

func (s *Store) InsertMaster(ctx context.Context, m *model.Master) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO masters (id, email, name, phone, specialty, bio, location, booking_slug, stripe_account, telegram_chat_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`, m.ID, m.Email, m.Name, m.Phone, m.Specialty, m.Bio, m.Location, m.BookingSlug, m.StripeAccount, m.TelegramChatID).
		Scan(&m.CreatedAt, &m.UpdatedAt)
}

func (s *Store) GetMaster(ctx context.Context, id string) (model.Master, error) {
	var m model.Master
	err := s.pool.QueryRow(ctx, `
		SELECT `+masterColumns+`
		FROM masters
		WHERE id = $1
	`, id).Scan(
		&m.ID, &m.Email, &m.Name, &m.Phone, &m.Specialty,
		&m.Bio, &m.Location, &m.BookingSlug,
		&m.StripeAccount, &m.TelegramChatID, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return model.Master{}, notFound(err)
	}
	return m, nil
}

func (s *Store) GetMasterBySlug(ctx context.Context, slug string) (model.Master, error) {
	var m model.Master
	err := s.pool.QueryRow(ctx, `
		SELECT `+masterColumns+`
		FROM masters
		WHERE booking_slug = $1
	`, slug).Scan(
		&m.ID, &m.Email, &m.Name, &m.Phone, &m.Specialty,
		&m.Bio, &m.Location, &m.BookingSlug,
		&m.StripeAccount, &m.TelegramChatID, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return model.Master{}, notFound(err)
	}
	return m, nil
}

func (s *Store) ListMasters(ctx context.Context, limit int) ([]model.Master, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+masterColumns+`
		FROM masters
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var masters []model.Master
	for rows.Next() {
		var m model.Master
		if err := rows.Scan(
			&m.ID, &m.Email, &m.Name, &m.Phone, &m.Specialty,
			&m.Bio, &m.Location, &m.BookingSlug,
			&m.StripeAccount, &m.TelegramChatID, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		masters = append(masters, m)
	}
	return masters, rows.Err()
}
