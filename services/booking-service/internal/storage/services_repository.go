package storage

import (
	"context"

	"github.com/aurasync/timehold/services/booking-service/internal/lifecycle"
	"github.com/aurasync/timehold/services/booking-service/internal/model"
)

const serviceColumns = `id::text, master_id::text, name, COALESCE(description, ''),
	duration_minutes, price, base_hold, active, new_clients_only, created_at`

func (s *Store) InsertService(ctx context.Context, svc *model.ServiceOffering) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO service_offerings
			(id, master_id, name, description, duration_minutes, price, base_hold, active, new_clients_only)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, svc.ID, svc.MasterID, svc.Name, svc.Description, svc.DurationMinutes,
		svc.Price, svc.BaseHold, svc.Active, svc.NewClientsOnly).
		Scan(&svc.CreatedAt)
}

func (s *Store) GetService(ctx context.Context, id string) (model.ServiceOffering, error) {
	var svc model.ServiceOffering
	err := s.pool.QueryRow(ctx, `
		SELECT `+serviceColumns+`
		FROM service_offerings
		WHERE id = $1
	`, id).Scan(
		&svc.ID, &svc.MasterID, &svc.Name, &svc.Description,
		&svc.DurationMinutes, &svc.Price, &svc.BaseHold, &svc.Active, &svc.NewClientsOnly, &svc.CreatedAt,
	)
	if err != nil {
		return model.ServiceOffering{}, notFound(err)
	}
	return svc, nil
}

func (s *Store) ListServicesByMaster(ctx context.Context, masterID string, activeOnly bool) ([]model.ServiceOffering, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+serviceColumns+`
		FROM service_offerings
		WHERE master_id = $1
			AND ($2 = FALSE OR active)
		ORDER BY created_at ASC
	`, masterID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []model.ServiceOffering
	for rows.Next() {
		var svc model.ServiceOffering
		if err := rows.Scan(
			&svc.ID, &svc.MasterID, &svc.Name, &svc.Description,
			&svc.DurationMinutes, &svc.Price, &svc.BaseHold, &svc.Active, &svc.NewClientsOnly, &svc.CreatedAt,
		); err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

// SetServiceActive toggles a service without touching existing bookings;
// their pricing fields were snapshotted at creation.
func (s *Store) SetServiceActive(ctx context.Context, id string, active bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE service_offerings SET active = $2 WHERE id = $1
	`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return lifecycle.ErrNotFound
	}
	return nil
}
