package storage

import (
	"context"
	"encoding/json"

	"github.com/aurasync/timehold/libs/db"
)

type Notification struct {
	BookingID string
	MasterID  string
	ClientID  string
	Channel   string
	Recipient string
	Payload   map[string]any
	Status    string
}

// Contact is the delivery target resolved from the shared profile tables.
type Contact struct {
	Name           string
	Email          string
	TelegramChatID string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO notifications (booking_id, master_id, client_id, channel, recipient, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, n.BookingID, n.MasterID, n.ClientID, n.Channel, n.Recipient, payload, n.Status)
	return err
}

func (r *Repository) GetMasterContact(ctx context.Context, masterID string) (Contact, error) {
	var c Contact
	err := r.pool.QueryRow(ctx, `
		SELECT name, email, COALESCE(telegram_chat_id, '')
		FROM masters
		WHERE id = $1
	`, masterID).Scan(&c.Name, &c.Email, &c.TelegramChatID)
	if err != nil {
		return Contact{}, err
	}
	return c, nil
}

func (r *Repository) GetClientContact(ctx context.Context, clientID string) (Contact, error) {
	var c Contact
	err := r.pool.QueryRow(ctx, `
		SELECT name, email
		FROM client_profiles
		WHERE id = $1
	`, clientID).Scan(&c.Name, &c.Email)
	if err != nil {
		return Contact{}, err
	}
	return c, nil
}
