package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aurasync/timehold/libs/db"
)

// Recorder emits notification.sent.v1 / notification.failed.v1 events for
// downstream consumers (auditing, retry tooling).
type Recorder struct {
	pool *db.Pool
	repo *Repository
}

func NewRecorder(pool *db.Pool, repo *Repository) *Recorder {
	return &Recorder{pool: pool, repo: repo}
}

func (r *Recorder) Sent(ctx context.Context, bookingID, channel, providerID string) error {
	if providerID == "" {
		providerID = "unknown"
	}
	return r.write(ctx, bookingID, "notification.sent.v1", map[string]any{
		"booking_id":  bookingID,
		"channel":     channel,
		"provider_id": providerID,
		"sent_at":     time.Now().UTC().Format(time.RFC3339),
	})
}

func (r *Recorder) Failed(ctx context.Context, bookingID, channel, reason string) error {
	return r.write(ctx, bookingID, "notification.failed.v1", map[string]any{
		"booking_id":   bookingID,
		"channel":      channel,
		"error_reason": reason,
		"failed_at":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (r *Recorder) write(ctx context.Context, bookingID, eventType string, payload map[string]any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := r.repo.Insert(ctx, tx, Event{
		AggregateType: "notification",
		AggregateID:   bookingID,
		EventType:     eventType,
		Payload:       raw,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
