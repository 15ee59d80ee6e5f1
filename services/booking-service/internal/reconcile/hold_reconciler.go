package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aurasync/timehold/libs/db"
	"github.com/aurasync/timehold/services/booking-service/internal/lifecycle"
	"github.com/aurasync/timehold/services/booking-service/internal/model"
)

// HoldReconciler sweeps terminal bookings whose payment hold is still open
// and retries the capture or release that failed on the synchronous path.
// No-show holds get captured; completed and cancelled holds get released.
type HoldReconciler struct {
	pool        *db.Pool
	store       lifecycle.Store
	holds       lifecycle.HoldClient
	logger      *slog.Logger
	batchSize   int
	advisoryKey int64
}

type Config struct {
	Interval        time.Duration
	BatchSize       int
	AdvisoryLockKey int64
}

func NewHoldReconciler(pool *db.Pool, store lifecycle.Store, holds lifecycle.HoldClient, logger *slog.Logger, cfg Config) *HoldReconciler {
	bs := cfg.BatchSize
	if bs <= 0 {
		bs = 50
	}
	lockKey := cfg.AdvisoryLockKey
	if lockKey == 0 {
		// Override via env when running multiple booking-service instances.
		lockKey = 7180042
	}
	return &HoldReconciler{
		pool:        pool,
		store:       store,
		holds:       holds,
		logger:      logger,
		batchSize:   bs,
		advisoryKey: lockKey,
	}
}

func (r *HoldReconciler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	// Best-effort leader election for multi-instance deployments.
	// Only the instance holding the advisory lock will reconcile.
	for {
		if ctx.Err() != nil {
			return
		}
		var locked bool
		if err := r.pool.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, r.advisoryKey).Scan(&locked); err != nil {
			r.logger.Error("hold reconcile: failed to acquire advisory lock", "err", err)
			time.Sleep(5 * time.Second)
			continue
		}
		if !locked {
			r.logger.Info("hold reconcile: advisory lock held by another instance", "lock_key", r.advisoryKey)
			time.Sleep(30 * time.Second)
			continue
		}
		r.logger.Info("hold reconcile: advisory lock acquired", "lock_key", r.advisoryKey)
		defer func() {
			_, _ = r.pool.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, r.advisoryKey)
		}()
		break
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run immediately on startup to self-heal faster after downtime.
	r.ReconcileOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.ReconcileOnce(ctx)
		}
	}
}

// ReconcileOnce settles one batch of unresolved holds. Exported so tests can
// drive it without the leader-election loop.
func (r *HoldReconciler) ReconcileOnce(ctx context.Context) {
	bookings, err := r.store.ListUnresolvedHolds(ctx, r.batchSize)
	if err != nil {
		r.logger.Error("hold reconcile: failed to list unresolved holds", "err", err)
		return
	}

	for _, b := range bookings {
		if ctx.Err() != nil {
			return
		}
		if b.PaymentIntentID == "" {
			// Nothing outstanding against the payment provider; just close it.
			if err := r.store.MarkHoldResolved(ctx, b.ID); err != nil {
				r.logger.Error("hold reconcile: mark resolved failed", "err", err, "booking_id", b.ID)
			}
			continue
		}
		if err := r.settle(ctx, b); err != nil {
			r.logger.Warn("hold reconcile: settle failed", "err", err, "booking_id", b.ID, "status", b.Status)
		}
	}
}

func (r *HoldReconciler) settle(ctx context.Context, b model.Booking) error {
	var kind model.TransactionKind
	var desc string

	switch b.Status {
	case model.StatusNoShow:
		if err := r.holds.CaptureHold(ctx, b.PaymentIntentID, b.HoldAmount); err != nil {
			return fmt.Errorf("capture %s: %w", b.PaymentIntentID, err)
		}
		kind = model.TxHoldCapture
		desc = "Hold captured on no-show"
	case model.StatusCompleted, model.StatusCancelled:
		if err := r.holds.ReleaseHold(ctx, b.PaymentIntentID); err != nil {
			return fmt.Errorf("release %s: %w", b.PaymentIntentID, err)
		}
		kind = model.TxHoldRelease
		desc = "Hold released"
	default:
		return fmt.Errorf("unexpected status %s for unresolved hold", b.Status)
	}

	if err := r.store.MarkHoldResolved(ctx, b.ID); err != nil {
		return fmt.Errorf("mark resolved: %w", err)
	}
	err := r.store.AppendLedger(ctx, model.LedgerTransaction{
		ID:          uuid.NewString(),
		BookingID:   b.ID,
		MasterID:    b.MasterID,
		ClientID:    b.ClientID,
		Kind:        kind,
		Amount:      b.HoldAmount,
		Description: fmt.Sprintf("%s (%s, reconciled)", desc, b.PaymentIntentID),
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("append settlement ledger row: %w", err)
	}
	r.logger.Info("hold reconciled", "booking_id", b.ID, "status", b.Status, "kind", kind)
	return nil
}
