package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aurasync/timehold/services/booking-service/internal/lifecycle"
	"github.com/aurasync/timehold/services/booking-service/internal/model"
	"github.com/aurasync/timehold/services/booking-service/internal/storage"
)

// Lifecycle is the coordinator surface the booking endpoints drive.
type Lifecycle interface {
	Create(ctx context.Context, in lifecycle.CreateInput) (model.Booking, error)
	Complete(ctx context.Context, bookingID string) (model.Booking, error)
	NoShow(ctx context.Context, bookingID string) (lifecycle.NoShowResult, error)
	Cancel(ctx context.Context, bookingID string) (model.Booking, error)
}

type BookingQueries interface {
	GetBooking(ctx context.Context, id string) (model.Booking, error)
	ListBookingsByMaster(ctx context.Context, masterID string, limit int) ([]model.Booking, error)
	ListBookingsByClient(ctx context.Context, clientID string, limit int) ([]model.Booking, error)
	ListLedgerByBooking(ctx context.Context, bookingID string) ([]model.LedgerTransaction, error)
}

// IdempotencyStore guards booking creation against client retries. Nil
// disables the guard (tests, deployments without the keys table).
type IdempotencyStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	LockIdempotencyKey(ctx context.Context, tx pgx.Tx, clientID, key string) (storage.IdempotencyRecord, bool, error)
	FinalizeIdempotency(ctx context.Context, tx pgx.Tx, clientID, key, bookingID string, statusCode int, response []byte) error
}

type BookingHandler struct {
	coord  Lifecycle
	store  BookingQueries
	idem   IdempotencyStore
	logger *slog.Logger
}

func NewBookingHandler(coord Lifecycle, store BookingQueries, idem IdempotencyStore, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{coord: coord, store: store, idem: idem, logger: logger}
}

type createBookingRequest struct {
	MasterID    string `json:"master_id"`
	ClientID    string `json:"client_id"`
	ServiceID   string `json:"service_id"`
	BookingDate string `json:"booking_date"`
	Notes       string `json:"notes"`
	WithPayment bool   `json:"with_payment"`
}

type bookingResponse struct {
	ID                 string  `json:"id"`
	MasterID           string  `json:"master_id"`
	ClientID           string  `json:"client_id"`
	ServiceID          string  `json:"service_id"`
	BookingDate        string  `json:"booking_date"`
	DurationMinutes    int     `json:"duration_minutes"`
	ServicePrice       float64 `json:"service_price"`
	HoldAmount         float64 `json:"hold_amount"`
	RiskScore          int     `json:"risk_score"`
	Status             string  `json:"status"`
	PaymentAuthorized  bool    `json:"payment_authorized"`
	RescheduleDeadline string  `json:"reschedule_deadline"`
	Notes              string  `json:"notes,omitempty"`
	CreatedAt          string  `json:"created_at"`
}

type noShowResponse struct {
	Booking            bookingResponse `json:"booking"`
	MasterCompensation float64         `json:"master_compensation"`
	ClientWalletCredit float64         `json:"client_wallet_credit"`
}

type ledgerItem struct {
	ID          string  `json:"id"`
	BookingID   string  `json:"booking_id"`
	MasterID    string  `json:"master_id,omitempty"`
	ClientID    string  `json:"client_id,omitempty"`
	Kind        string  `json:"kind"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

func bookingToResponse(b model.Booking) bookingResponse {
	return bookingResponse{
		ID:                 b.ID,
		MasterID:           b.MasterID,
		ClientID:           b.ClientID,
		ServiceID:          b.ServiceID,
		BookingDate:        b.BookingDate.UTC().Format(time.RFC3339),
		DurationMinutes:    b.DurationMinutes,
		ServicePrice:       b.ServicePrice,
		HoldAmount:         b.HoldAmount,
		RiskScore:          b.RiskScore,
		Status:             string(b.Status),
		PaymentAuthorized:  b.PaymentAuthorized,
		RescheduleDeadline: b.RescheduleDeadline.UTC().Format(time.RFC3339),
		Notes:              b.Notes,
		CreatedAt:          b.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.MasterID = strings.TrimSpace(req.MasterID)
	req.ClientID = strings.TrimSpace(req.ClientID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	if req.MasterID == "" || req.ClientID == "" || req.ServiceID == "" {
		http.Error(w, "master_id, client_id and service_id required", http.StatusBadRequest)
		return
	}
	bookingDate, err := time.Parse(time.RFC3339, req.BookingDate)
	if err != nil {
		http.Error(w, "invalid booking_date", http.StatusBadRequest)
		return
	}
	if !bookingDate.After(time.Now().UTC()) {
		http.Error(w, "booking_date must be in the future", http.StatusBadRequest)
		return
	}

	in := lifecycle.CreateInput{
		MasterID:    req.MasterID,
		ClientID:    req.ClientID,
		ServiceID:   req.ServiceID,
		BookingDate: bookingDate,
		Notes:       strings.TrimSpace(req.Notes),
		WithPayment: req.WithPayment,
	}

	ctx := r.Context()
	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idemKey == "" || h.idem == nil {
		h.createAndRespond(ctx, w, in, nil, "")
		return
	}

	tx, err := h.idem.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rec, exists, err := h.idem.LockIdempotencyKey(ctx, tx, req.ClientID, idemKey)
	if err != nil {
		http.Error(w, "failed to lock idempotency key", http.StatusInternalServerError)
		return
	}
	if exists && rec.StatusCode > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(rec.StatusCode)
		_, _ = w.Write(rec.ResponsePayload)
		_ = tx.Commit(ctx)
		return
	}

	h.createAndRespond(ctx, w, in, tx, idemKey)
}

// createAndRespond runs the coordinator and writes the outcome. With an open
// idempotency transaction it also stores the response, including payment
// denials and eligibility rejections, so a retried key replays the same
// answer instead of authorizing a second hold.
func (h *BookingHandler) createAndRespond(ctx context.Context, w http.ResponseWriter, in lifecycle.CreateInput, tx pgx.Tx, idemKey string) {
	booking, err := h.coord.Create(ctx, in)
	if err != nil {
		status := lifecycleStatus(err)
		if tx != nil && status < http.StatusInternalServerError {
			body, merr := json.Marshal(map[string]string{"error": err.Error()})
			if merr == nil {
				if ferr := h.idem.FinalizeIdempotency(ctx, tx, in.ClientID, idemKey, "", status, body); ferr != nil {
					h.logger.Error("failed to finalize idempotency (error)", "err", ferr)
				} else {
					_ = tx.Commit(ctx)
				}
			}
		}
		writeLifecycleError(w, err)
		return
	}

	respBody, err := json.Marshal(bookingToResponse(booking))
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	if tx != nil {
		if err := h.idem.FinalizeIdempotency(ctx, tx, in.ClientID, idemKey, booking.ID, http.StatusCreated, respBody); err != nil {
			h.logger.Error("failed to finalize idempotency", "err", err, "booking_id", booking.ID)
		} else if err := tx.Commit(ctx); err != nil {
			h.logger.Error("failed to commit idempotency key", "err", err, "booking_id", booking.ID)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(respBody)
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "booking id required", http.StatusBadRequest)
		return
	}
	b, err := h.store.GetBooking(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "booking not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load booking", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, bookingToResponse(b))
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	masterID := strings.TrimSpace(r.URL.Query().Get("master_id"))
	clientID := strings.TrimSpace(r.URL.Query().Get("client_id"))
	if (masterID == "") == (clientID == "") {
		http.Error(w, "exactly one of master_id or client_id required", http.StatusBadRequest)
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	var bookings []model.Booking
	var err error
	if masterID != "" {
		bookings, err = h.store.ListBookingsByMaster(r.Context(), masterID, limit)
	} else {
		bookings, err = h.store.ListBookingsByClient(r.Context(), clientID, limit)
	}
	if err != nil {
		http.Error(w, "failed to list bookings", http.StatusInternalServerError)
		return
	}

	statusFilter := strings.TrimSpace(r.URL.Query().Get("status"))
	items := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		if statusFilter != "" && string(b.Status) != statusFilter {
			continue
		}
		items = append(items, bookingToResponse(b))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "booking id required", http.StatusBadRequest)
		return
	}
	b, err := h.coord.Complete(r.Context(), id)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingToResponse(b))
}

func (h *BookingHandler) NoShow(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "booking id required", http.StatusBadRequest)
		return
	}
	res, err := h.coord.NoShow(r.Context(), id)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, noShowResponse{
		Booking:            bookingToResponse(res.Booking),
		MasterCompensation: res.Split.MasterCompensation,
		ClientWalletCredit: res.Split.ClientWalletCredit,
	})
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "booking id required", http.StatusBadRequest)
		return
	}
	b, err := h.coord.Cancel(r.Context(), id)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingToResponse(b))
}

func (h *BookingHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "booking id required", http.StatusBadRequest)
		return
	}
	if _, err := h.store.GetBooking(r.Context(), id); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "booking not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load booking", http.StatusInternalServerError)
		return
	}
	txs, err := h.store.ListLedgerByBooking(r.Context(), id)
	if err != nil {
		http.Error(w, "failed to list ledger", http.StatusInternalServerError)
		return
	}
	items := make([]ledgerItem, 0, len(txs))
	for _, t := range txs {
		items = append(items, ledgerItem{
			ID:          t.ID,
			BookingID:   t.BookingID,
			MasterID:    t.MasterID,
			ClientID:    t.ClientID,
			Kind:        string(t.Kind),
			Amount:      t.Amount,
			Description: t.Description,
			CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, items)
}
