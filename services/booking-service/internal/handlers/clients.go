package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aurasync/timehold/services/booking-service/internal/model"
	"github.com/aurasync/timehold/services/booking-service/internal/storage"
)

type ClientDirectory interface {
	InsertClient(ctx context.Context, c *model.ClientProfile) error
	GetClient(ctx context.Context, id string) (model.ClientProfile, error)
	GetClientByEmail(ctx context.Context, email string) (model.ClientProfile, error)
}

type ClientHandler struct {
	store  ClientDirectory
	logger *slog.Logger
}

func NewClientHandler(store ClientDirectory, logger *slog.Logger) *ClientHandler {
	return &ClientHandler{store: store, logger: logger}
}

type createClientRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type clientResponse struct {
	ID                string  `json:"id"`
	Email             string  `json:"email"`
	Name              string  `json:"name"`
	Phone             string  `json:"phone,omitempty"`
	TotalBookings     int     `json:"total_bookings"`
	CompletedBookings int     `json:"completed_bookings"`
	NoShows           int     `json:"no_shows"`
	Cancellations     int     `json:"cancellations"`
	Reliability       string  `json:"reliability"`
	WalletBalance     float64 `json:"wallet_balance"`
	CreatedAt         string  `json:"created_at"`
}

func clientToResponse(c model.ClientProfile) clientResponse {
	return clientResponse{
		ID:                c.ID,
		Email:             c.Email,
		Name:              c.Name,
		Phone:             c.Phone,
		TotalBookings:     c.TotalBookings,
		CompletedBookings: c.CompletedBookings,
		NoShows:           c.NoShows,
		Cancellations:     c.Cancellations,
		Reliability:       string(c.Reliability),
		WalletBalance:     c.WalletBalance,
		CreatedAt:         c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// CreateOrGet returns the existing profile for a known email, otherwise
// creates a fresh one in the "new" tier. Repeat calls with the same email are
// safe, which lets the booking flow upsert the client in one request.
func (h *ClientHandler) CreateOrGet(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Name == "" {
		http.Error(w, "email and name required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if existing, err := h.store.GetClientByEmail(ctx, req.Email); err == nil {
		writeJSON(w, http.StatusOK, clientToResponse(existing))
		return
	} else if !storage.IsNotFound(err) {
		http.Error(w, "failed to load client", http.StatusInternalServerError)
		return
	}

	c := model.ClientProfile{
		ID:          uuid.NewString(),
		Email:       req.Email,
		Name:        req.Name,
		Phone:       strings.TrimSpace(req.Phone),
		Reliability: model.ReliabilityNew,
	}
	if err := h.store.InsertClient(ctx, &c); err != nil {
		if storage.IsUniqueViolation(err) {
			// Lost a create race; the other insert won.
			if existing, gerr := h.store.GetClientByEmail(ctx, req.Email); gerr == nil {
				writeJSON(w, http.StatusOK, clientToResponse(existing))
				return
			}
		}
		h.logger.Error("failed to create client", "err", err)
		http.Error(w, "failed to create client", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, clientToResponse(c))
}

func (h *ClientHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "client id required", http.StatusBadRequest)
		return
	}
	c, err := h.store.GetClient(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "client not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load client", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, clientToResponse(c))
}

func (h *ClientHandler) GetByEmail(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(strings.ToLower(r.PathValue("email")))
	if email == "" {
		http.Error(w, "email required", http.StatusBadRequest)
		return
	}
	c, err := h.store.GetClientByEmail(r.Context(), email)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "client not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load client", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, clientToResponse(c))
}
