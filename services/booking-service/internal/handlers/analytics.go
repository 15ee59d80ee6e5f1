package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aurasync/timehold/services/booking-service/internal/engine"
	"github.com/aurasync/timehold/services/booking-service/internal/model"
	"github.com/aurasync/timehold/services/booking-service/internal/storage"
)

type AnalyticsSource interface {
	GetMaster(ctx context.Context, id string) (model.Master, error)
	GetMasterAnalytics(ctx context.Context, masterID string) (storage.MasterAnalytics, error)
}

type AnalyticsHandler struct {
	store  AnalyticsSource
	logger *slog.Logger
}

func NewAnalyticsHandler(store AnalyticsSource, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{store: store, logger: logger}
}

type masterAnalyticsResponse struct {
	MasterID           string  `json:"master_id"`
	TotalBookings      int     `json:"total_bookings"`
	Completed          int     `json:"completed"`
	NoShows            int     `json:"no_shows"`
	Cancelled          int     `json:"cancelled"`
	Upcoming           int     `json:"upcoming"`
	NoShowRate         float64 `json:"no_show_rate"`
	NoShowCompensation float64 `json:"no_show_compensation"`
	HeldAmountPending  float64 `json:"held_amount_pending"`
}

func (h *AnalyticsHandler) Master(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "master id required", http.StatusBadRequest)
		return
	}
	if _, err := h.store.GetMaster(r.Context(), id); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "master not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load master", http.StatusInternalServerError)
		return
	}

	a, err := h.store.GetMasterAnalytics(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to compute analytics", "err", err, "master_id", id)
		http.Error(w, "failed to compute analytics", http.StatusInternalServerError)
		return
	}

	resolved := a.Completed + a.NoShows
	rate := 0.0
	if resolved > 0 {
		rate = engine.Round2(float64(a.NoShows) / float64(resolved))
	}
	writeJSON(w, http.StatusOK, masterAnalyticsResponse{
		MasterID:           id,
		TotalBookings:      a.TotalBookings,
		Completed:          a.Completed,
		NoShows:            a.NoShows,
		Cancelled:          a.Cancelled,
		Upcoming:           a.Upcoming,
		NoShowRate:         rate,
		NoShowCompensation: a.NoShowCompensation,
		HeldAmountPending:  a.HeldAmountPending,
	})
}
