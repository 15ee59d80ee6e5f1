package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aurasync/timehold/services/booking-service/internal/engine"
	"github.com/aurasync/timehold/services/booking-service/internal/model"
	"github.com/aurasync/timehold/services/booking-service/internal/storage"
)

type ServiceCatalog interface {
	InsertService(ctx context.Context, svc *model.ServiceOffering) error
	GetService(ctx context.Context, id string) (model.ServiceOffering, error)
	ListServicesByMaster(ctx context.Context, masterID string, activeOnly bool) ([]model.ServiceOffering, error)
	SetServiceActive(ctx context.Context, id string, active bool) error
	GetMaster(ctx context.Context, id string) (model.Master, error)
}

type ServiceHandler struct {
	store  ServiceCatalog
	logger *slog.Logger
}

func NewServiceHandler(store ServiceCatalog, logger *slog.Logger) *ServiceHandler {
	return &ServiceHandler{store: store, logger: logger}
}

type createServiceRequest struct {
	MasterID        string  `json:"master_id"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	DurationMinutes int     `json:"duration_minutes"`
	Price           float64 `json:"price"`
	NewClientsOnly  bool    `json:"new_clients_only"`
}

type serviceResponse struct {
	ID              string  `json:"id"`
	MasterID        string  `json:"master_id"`
	Name            string  `json:"name"`
	Description     string  `json:"description,omitempty"`
	DurationMinutes int     `json:"duration_minutes"`
	Price           float64 `json:"price"`
	BaseHold        float64 `json:"base_hold"`
	Active          bool    `json:"active"`
	NewClientsOnly  bool    `json:"new_clients_only"`
	CreatedAt       string  `json:"created_at"`
}

func serviceToResponse(svc model.ServiceOffering) serviceResponse {
	return serviceResponse{
		ID:              svc.ID,
		MasterID:        svc.MasterID,
		Name:            svc.Name,
		Description:     svc.Description,
		DurationMinutes: svc.DurationMinutes,
		Price:           svc.Price,
		BaseHold:        svc.BaseHold,
		Active:          svc.Active,
		NewClientsOnly:  svc.NewClientsOnly,
		CreatedAt:       svc.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *ServiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.MasterID = strings.TrimSpace(req.MasterID)
	req.Name = strings.TrimSpace(req.Name)
	if req.MasterID == "" || req.Name == "" {
		http.Error(w, "master_id and name required", http.StatusBadRequest)
		return
	}
	if req.DurationMinutes <= 0 || req.DurationMinutes > 8*60 {
		http.Error(w, "duration_minutes must be between 1 and 480", http.StatusBadRequest)
		return
	}
	if req.Price <= 0 {
		http.Error(w, "price must be positive", http.StatusBadRequest)
		return
	}

	if _, err := h.store.GetMaster(r.Context(), req.MasterID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "master not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load master", http.StatusInternalServerError)
		return
	}

	svc := model.ServiceOffering{
		ID:              uuid.NewString(),
		MasterID:        req.MasterID,
		Name:            req.Name,
		Description:     strings.TrimSpace(req.Description),
		DurationMinutes: req.DurationMinutes,
		Price:           engine.Round2(req.Price),
		BaseHold:        engine.BaseHold(req.Price, req.DurationMinutes),
		Active:          true,
		NewClientsOnly:  req.NewClientsOnly,
	}
	if err := h.store.InsertService(r.Context(), &svc); err != nil {
		h.logger.Error("failed to create service", "err", err, "master_id", req.MasterID)
		http.Error(w, "failed to create service", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, serviceToResponse(svc))
}

func (h *ServiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "service id required", http.StatusBadRequest)
		return
	}
	svc, err := h.store.GetService(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "service not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load service", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, serviceToResponse(svc))
}

// SetActive hides or restores a service. Existing bookings keep their
// snapshotted price and duration either way.
func (h *ServiceHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "service id required", http.StatusBadRequest)
		return
	}
	var req struct {
		Active *bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
		http.Error(w, "active (bool) required", http.StatusBadRequest)
		return
	}
	if err := h.store.SetServiceActive(r.Context(), id, *req.Active); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "service not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to update service", "err", err, "service_id", id)
		http.Error(w, "failed to update service", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "active": *req.Active})
}

func (h *ServiceHandler) List(w http.ResponseWriter, r *http.Request) {
	masterID := strings.TrimSpace(r.URL.Query().Get("master_id"))
	if masterID == "" {
		http.Error(w, "master_id required", http.StatusBadRequest)
		return
	}
	activeOnly := r.URL.Query().Get("include_inactive") == ""

	services, err := h.store.ListServicesByMaster(r.Context(), masterID, activeOnly)
	if err != nil {
		http.Error(w, "failed to list services", http.StatusInternalServerError)
		return
	}
	items := make([]serviceResponse, 0, len(services))
	for _, svc := range services {
		items = append(items, serviceToResponse(svc))
	}
	writeJSON(w, http.StatusOK, items)
}
