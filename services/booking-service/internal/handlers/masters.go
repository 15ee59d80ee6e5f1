package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aurasync/timehold/services/booking-service/internal/model"
	"github.com/aurasync/timehold/services/booking-service/internal/storage"
)

// MasterDirectory is the slice of storage the master endpoints need.
type MasterDirectory interface {
	InsertMaster(ctx context.Context, m *model.Master) error
	GetMaster(ctx context.Context, id string) (model.Master, error)
	GetMasterBySlug(ctx context.Context, slug string) (model.Master, error)
	ListMasters(ctx context.Context, limit int) ([]model.Master, error)
}

type MasterHandler struct {
	store  MasterDirectory
	logger *slog.Logger
}

func NewMasterHandler(store MasterDirectory, logger *slog.Logger) *MasterHandler {
	return &MasterHandler{store: store, logger: logger}
}

type createMasterRequest struct {
	Email          string `json:"email"`
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	Specialty      string `json:"specialty"`
	Bio            string `json:"bio"`
	Location       string `json:"location"`
	BookingSlug    string `json:"booking_slug"`
	TelegramChatID string `json:"telegram_chat_id"`
}

type masterResponse struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	Phone          string `json:"phone,omitempty"`
	Specialty      string `json:"specialty,omitempty"`
	Bio            string `json:"bio,omitempty"`
	Location       string `json:"location,omitempty"`
	BookingSlug    string `json:"booking_slug,omitempty"`
	TelegramChatID string `json:"telegram_chat_id,omitempty"`
	CreatedAt      string `json:"created_at"`
}

func masterToResponse(m model.Master) masterResponse {
	return masterResponse{
		ID:             m.ID,
		Email:          m.Email,
		Name:           m.Name,
		Phone:          m.Phone,
		Specialty:      m.Specialty,
		Bio:            m.Bio,
		Location:       m.Location,
		BookingSlug:    m.BookingSlug,
		TelegramChatID: m.TelegramChatID,
		CreatedAt:      m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *MasterHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createMasterRequest
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

	slug := strings.TrimSpace(strings.ToLower(req.BookingSlug))
	if slug == "" {
		slug = slugify(req.Name)
	}

	m := model.Master{
		ID:             uuid.NewString(),
		Email:          req.Email,
		Name:           req.Name,
		Phone:          strings.TrimSpace(req.Phone),
		Specialty:      strings.TrimSpace(req.Specialty),
		Bio:            strings.TrimSpace(req.Bio),
		Location:       strings.TrimSpace(req.Location),
		BookingSlug:    slug,
		TelegramChatID: strings.TrimSpace(req.TelegramChatID),
	}
	if err := h.store.InsertMaster(r.Context(), &m); err != nil {
		if storage.IsUniqueViolation(err) {
			http.Error(w, "email or booking slug already in use", http.StatusConflict)
			return
		}
		h.logger.Error("failed to create master", "err", err)
		http.Error(w, "failed to create master", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, masterToResponse(m))
}

func (h *MasterHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "master id required", http.StatusBadRequest)
		return
	}
	m, err := h.store.GetMaster(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "master not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load master", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, masterToResponse(m))
}

func (h *MasterHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	slug := strings.TrimSpace(r.PathValue("slug"))
	if slug == "" {
		http.Error(w, "booking slug required", http.StatusBadRequest)
		return
	}
	m, err := h.store.GetMasterBySlug(r.Context(), slug)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "master not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load master", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, masterToResponse(m))
}

func (h *MasterHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	masters, err := h.store.ListMasters(r.Context(), limit)
	if err != nil {
		http.Error(w, "failed to list masters", http.StatusInternalServerError)
		return
	}
	items := make([]masterResponse, 0, len(masters))
	for _, m := range masters {
		items = append(items, masterToResponse(m))
	}
	writeJSON(w, http.StatusOK, items)
}

// slugify derives a URL-safe booking slug from a display name.
func slugify(name string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash && b.Len() > 0 {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
