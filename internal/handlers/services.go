package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/garagedesk/garagedesk/internal/model"
	"github.com/garagedesk/garagedesk/internal/storage"
)

type ServiceHandler struct {
	repo   *storage.ServiceRepository
	logger *slog.Logger
}

func NewServiceHandler(repo *storage.ServiceRepository, logger *slog.Logger) *ServiceHandler {
	return &ServiceHandler{repo: repo, logger: logger}
}

type serviceRequest struct {
	ServiceID       string `json:"service_id"`
	Name            string `json:"name"`
	MinDurationMins int    `json:"min_duration_minutes"`
	DefaultDuration int    `json:"default_duration_minutes"`
	MaxDurationMins int    `json:"max_duration_minutes"`
	BasePrice       string `json:"base_price"`
	IsActive        *bool  `json:"is_active"`
	Version         int    `json:"version"`
}

type serviceItem struct {
	ServiceID       string `json:"service_id"`
	Name            string `json:"name"`
	MinDurationMins int    `json:"min_duration_minutes"`
	DefaultDuration int    `json:"default_duration_minutes"`
	MaxDurationMins int    `json:"max_duration_minutes"`
	BasePrice       string `json:"base_price"`
	IsActive        bool   `json:"is_active"`
	Version         int    `json:"version"`
}

func toServiceItem(s model.DetailService) serviceItem {
	return serviceItem{
		ServiceID:       s.ID,
		Name:            s.Name,
		MinDurationMins: s.MinDurationMins,
		DefaultDuration: s.DefaultDuration,
		MaxDurationMins: s.MaxDurationMins,
		BasePrice:       s.BasePrice,
		IsActive:        s.IsActive,
		Version:         s.Version,
	}
}

func (h *ServiceHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	services, err := h.repo.List(r.Context(), includeInactive)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]serviceItem, 0, len(services))
	for _, s := range services {
		items = append(items, toServiceItem(s))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ServiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req serviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	svc := model.DetailService{
		Name:            strings.TrimSpace(req.Name),
		MinDurationMins: req.MinDurationMins,
		DefaultDuration: req.DefaultDuration,
		MaxDurationMins: req.MaxDurationMins,
		BasePrice:       strings.TrimSpace(req.BasePrice),
	}
	if err := svc.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	created, err := h.repo.Create(r.Context(), svc)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.Info("detail service created", "service_id", created.ID, "name", created.Name)
	writeJSON(w, http.StatusCreated, toServiceItem(created))
}

// Update edits a service using the version it was read at; concurrent edits
// lose and must re-read.
func (h *ServiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req serviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	if req.ServiceID == "" {
		http.Error(w, "service_id required", http.StatusBadRequest)
		return
	}

	svc := model.DetailService{
		ID:              req.ServiceID,
		Name:            strings.TrimSpace(req.Name),
		MinDurationMins: req.MinDurationMins,
		DefaultDuration: req.DefaultDuration,
		MaxDurationMins: req.MaxDurationMins,
		BasePrice:       strings.TrimSpace(req.BasePrice),
		IsActive:        true,
		Version:         req.Version,
	}
	if req.IsActive != nil {
		svc.IsActive = *req.IsActive
	}
	if err := svc.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.repo.Update(r.Context(), svc); err != nil {
		writeDomainError(w, err)
		return
	}
	svc.Version++
	writeJSON(w, http.StatusOK, toServiceItem(svc))
}
