package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/garagedesk/garagedesk/internal/model"
	"github.com/garagedesk/garagedesk/internal/storage"
)

type CustomerHandler struct {
	repo   *storage.CustomerRepository
	logger *slog.Logger
}

func NewCustomerHandler(repo *storage.CustomerRepository, logger *slog.Logger) *CustomerHandler {
	return &CustomerHandler{repo: repo, logger: logger}
}

type customerItem struct {
	CustomerID string `json:"customer_id"`
	Phone      string `json:"phone"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	IsActive   bool   `json:"is_active"`
	CreatedAt  string `json:"created_at"`
}

func toCustomerItem(c model.Customer) customerItem {
	return customerItem{
		CustomerID: c.ID,
		Phone:      c.Phone,
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		IsActive:   c.IsActive,
		CreatedAt:  c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 100
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	customers, err := h.repo.List(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]customerItem, 0, len(customers))
	for _, c := range customers {
		items = append(items, toCustomerItem(c))
	}
	writeJSON(w, http.StatusOK, items)
}

type setActiveRequest struct {
	CustomerID string `json:"customer_id"`
}

// Deactivate blocks further self-service bookings for the customer; their
// history stays queryable.
func (h *CustomerHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *CustomerHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *CustomerHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	if req.CustomerID == "" {
		http.Error(w, "customer_id required", http.StatusBadRequest)
		return
	}

	if err := h.repo.SetActive(r.Context(), req.CustomerID, active); err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.Info("customer active flag changed", "customer_id", req.CustomerID, "active", active)
	writeJSON(w, http.StatusOK, map[string]any{"customer_id": req.CustomerID, "is_active": active})
}
