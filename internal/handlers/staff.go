package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/garagedesk/garagedesk/internal/model"
)

// StaffLister lists the assignable staff directory.
type StaffLister interface {
	List(ctx context.Context) ([]model.Staff, error)
}

type StaffHandler struct {
	repo   StaffLister
	logger *slog.Logger
}

func NewStaffHandler(repo StaffLister, logger *slog.Logger) *StaffHandler {
	return &StaffHandler{repo: repo, logger: logger}
}

type staffItem struct {
	StaffID  string `json:"staff_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

// List returns every STAFF/ADMIN user, including deactivated ones so the
// desk can tell why a staff member no longer takes bookings.
func (h *StaffHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	staff, err := h.repo.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]staffItem, 0, len(staff))
	for _, s := range staff {
		items = append(items, staffItem{
			StaffID:  s.ID,
			Username: s.Username,
			Role:     string(s.Role),
			IsActive: s.IsActive,
		})
	}
	writeJSON(w, http.StatusOK, items)
}
