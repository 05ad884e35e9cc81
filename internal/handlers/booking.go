package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/garagedesk/garagedesk/internal/booking"
	"github.com/garagedesk/garagedesk/internal/model"
)

// BookingService is the slice of the booking core the HTTP layer needs.
type BookingService interface {
	CreateRequested(ctx context.Context, in booking.CreateRequestedInput) (booking.Snapshot, error)
	CreateConfirmed(ctx context.Context, in booking.CreateConfirmedInput) (booking.Snapshot, error)
	Confirm(ctx context.Context, id, staffID string, durationMins int, price string) (booking.Snapshot, error)
	Reschedule(ctx context.Context, id string, newStart time.Time) (booking.Snapshot, error)
	Cancel(ctx context.Context, id, reason string) (booking.Snapshot, error)
	Start(ctx context.Context, id string) (booking.Snapshot, error)
	Complete(ctx context.Context, id string) (booking.Snapshot, error)
	MarkNoShow(ctx context.Context, id string) (booking.Snapshot, error)
	GetByID(ctx context.Context, id string) (booking.Snapshot, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]booking.Snapshot, error)
	FreeSlotsFor(ctx context.Context, q booking.SlotQuery) ([]time.Time, error)
}

// CustomerResolver turns a raw phone plus optional name into a customer row.
type CustomerResolver interface {
	ResolveOrCreate(ctx context.Context, rawPhone, firstName, lastName string) (model.Customer, error)
}

type BookingHandler struct {
	svc      BookingService
	resolver CustomerResolver
	logger   *slog.Logger
	loc      *time.Location
}

func NewBookingHandler(svc BookingService, resolver CustomerResolver, logger *slog.Logger, loc *time.Location) *BookingHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &BookingHandler{svc: svc, resolver: resolver, logger: logger, loc: loc}
}

type publicBookRequest struct {
	Phone       string `json:"phone"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	ServiceID   string `json:"service_id"`
	CarBrand    string `json:"car_brand"`
	CarModel    string `json:"car_model"`
	Description string `json:"description"`
	StartTime   string `json:"start_time"`
}

type createAppointmentRequest struct {
	CustomerID   string `json:"customer_id"`
	StaffID      string `json:"staff_id"`
	CarBrand     string `json:"car_brand"`
	CarModel     string `json:"car_model"`
	Description  string `json:"description"`
	StartTime    string `json:"start_time"`
	DurationMins int    `json:"duration_minutes"`
	Price        string `json:"price"`
}

type confirmRequest struct {
	AppointmentID string `json:"appointment_id"`
	StaffID       string `json:"staff_id"`
	DurationMins  int    `json:"duration_minutes"`
	Price         string `json:"price"`
}

type rescheduleRequest struct {
	AppointmentID string `json:"appointment_id"`
	StartTime     string `json:"start_time"`
}

type cancelRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

type statusChangeRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type appointmentResponse struct {
	AppointmentID string `json:"appointment_id"`
	CustomerID    string `json:"customer_id"`
	CustomerName  string `json:"customer_name,omitempty"`
	StaffID       string `json:"staff_id,omitempty"`
	CarBrand      string `json:"car_brand"`
	CarModel      string `json:"car_model,omitempty"`
	Description   string `json:"description,omitempty"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	DurationMins  int    `json:"duration_minutes"`
	Price         string `json:"price,omitempty"`
	Status        string `json:"status"`
	CancelReason  string `json:"cancel_reason,omitempty"`
}

func toResponse(snap booking.Snapshot) appointmentResponse {
	return appointmentResponse{
		AppointmentID: snap.ID,
		CustomerID:    snap.CustomerID,
		CustomerName:  snap.CustomerName,
		StaffID:       snap.StaffID,
		CarBrand:      snap.CarBrand,
		CarModel:      snap.CarModel,
		Description:   snap.Description,
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		EndTime:       snap.EndTime.UTC().Format(time.RFC3339),
		DurationMins:  snap.DurationMins,
		Price:         snap.Price,
		Status:        string(snap.Status),
		CancelReason:  snap.CancelReason,
	}
}

// PublicBook is the customer self-service endpoint: resolve the caller by
// phone, then record a REQUESTED booking for staff to confirm.
func (h *BookingHandler) PublicBook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req publicBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.CarBrand = strings.TrimSpace(req.CarBrand)
	if req.ServiceID == "" {
		http.Error(w, "service_id required", http.StatusBadRequest)
		return
	}
	start, ok := parseTime(w, req.StartTime)
	if !ok {
		return
	}

	ctx := r.Context()
	cust, err := h.resolver.ResolveOrCreate(ctx, req.Phone, req.FirstName, req.LastName)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	snap, err := h.svc.CreateRequested(ctx, booking.CreateRequestedInput{
		CustomerID:  cust.ID,
		ServiceID:   req.ServiceID,
		CarBrand:    req.CarBrand,
		CarModel:    strings.TrimSpace(req.CarModel),
		Description: strings.TrimSpace(req.Description),
		StartTime:   start,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.Info("booking requested", "appointment_id", snap.ID, "customer_id", cust.ID)
	writeJSON(w, http.StatusCreated, toResponse(snap))
}

// Create records a staff-entered booking directly in CONFIRMED state.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.StaffID = strings.TrimSpace(req.StaffID)
	if req.CustomerID == "" || req.StaffID == "" {
		http.Error(w, "customer_id and staff_id required", http.StatusBadRequest)
		return
	}
	start, ok := parseTime(w, req.StartTime)
	if !ok {
		return
	}

	snap, err := h.svc.CreateConfirmed(r.Context(), booking.CreateConfirmedInput{
		CustomerID:   req.CustomerID,
		StaffID:      req.StaffID,
		CarBrand:     strings.TrimSpace(req.CarBrand),
		CarModel:     strings.TrimSpace(req.CarModel),
		Description:  strings.TrimSpace(req.Description),
		StartTime:    start,
		DurationMins: req.DurationMins,
		Price:        strings.TrimSpace(req.Price),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.Info("booking confirmed", "appointment_id", snap.ID, "staff_id", snap.StaffID)
	writeJSON(w, http.StatusCreated, toResponse(snap))
}

func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.StaffID = strings.TrimSpace(req.StaffID)
	if req.AppointmentID == "" || req.StaffID == "" {
		http.Error(w, "appointment_id and staff_id required", http.StatusBadRequest)
		return
	}

	snap, err := h.svc.Confirm(r.Context(), req.AppointmentID, req.StaffID, req.DurationMins, strings.TrimSpace(req.Price))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(snap))
}

func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}
	start, ok := parseTime(w, req.StartTime)
	if !ok {
		return
	}

	snap, err := h.svc.Reschedule(r.Context(), req.AppointmentID, start)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(snap))
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	snap, err := h.svc.Cancel(r.Context(), req.AppointmentID, strings.TrimSpace(req.Reason))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(snap))
}

func (h *BookingHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.svc.Start)
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.svc.Complete)
}

func (h *BookingHandler) NoShow(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.svc.MarkNoShow)
}

func (h *BookingHandler) statusChange(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string) (booking.Snapshot, error)) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req statusChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	snap, err := op(r.Context(), req.AppointmentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(snap))
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	snap, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(snap))
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	from, ok := parseTime(w, r.URL.Query().Get("from"))
	if !ok {
		return
	}
	to, ok := parseTime(w, r.URL.Query().Get("to"))
	if !ok {
		return
	}

	snaps, err := h.svc.ListBetween(r.Context(), from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]appointmentResponse, 0, len(snaps))
	for _, snap := range snaps {
		items = append(items, toResponse(snap))
	}
	writeJSON(w, http.StatusOK, items)
}

// Collection dispatches the appointments collection route: GET lists a
// window, POST creates a confirmed booking.
func (h *BookingHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.List(w, r)
	case http.MethodPost:
		h.Create(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type slotItem struct {
	StartTime string `json:"start_time"`
}

// Slots lists bookable start times for a staff member, detail service and
// day, within the garage's working hours.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	staffID := strings.TrimSpace(q.Get("staff_id"))
	serviceID := strings.TrimSpace(q.Get("service_id"))
	dateStr := strings.TrimSpace(q.Get("date"))
	if staffID == "" || serviceID == "" || dateStr == "" {
		http.Error(w, "staff_id, service_id and date are required", http.StatusBadRequest)
		return
	}
	day, err := time.ParseInLocation("2006-01-02", dateStr, h.loc)
	if err != nil {
		http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	windowStart, ok := h.clockOn(w, day, q.Get("workday_start"), "09:00")
	if !ok {
		return
	}
	windowEnd, ok := h.clockOn(w, day, q.Get("workday_end"), "18:00")
	if !ok {
		return
	}

	step := 15 * time.Minute
	if raw := strings.TrimSpace(q.Get("slot_step_minutes")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 120 {
			http.Error(w, "invalid slot_step_minutes", http.StatusBadRequest)
			return
		}
		step = time.Duration(n) * time.Minute
	}

	slots, err := h.svc.FreeSlotsFor(r.Context(), booking.SlotQuery{
		StaffID:     staffID,
		ServiceID:   serviceID,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Step:        step,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{StartTime: s.UTC().Format(time.RFC3339)})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) clockOn(w http.ResponseWriter, day time.Time, raw, fallback string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = fallback
	}
	clock, err := time.Parse("15:04", raw)
	if err != nil {
		http.Error(w, "invalid workday time, expected HH:MM", http.StatusBadRequest)
		return time.Time{}, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, h.loc), true
}

func parseTime(w http.ResponseWriter, raw string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		http.Error(w, "invalid time, expected RFC3339", http.StatusBadRequest)
		return time.Time{}, false
	}
	return t, true
}
