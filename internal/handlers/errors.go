package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/garagedesk/garagedesk/internal/booking"
)

type errorResponse struct {
	Error            string `json:"error"`
	ConflictingID    string `json:"conflicting_appointment_id,omitempty"`
	ConflictingStart string `json:"conflicting_start_time,omitempty"`
}

// writeDomainError maps the booking error taxonomy onto HTTP statuses.
// Transient failures get 503 so clients retry the whole operation.
func writeDomainError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	var validation *booking.ValidationError
	var notFound *booking.NotFoundError
	var conflict *booking.ConflictError
	var transition *booking.InvalidTransitionError
	var transient *booking.TransientError

	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &conflict):
		status = http.StatusConflict
		resp.ConflictingID = conflict.ConflictingID
		resp.ConflictingStart = conflict.ConflictingStart.UTC().Format(time.RFC3339)
	case errors.As(err, &transition):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &transient):
		status = http.StatusServiceUnavailable
		resp.Error = "temporarily unavailable, retry the request"
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
