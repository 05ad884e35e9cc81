package model

import "time"

// Status is the closed set of appointment lifecycle states.
type Status string

const (
	StatusRequested   Status = "REQUESTED"
	StatusConfirmed   Status = "CONFIRMED"
	StatusRescheduled Status = "RESCHEDULED"
	StatusInProgress  Status = "IN_PROGRESS"
	StatusCompleted   Status = "COMPLETED"
	StatusCanceled    Status = "CANCELED"
	StatusNoShow      Status = "NOSHOW"
)

func (s Status) Valid() bool {
	switch s {
	case StatusRequested, StatusConfirmed, StatusRescheduled, StatusInProgress,
		StatusCompleted, StatusCanceled, StatusNoShow:
		return true
	}
	return false
}

// Terminal states have no outgoing transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCanceled, StatusNoShow:
		return true
	}
	return false
}

// Blocking states count toward overlap detection on the staff calendar.
func (s Status) Blocking() bool {
	return s == StatusConfirmed || s == StatusInProgress
}

type Appointment struct {
	ID           string
	CustomerID   string
	StaffID      string // empty while unassigned
	CarBrand     string
	CarModel     string
	Description  string
	Price        string // numeric, scanned as text
	StartTime    time.Time
	EndTime      time.Time
	Status       Status
	CancelReason string
	Version      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (a Appointment) Duration() time.Duration {
	return a.EndTime.Sub(a.StartTime)
}
