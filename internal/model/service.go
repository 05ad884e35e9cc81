package model

import (
	"fmt"
	"time"
)

// DetailService is a bookable detailing service. Its default duration and base
// price seed the placeholder window for customer-requested bookings.
type DetailService struct {
	ID              string
	Name            string
	MinDurationMins int
	DefaultDuration int
	MaxDurationMins int
	BasePrice       string
	IsActive        bool
	Version         int
	CreatedAt       time.Time
}

func (s DetailService) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if s.MinDurationMins <= 0 || s.MaxDurationMins < s.MinDurationMins {
		return fmt.Errorf("duration bounds invalid: min=%d max=%d", s.MinDurationMins, s.MaxDurationMins)
	}
	if s.DefaultDuration < s.MinDurationMins || s.DefaultDuration > s.MaxDurationMins {
		return fmt.Errorf("default duration %d outside [%d,%d]", s.DefaultDuration, s.MinDurationMins, s.MaxDurationMins)
	}
	return nil
}
