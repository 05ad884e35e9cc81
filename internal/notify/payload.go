package notify

import (
	"time"

	"github.com/garagedesk/garagedesk/internal/booking"
	"github.com/garagedesk/garagedesk/internal/model"
)

// Payload is the wire form of a notification event: everything the
// dispatcher needs to format and send the message without reading the
// appointment back.
type Payload struct {
	AppointmentID string `json:"appointment_id"`
	Kind          string `json:"kind"`
	Phone         string `json:"phone"`
	CustomerName  string `json:"customer_name"`
	CarBrand      string `json:"car_brand"`
	CarModel      string `json:"car_model"`
	StartTime     string `json:"start_time"` // RFC3339
	EndTime       string `json:"end_time"`
	Price         string `json:"price"`
}

func PayloadFromSnapshot(snap booking.Snapshot, kind model.NotificationKind) Payload {
	return Payload{
		AppointmentID: snap.ID,
		Kind:          string(kind),
		Phone:         snap.CustomerPhone,
		CustomerName:  snap.CustomerName,
		CarBrand:      snap.CarBrand,
		CarModel:      snap.CarModel,
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		EndTime:       snap.EndTime.UTC().Format(time.RFC3339),
		Price:         snap.Price,
	}
}
