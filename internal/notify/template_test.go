package notify

import (
	"strings"
	"testing"

	"github.com/garagedesk/garagedesk/internal/model"
)

func TestRenderFrench(t *testing.T) {
	r := NewRenderer("Garage Martin", "Europe/Paris", "fr")
	p := Payload{
		AppointmentID: "appt-1",
		Phone:         "+33612345678",
		CustomerName:  "Jean Dupont",
		CarBrand:      "Renault",
		CarModel:      "Clio",
		StartTime:     "2026-09-10T08:00:00Z",
	}

	body := r.Render(model.NotifyConfirm, p)
	if !strings.Contains(body, "Garage Martin") {
		t.Fatalf("missing garage name: %q", body)
	}
	if !strings.Contains(body, "Renault Clio") {
		t.Fatalf("missing car info: %q", body)
	}
	// 08:00 UTC is 10:00 in Paris during CEST.
	if !strings.Contains(body, "10/09/2026 à 10:00") {
		t.Fatalf("expected localized time, got %q", body)
	}
	if !strings.Contains(body, "confirmé") {
		t.Fatalf("expected confirm wording, got %q", body)
	}
}

func TestRenderEnglishFallback(t *testing.T) {
	r := NewRenderer("Downtown Detailing", "bad/zone", "de")
	p := Payload{CarBrand: "BMW", StartTime: "2026-09-10T08:00:00Z"}

	body := r.Render(model.NotifyReminder, p)
	if !strings.Contains(body, "reminder") {
		t.Fatalf("expected english reminder, got %q", body)
	}
	// Unknown timezone falls back to UTC.
	if !strings.Contains(body, "8:00 AM") {
		t.Fatalf("expected UTC time, got %q", body)
	}
}

func TestRenderEachKindDistinct(t *testing.T) {
	r := NewRenderer("Garage Martin", "UTC", "en")
	p := Payload{CarBrand: "Audi", StartTime: "2026-09-10T08:00:00Z"}

	seen := map[string]model.NotificationKind{}
	for _, kind := range []model.NotificationKind{
		model.NotifyConfirm, model.NotifyUpdate, model.NotifyCancel, model.NotifyReminder,
	} {
		body := r.Render(kind, p)
		if prev, dup := seen[body]; dup {
			t.Fatalf("kinds %s and %s render identically: %q", prev, kind, body)
		}
		seen[body] = kind
	}
}
