package notify

import (
	"fmt"
	"time"

	"github.com/garagedesk/garagedesk/internal/model"
)

// Renderer formats notification texts in the garage's locale and timezone.
type Renderer struct {
	garageName string
	loc        *time.Location
	locale     string
}

func NewRenderer(garageName, timezone, locale string) *Renderer {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	if locale != "fr" {
		locale = "en"
	}
	return &Renderer{garageName: garageName, loc: loc, locale: locale}
}

func (r *Renderer) Render(kind model.NotificationKind, p Payload) string {
	when := r.formatTime(p.StartTime)
	car := p.CarBrand
	if p.CarModel != "" {
		car += " " + p.CarModel
	}

	if r.locale == "fr" {
		switch kind {
		case model.NotifyConfirm:
			return fmt.Sprintf("%s : votre rendez-vous (%s) est confirmé le %s.", r.garageName, car, when)
		case model.NotifyUpdate:
			return fmt.Sprintf("%s : votre rendez-vous (%s) a été déplacé au %s.", r.garageName, car, when)
		case model.NotifyCancel:
			return fmt.Sprintf("%s : votre rendez-vous du %s a été annulé.", r.garageName, when)
		case model.NotifyReminder:
			return fmt.Sprintf("%s : rappel, votre rendez-vous (%s) est prévu le %s.", r.garageName, car, when)
		}
	}

	switch kind {
	case model.NotifyConfirm:
		return fmt.Sprintf("%s: your appointment (%s) is confirmed for %s.", r.garageName, car, when)
	case model.NotifyUpdate:
		return fmt.Sprintf("%s: your appointment (%s) has been moved to %s.", r.garageName, car, when)
	case model.NotifyCancel:
		return fmt.Sprintf("%s: your appointment on %s has been cancelled.", r.garageName, when)
	case model.NotifyReminder:
		return fmt.Sprintf("%s: reminder, your appointment (%s) is scheduled for %s.", r.garageName, car, when)
	}
	return fmt.Sprintf("%s: appointment update for %s.", r.garageName, when)
}

func (r *Renderer) formatTime(rfc3339 string) string {
	t, err := time.Parse(time.RFC3339, rfc3339)
	if err != nil {
		return rfc3339
	}
	local := t.In(r.loc)
	if r.locale == "fr" {
		return local.Format("02/01/2006 à 15:04")
	}
	return local.Format("Jan 2, 2006 at 3:04 PM")
}
