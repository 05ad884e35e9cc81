// Package customer resolves booking customers by phone number, the identity
// key for self-service bookings.
package customer

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/garagedesk/garagedesk/internal/booking"
	"github.com/garagedesk/garagedesk/internal/model"
	"github.com/garagedesk/garagedesk/internal/phone"
)

// ErrDuplicatePhone is returned by Store.Insert when the unique phone index
// rejects the row; the resolver re-fetches instead of failing the caller.
var ErrDuplicatePhone = errors.New("phone already registered")

type Store interface {
	FindByPhone(ctx context.Context, phone string) (model.Customer, bool, error)
	Insert(ctx context.Context, c model.Customer) (model.Customer, error)
	UpdateName(ctx context.Context, id, firstName, lastName string) error
}

type Resolver struct {
	store      Store
	normalizer *phone.Normalizer
	logger     *slog.Logger
}

func NewResolver(store Store, normalizer *phone.Normalizer, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, normalizer: normalizer, logger: logger}
}

// ResolveOrCreate finds the customer owning the normalized phone number, or
// creates an active one. A supplied non-blank name that differs from the
// stored one wins (last write, no history). Two concurrent bookings with
// the same new phone race on the unique index; the loser re-fetches the
// winner's row exactly once.
func (r *Resolver) ResolveOrCreate(ctx context.Context, rawPhone, firstName, lastName string) (model.Customer, error) {
	normalized := r.normalizer.Normalize(rawPhone)
	if normalized == "" {
		return model.Customer{}, &booking.ValidationError{Field: "phone", Reason: "required"}
	}
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)

	existing, found, err := r.store.FindByPhone(ctx, normalized)
	if err != nil {
		return model.Customer{}, err
	}
	if found {
		return r.withUpdatedName(ctx, existing, firstName, lastName)
	}

	created, err := r.store.Insert(ctx, model.Customer{
		Phone:     normalized,
		FirstName: firstName,
		LastName:  lastName,
	})
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, ErrDuplicatePhone) {
		return model.Customer{}, err
	}

	// Lost the insert race; the winner's row must exist now.
	existing, found, err = r.store.FindByPhone(ctx, normalized)
	if err != nil {
		return model.Customer{}, err
	}
	if !found {
		return model.Customer{}, &booking.TransientError{Cause: errors.New("customer row vanished after duplicate phone")}
	}
	return r.withUpdatedName(ctx, existing, firstName, lastName)
}

func (r *Resolver) withUpdatedName(ctx context.Context, c model.Customer, firstName, lastName string) (model.Customer, error) {
	if !c.IsActive {
		return model.Customer{}, &booking.ValidationError{Field: "phone", Reason: "customer account is deactivated"}
	}
	if firstName == "" && lastName == "" {
		return c, nil
	}
	if firstName == c.FirstName && lastName == c.LastName {
		return c, nil
	}
	if firstName == "" {
		firstName = c.FirstName
	}
	if lastName == "" {
		lastName = c.LastName
	}
	if err := r.store.UpdateName(ctx, c.ID, firstName, lastName); err != nil {
		return model.Customer{}, err
	}
	c.FirstName = firstName
	c.LastName = lastName
	return c, nil
}
