package model

import (
	"strings"
	"time"
)

type Customer struct {
	ID        string
	Phone     string // E.164-normalized, unique
	FirstName string
	LastName  string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c Customer) DisplayName() string {
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if name == "" {
		return c.Phone
	}
	return name
}
