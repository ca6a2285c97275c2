package model

import (
	"strings"
	"time"

	"subscription-api/internal/domain"
)

// Subscription is a named subscription plan that tariffs and accounts belong to.
type Subscription struct {
	ID        string // UUID
	Name      string
	CreatedAt time.Time
}

// NewSubscription creates a subscription with a trimmed, non-empty name.
func NewSubscription(id, name string) (*Subscription, error) {
	name = strings.TrimSpace(name)
	if id == "" {
		return nil, domain.Invalid("subscription id is required")
	}
	if name == "" {
		return nil, domain.Invalid("subscription name is required")
	}
	return &Subscription{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now(),
	}, nil
}
