package model

import (
	"time"

	"subscription-api/internal/domain"
)

// DefaultCurrency is used when a tariff is created without a currency.
const DefaultCurrency = "RUB"

// Tariff is a priced, time-bounded tier of a subscription.
type Tariff struct {
	ID             string // UUID
	SubscriptionID string // UUID of subscription
	CreatedAt      time.Time
	ExpiresAt      *time.Time // nil when the tariff has no end of sale
	Amount         int64      // minor currency units
	Currency       string     // ISO 4217
	Duration       int64      // seconds of access bought by one payment
}

// Period returns the tariff duration as a time.Duration.
func (t *Tariff) Period() time.Duration {
	return time.Duration(t.Duration) * time.Second
}

// BelongsTo reports whether the tariff is sold under the given subscription.
func (t *Tariff) BelongsTo(subscriptionID string) bool {
	return t.SubscriptionID == subscriptionID
}

// Validate checks the tariff invariants.
func (t *Tariff) Validate() error {
	switch {
	case t.ID == "":
		return domain.Invalid("tariff id is required")
	case t.SubscriptionID == "":
		return domain.Invalid("subscription_id is required")
	case t.Duration <= 0:
		return domain.Invalid("duration must be positive")
	case t.Amount < 0:
		return domain.Invalid("amount must not be negative")
	case len(t.Currency) != 3:
		return domain.Invalid("currency must be an ISO 4217 code")
	}
	return nil
}

// TariffCreate carries the fields required to create a tariff.
type TariffCreate struct {
	SubscriptionID string
	ExpiresAt      *time.Time
	Amount         int64
	Currency       string
	Duration       int64
}

// TariffPatch carries optional tariff changes; nil fields stay untouched.
type TariffPatch struct {
	SubscriptionID *string
	ExpiresAt      *time.Time
	Amount         *int64
	Currency       *string
	Duration       *int64
}

// Apply returns a copy of t with the patch applied.
func (p TariffPatch) Apply(t Tariff) Tariff {
	if p.SubscriptionID != nil {
		t.SubscriptionID = *p.SubscriptionID
	}
	if p.ExpiresAt != nil {
		v := *p.ExpiresAt
		t.ExpiresAt = &v
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Currency != nil {
		t.Currency = *p.Currency
	}
	if p.Duration != nil {
		t.Duration = *p.Duration
	}
	return t
}
