package model

import (
	"time"

	"subscription-api/internal/domain"
)

type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusInactive AccountStatus = "inactive"
	AccountStatusPending  AccountStatus = "pending"
	AccountStatusBlocked  AccountStatus = "blocked"
)

// AccountStatuses lists every known account status.
var AccountStatuses = []AccountStatus{
	AccountStatusActive,
	AccountStatusInactive,
	AccountStatusPending,
	AccountStatusBlocked,
}

func (s AccountStatus) Valid() bool {
	switch s {
	case AccountStatusActive, AccountStatusInactive, AccountStatusPending, AccountStatusBlocked:
		return true
	}
	return false
}

// ParseAccountStatus converts raw input into an AccountStatus.
func ParseAccountStatus(s string) (AccountStatus, error) {
	st := AccountStatus(s)
	if !st.Valid() {
		return "", domain.Invalid("unknown account status %q", s)
	}
	return st, nil
}

// Account is a user's enrollment in a subscription.
type Account struct {
	ID             string // UUID
	CreatedAt      time.Time
	ModifiedAt     time.Time
	UserID         string  // UUID of user
	SubscriptionID string  // UUID of subscription
	TariffID       *string // nil until a tariff is chosen
	Status         AccountStatus
	ExpiresAt      *time.Time
	InvoiceID      *string // last invoice applied by a payment event
	Version        int64   // optimistic concurrency token
}

// AccountCreate carries the fields required to create an account.
type AccountCreate struct {
	UserID         string
	SubscriptionID string
	TariffID       *string
	Status         AccountStatus // defaults to pending
	ExpiresAt      *time.Time
	InvoiceID      *string
}

// NewAccount builds a fresh account from a create request.
func NewAccount(id string, in AccountCreate, now time.Time) (*Account, error) {
	if id == "" {
		return nil, domain.Invalid("account id is required")
	}
	if in.UserID == "" {
		return nil, domain.Invalid("user_id is required")
	}
	if in.SubscriptionID == "" {
		return nil, domain.Invalid("subscription_id is required")
	}
	status := in.Status
	if status == "" {
		status = AccountStatusPending
	}
	if !status.Valid() {
		return nil, domain.Invalid("unknown account status %q", status)
	}
	return &Account{
		ID:             id,
		CreatedAt:      now,
		ModifiedAt:     now,
		UserID:         in.UserID,
		SubscriptionID: in.SubscriptionID,
		TariffID:       in.TariffID,
		Status:         status,
		ExpiresAt:      in.ExpiresAt,
		InvoiceID:      in.InvoiceID,
		Version:        1,
	}, nil
}

// AccountPatch carries optional account changes; nil fields stay untouched.
type AccountPatch struct {
	UserID         *string
	SubscriptionID *string
	TariffID       *string
	Status         *AccountStatus
	ExpiresAt      *time.Time
	InvoiceID      *string
}

// TouchesTariff reports whether the patch may break the tariff/subscription pairing.
func (p AccountPatch) TouchesTariff() bool {
	return p.SubscriptionID != nil || p.TariffID != nil
}

// Apply returns a copy of a with the patch applied.
func (p AccountPatch) Apply(a Account) (Account, error) {
	if p.UserID != nil {
		if *p.UserID == "" {
			return a, domain.Invalid("user_id must not be empty")
		}
		a.UserID = *p.UserID
	}
	if p.SubscriptionID != nil {
		if *p.SubscriptionID == "" {
			return a, domain.Invalid("subscription_id must not be empty")
		}
		a.SubscriptionID = *p.SubscriptionID
	}
	if p.TariffID != nil {
		v := *p.TariffID
		a.TariffID = &v
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return a, domain.Invalid("unknown account status %q", *p.Status)
		}
		a.Status = *p.Status
	}
	if p.ExpiresAt != nil {
		v := *p.ExpiresAt
		a.ExpiresAt = &v
	}
	if p.InvoiceID != nil {
		v := *p.InvoiceID
		a.InvoiceID = &v
	}
	return a, nil
}

// AccountStatusEvent is an append-only audit record of an account's status.
type AccountStatusEvent struct {
	ID        string // UUID
	AccountID string
	CreatedAt time.Time
	ExpiresAt *time.Time
	Status    AccountStatus
}

// NewAccountStatusEvent snapshots the current status and expiry of a.
func NewAccountStatusEvent(id string, a *Account, now time.Time) *AccountStatusEvent {
	var exp *time.Time
	if a.ExpiresAt != nil {
		v := *a.ExpiresAt
		exp = &v
	}
	return &AccountStatusEvent{
		ID:        id,
		AccountID: a.ID,
		CreatedAt: now,
		ExpiresAt: exp,
		Status:    a.Status,
	}
}
