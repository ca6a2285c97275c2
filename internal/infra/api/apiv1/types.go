package apiv1

import (
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"subscription-api/internal/domain/model"
)

// ErrorModel is the body of every non-2xx response.
type ErrorModel struct {
	Detail string `json:"detail"`
}

// Webhook error codes returned with 400.
const (
	ErrorCodeAccountNotExists = "ACCOUNT_NOT_EXISTS"
	ErrorCodeTariffNotExists  = "TARIFF_NOT_EXISTS"
	ErrorCodeTariffMismatch   = "TARIFF_MISMATCH"
)

type Subscription struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type SubscriptionCreate struct {
	Name string `json:"name"`
}

type SubscriptionUpdate struct {
	Id   openapi_types.UUID `json:"id"`
	Name string             `json:"name"`
}

type Tariff struct {
	Id             string     `json:"id"`
	SubscriptionId string     `json:"subscription_id"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at"`
	Amount         int64      `json:"amount"`
	Currency       string     `json:"currency"`
	Duration       int64      `json:"duration"`
}

type TariffCreate struct {
	SubscriptionId openapi_types.UUID `json:"subscription_id"`
	ExpiresAt      *time.Time         `json:"expires_at,omitempty"`
	Amount         int64              `json:"amount"`
	Currency       string             `json:"currency,omitempty"`
	Duration       int64              `json:"duration"`
}

// TariffUpdate replaces the given fields of tariff Id.
type TariffUpdate struct {
	Id             openapi_types.UUID  `json:"id"`
	SubscriptionId *openapi_types.UUID `json:"subscription_id,omitempty"`
	ExpiresAt      *time.Time          `json:"expires_at,omitempty"`
	Amount         *int64              `json:"amount,omitempty"`
	Currency       *string             `json:"currency,omitempty"`
	Duration       *int64              `json:"duration,omitempty"`
}

type Account struct {
	Id             string     `json:"id"`
	CreatedAt      time.Time  `json:"created_at"`
	ModifiedAt     time.Time  `json:"modified_at"`
	UserId         string     `json:"user_id"`
	SubscriptionId string     `json:"subscription_id"`
	TariffId       *string    `json:"tariff_id"`
	Status         string     `json:"status"`
	ExpiresAt      *time.Time `json:"expires_at"`
	InvoiceId      *string    `json:"invoice_id"`
	Version        int64      `json:"version"`
}

type AccountCreate struct {
	UserId         openapi_types.UUID  `json:"user_id"`
	SubscriptionId openapi_types.UUID  `json:"subscription_id"`
	TariffId       *openapi_types.UUID `json:"tariff_id,omitempty"`
	Status         *string             `json:"status,omitempty"`
	ExpiresAt      *time.Time          `json:"expires_at,omitempty"`
}

// AccountUpdate patches account Id. When Version is set it must match the
// stored version.
type AccountUpdate struct {
	Id             openapi_types.UUID  `json:"id"`
	Version        *int64              `json:"version,omitempty"`
	UserId         *openapi_types.UUID `json:"user_id,omitempty"`
	SubscriptionId *openapi_types.UUID `json:"subscription_id,omitempty"`
	TariffId       *openapi_types.UUID `json:"tariff_id,omitempty"`
	Status         *string             `json:"status,omitempty"`
	ExpiresAt      *time.Time          `json:"expires_at,omitempty"`
}

type AccountStatusEvent struct {
	Id        string     `json:"id"`
	AccountId string     `json:"account_id"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at"`
	Status    string     `json:"status"`
}

type Invoice struct {
	Id         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
	UserId     string    `json:"user_id"`
	AccountId  string    `json:"account_id"`
	Status     string    `json:"status"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
}

type InvoiceCreate struct {
	AccountId openapi_types.UUID `json:"account_id"`
	TariffId  openapi_types.UUID `json:"tariff_id"`
}

func toSubscription(s *model.Subscription) Subscription {
	return Subscription{Id: s.ID, Name: s.Name, CreatedAt: s.CreatedAt}
}

func toTariff(t *model.Tariff) Tariff {
	return Tariff{
		Id:             t.ID,
		SubscriptionId: t.SubscriptionID,
		CreatedAt:      t.CreatedAt,
		ExpiresAt:      t.ExpiresAt,
		Amount:         t.Amount,
		Currency:       t.Currency,
		Duration:       t.Duration,
	}
}

func toAccount(a *model.Account) Account {
	return Account{
		Id:             a.ID,
		CreatedAt:      a.CreatedAt,
		ModifiedAt:     a.ModifiedAt,
		UserId:         a.UserID,
		SubscriptionId: a.SubscriptionID,
		TariffId:       a.TariffID,
		Status:         string(a.Status),
		ExpiresAt:      a.ExpiresAt,
		InvoiceId:      a.InvoiceID,
		Version:        a.Version,
	}
}

func toStatusEvent(e *model.AccountStatusEvent) AccountStatusEvent {
	return AccountStatusEvent{
		Id:        e.ID,
		AccountId: e.AccountID,
		CreatedAt: e.CreatedAt,
		ExpiresAt: e.ExpiresAt,
		Status:    string(e.Status),
	}
}

func toInvoice(i *model.Invoice) Invoice {
	return Invoice{
		Id:         i.ID,
		CreatedAt:  i.CreatedAt,
		ModifiedAt: i.ModifiedAt,
		UserId:     i.UserID,
		AccountId:  i.ServiceID,
		Status:     string(i.Status),
		Amount:     i.Amount,
		Currency:   i.Currency,
	}
}

func mapSlice[M any, D any](in []*M, conv func(*M) D) []D {
	out := make([]D, 0, len(in))
	for _, v := range in {
		out = append(out, conv(v))
	}
	return out
}

func uuidPtr(v *openapi_types.UUID) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}
