package model

import (
	"time"

	"subscription-api/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusOpen     PaymentStatus = "open"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusOverdue  PaymentStatus = "overdue"
	PaymentStatusCanceled PaymentStatus = "canceled"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch st := PaymentStatus(s); st {
	case PaymentStatusOpen, PaymentStatusPaid, PaymentStatusOverdue, PaymentStatusCanceled, PaymentStatusRefunded:
		return st, nil
	}
	return "", domain.Invalid("unknown payment status %q", s)
}

// TargetStatus maps a payment status onto the account status it drives.
// Only paid and refunded cause a transition.
func (s PaymentStatus) TargetStatus() (AccountStatus, bool) {
	switch s {
	case PaymentStatusPaid:
		return AccountStatusActive, true
	case PaymentStatusRefunded:
		return AccountStatusInactive, true
	}
	return "", false
}

// PaymentEvent is a billing webhook delivery.
type PaymentEvent struct {
	AccountID     string
	TariffID      string
	PaymentStatus PaymentStatus
	InvoiceID     string // optional; enables redelivery detection
}

// Invoice is a billing-service document for one payment.
type Invoice struct {
	ID         string        `json:"id"`
	CreatedAt  time.Time     `json:"created_at"`
	ModifiedAt time.Time     `json:"modified_at"`
	UserID     string        `json:"user_id"`
	ServiceID  string        `json:"service_id"` // account id the invoice pays for
	Status     PaymentStatus `json:"status"`
	Amount     int64         `json:"amount"`
	Currency   string        `json:"currency"`
}

// InvoiceRequest is what the billing service needs to issue an invoice.
type InvoiceRequest struct {
	UserID    string `json:"user_id"`
	ServiceID string `json:"service_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}
