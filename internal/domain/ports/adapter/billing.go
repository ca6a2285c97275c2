package adapter

import (
	"context"

	"subscription-api/internal/domain/model"
)

// BillingClient is the port to the external billing service.
// Implementations own retries; callers treat every call as a single attempt.
type BillingClient interface {
	CreateInvoice(ctx context.Context, req model.InvoiceRequest) (*model.Invoice, error)
	GetInvoiceByAccount(ctx context.Context, accountID string) (*model.Invoice, error)
	CreateRefund(ctx context.Context, invoiceID string) (*model.Invoice, error)
}
