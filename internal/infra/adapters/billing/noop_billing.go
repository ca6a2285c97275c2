package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"subscription-api/internal/domain"
	"subscription-api/internal/domain/model"
	"subscription-api/internal/domain/ports/adapter"
)

var _ adapter.BillingClient = (*NoopClient)(nil)

// NoopClient is an in-memory billing service for development and tests.
// Invoices are never paid on their own; tests drive payments through the webhook.
type NoopClient struct {
	mu        sync.Mutex
	invoices  map[string]*model.Invoice
	byService map[string]string // service id -> latest invoice id
}

func NewNoopClient() *NoopClient {
	return &NoopClient{
		invoices:  make(map[string]*model.Invoice),
		byService: make(map[string]string),
	}
}

func (c *NoopClient) CreateInvoice(ctx context.Context, req model.InvoiceRequest) (*model.Invoice, error) {
	if req.ServiceID == "" || req.UserID == "" {
		return nil, domain.Invalid("invoice needs user_id and service_id")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	inv := &model.Invoice{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		ModifiedAt: now,
		UserID:     req.UserID,
		ServiceID:  req.ServiceID,
		Status:     model.PaymentStatusOpen,
		Amount:     req.Amount,
		Currency:   req.Currency,
	}
	c.invoices[inv.ID] = inv
	c.byService[req.ServiceID] = inv.ID
	cp := *inv
	return &cp, nil
}

func (c *NoopClient) GetInvoiceByAccount(ctx context.Context, accountID string) (*model.Invoice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.byService[accountID]
	if !ok {
		return nil, fmt.Errorf("invoice for account %s: %w", accountID, domain.ErrNotFound)
	}
	cp := *c.invoices[id]
	return &cp, nil
}

func (c *NoopClient) CreateRefund(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inv, ok := c.invoices[invoiceID]
	if !ok {
		return nil, fmt.Errorf("invoice %s: %w", invoiceID, domain.ErrNotFound)
	}
	inv.Status = model.PaymentStatusRefunded
	inv.ModifiedAt = time.Now()
	cp := *inv
	return &cp, nil
}
