package usecase

import (
	"context"
	"time"

	"subscription-api/internal/domain/model"
)

// SubscriptionManager is what the API layer needs from subscription plans.
type SubscriptionManager interface {
	Create(ctx context.Context, name string) (*model.Subscription, error)
	Get(ctx context.Context, id string) (*model.Subscription, error)
	GetByName(ctx context.Context, name string) (*model.Subscription, error)
	Update(ctx context.Context, name string, existing *model.Subscription) (*model.Subscription, error)
	Delete(ctx context.Context, existing *model.Subscription) (*model.Subscription, error)
	Search(ctx context.Context, page model.Page, filter string) ([]*model.Subscription, error)
}

type TariffManager interface {
	Create(ctx context.Context, in model.TariffCreate) (*model.Tariff, error)
	Get(ctx context.Context, id string) (*model.Tariff, error)
	GetBySubscription(ctx context.Context, subscriptionID string, at time.Time) (*model.Tariff, error)
	Update(ctx context.Context, patch model.TariffPatch, existing *model.Tariff) (*model.Tariff, error)
	Delete(ctx context.Context, existing *model.Tariff) (*model.Tariff, error)
	Search(ctx context.Context, page model.Page, filter string) ([]*model.Tariff, error)
}

// AccountManager covers account CRUD and the payment-driven lifecycle.
type AccountManager interface {
	Create(ctx context.Context, in model.AccountCreate) (*model.Account, error)
	Get(ctx context.Context, id string) (*model.Account, error)
	GetByUserID(ctx context.Context, userID string) ([]*model.Account, error)
	Search(ctx context.Context, page model.Page, filter string) ([]*model.Account, error)
	History(ctx context.Context, accountID string) ([]*model.AccountStatusEvent, error)
	Update(ctx context.Context, patch model.AccountPatch, existing *model.Account) (*model.Account, error)
	Delete(ctx context.Context, existing *model.Account) (*model.Account, error)
	ApplyPayment(ctx context.Context, ev model.PaymentEvent) (*model.Account, bool, error)
}

type PaymentManager interface {
	CreateInvoice(ctx context.Context, accountID, tariffID string) (*model.Invoice, *model.Account, error)
	GetInvoice(ctx context.Context, accountID string) (*model.Invoice, error)
	CreateRefund(ctx context.Context, accountID, invoiceID string) (*model.Invoice, error)
}
