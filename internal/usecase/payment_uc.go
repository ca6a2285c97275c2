package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"subscription-api/internal/domain"
	"subscription-api/internal/domain/model"
	"subscription-api/internal/domain/ports/adapter"
	"subscription-api/internal/domain/ports/repository"
	"subscription-api/internal/infra/logging"
)

// PaymentUseCase issues invoices and refunds through the billing service.
// Account state only changes when the billing webhook confirms the payment.
type PaymentUseCase struct {
	accounts *AccountUseCase
	tariffs  repository.TariffRepository
	billing  adapter.BillingClient
	log      *zerolog.Logger

	limiter      repository.RateLimiter
	invoiceLimit int
	window       time.Duration
}

type PaymentOption func(*PaymentUseCase)

// WithInvoiceRateLimit caps invoices per user per window. A non-positive
// limit leaves invoicing unlimited.
func WithInvoiceRateLimit(l repository.RateLimiter, limit int, window time.Duration) PaymentOption {
	return func(uc *PaymentUseCase) {
		if limit > 0 {
			uc.limiter, uc.invoiceLimit, uc.window = l, limit, window
		}
	}
}

func NewPaymentUseCase(accounts *AccountUseCase, tariffs repository.TariffRepository, billing adapter.BillingClient, logger *zerolog.Logger, opts ...PaymentOption) *PaymentUseCase {
	l := logger.With().Str("component", "PaymentUseCase").Logger()
	uc := &PaymentUseCase{accounts: accounts, tariffs: tariffs, billing: billing, log: &l}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// CreateInvoice records the chosen tariff on the account and then bills it.
// The tariff is stored first so a version conflict never leaves an invoice
// behind that the account does not point at. The invoice id is only stored
// once the payment webhook applies it.
func (uc *PaymentUseCase) CreateInvoice(ctx context.Context, accountID, tariffID string) (*model.Invoice, *model.Account, error) {
	defer logging.TraceDuration(uc.log, "PaymentUseCase.CreateInvoice")()

	acc, err := uc.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	tariff, err := uc.tariffs.FindByID(ctx, repository.NoTX, tariffID)
	if err != nil {
		return nil, nil, notFoundAs(err, domain.ErrTariffNotFound)
	}
	if !tariff.BelongsTo(acc.SubscriptionID) {
		return nil, nil, domain.ErrTariffMismatch
	}
	if uc.limiter != nil {
		ok, err := uc.limiter.Allow(ctx, "invoice:"+acc.UserID, uc.invoiceLimit, uc.window)
		if err != nil {
			logging.With(ctx, uc.log).Warn().Err(err).Msg("invoice rate limiter unavailable")
		} else if !ok {
			return nil, nil, domain.ErrRateLimited
		}
	}

	updated, err := uc.recordTariff(ctx, acc, tariff)
	if err != nil {
		return nil, nil, err
	}

	inv, err := uc.billing.CreateInvoice(ctx, model.InvoiceRequest{
		UserID:    updated.UserID,
		ServiceID: updated.ID,
		Amount:    tariff.Amount,
		Currency:  tariff.Currency,
	})
	if err != nil {
		return nil, nil, billingError(err)
	}
	return inv, updated, nil
}

// recordTariff stores tariff on acc. A concurrent write (usually a payment
// webhook) bumps the version, so the account is re-read and the write is
// retried once.
func (uc *PaymentUseCase) recordTariff(ctx context.Context, acc *model.Account, tariff *model.Tariff) (*model.Account, error) {
	patch := model.AccountPatch{TariffID: &tariff.ID}
	updated, err := uc.accounts.Update(ctx, patch, acc)
	if !errors.Is(err, domain.ErrVersionConflict) {
		return updated, err
	}

	logging.With(ctx, uc.log).Debug().Str("account_id", acc.ID).Msg("account changed while invoicing, retrying")
	fresh, err := uc.accounts.Get(ctx, acc.ID)
	if err != nil {
		return nil, err
	}
	if !tariff.BelongsTo(fresh.SubscriptionID) {
		return nil, domain.ErrTariffMismatch
	}
	return uc.accounts.Update(ctx, patch, fresh)
}

// GetInvoice returns the latest invoice the billing service holds for the account.
func (uc *PaymentUseCase) GetInvoice(ctx context.Context, accountID string) (*model.Invoice, error) {
	acc, err := uc.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	inv, err := uc.billing.GetInvoiceByAccount(ctx, acc.ID)
	if err != nil {
		return nil, billingError(err)
	}
	return inv, nil
}

// CreateRefund asks the billing service to refund the last invoice applied to the account.
func (uc *PaymentUseCase) CreateRefund(ctx context.Context, accountID, invoiceID string) (*model.Invoice, error) {
	acc, err := uc.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acc.InvoiceID == nil || *acc.InvoiceID != invoiceID {
		return nil, domain.Invalid("invoice %s is not the current invoice of account %s", invoiceID, accountID)
	}
	inv, err := uc.billing.CreateRefund(ctx, invoiceID)
	if err != nil {
		return nil, billingError(err)
	}
	return inv, nil
}

func billingError(err error) error {
	if errors.Is(err, domain.ErrExternalService) || errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return domain.External("billing", err)
}
