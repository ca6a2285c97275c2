//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subscription-api/internal/domain"
	"subscription-api/internal/domain/model"
	"subscription-api/internal/usecase"
)

func TestPaymentUseCase(t *testing.T) {
	ctx := context.Background()

	setup := func() (*fixture, *MockBilling, *usecase.PaymentUseCase) {
		f := newFixture()
		f.seedPaidScenario(model.AccountStatusPending, nil)
		billing := &MockBilling{}
		return f, billing, usecase.NewPaymentUseCase(f.accountUC(), f.tariffs, billing, newTestLogger())
	}

	t.Run("should issue an invoice and record the tariff on the account", func(t *testing.T) {
		f, billing, uc := setup()

		inv, acc, err := uc.CreateInvoice(ctx, "A", "P")
		require.NoError(t, err)
		assert.Equal(t, "inv-1", inv.ID)
		require.Len(t, billing.Requests, 1)
		assert.Equal(t, model.InvoiceRequest{UserID: "U", ServiceID: "A", Amount: 19900, Currency: "RUB"}, billing.Requests[0])

		require.NotNil(t, acc.TariffID)
		assert.Equal(t, "P", *acc.TariffID)
		assert.Nil(t, acc.InvoiceID)
		assert.Equal(t, model.AccountStatusPending, acc.Status)
		assert.Nil(t, f.store.account("A").InvoiceID)
		assert.Len(t, f.store.eventsFor("A"), 1)
	})

	t.Run("should check the tariff before calling billing", func(t *testing.T) {
		f, billing, uc := setup()
		f.seedSubscription("S2", "premium")
		f.seedTariff("Q", "S2", thirtyDays)

		_, _, err := uc.CreateInvoice(ctx, "A", "Q")
		require.ErrorIs(t, err, domain.ErrTariffMismatch)
		assert.Empty(t, billing.Requests)

		_, _, err = uc.CreateInvoice(ctx, "missing", "P")
		require.ErrorIs(t, err, domain.ErrAccountNotFound)
	})

	t.Run("should wrap billing failures", func(t *testing.T) {
		_, billing, uc := setup()
		billing.CreateInvoiceFunc = func(context.Context, model.InvoiceRequest) (*model.Invoice, error) {
			return nil, errors.New("connection reset")
		}
		_, _, err := uc.CreateInvoice(ctx, "A", "P")
		require.ErrorIs(t, err, domain.ErrExternalService)
	})

	t.Run("should retry recording the tariff when the account changes meanwhile", func(t *testing.T) {
		f := newFixture()
		f.seedPaidScenario(model.AccountStatusPending, nil)
		f.seedTariff("P2", "S", thirtyDays)
		billing := &MockBilling{}
		webhook := f.accountUC()
		limiter := &countingLimiter{onAllow: func() {
			_, _, err := webhook.ApplyPayment(ctx, model.PaymentEvent{AccountID: "A", TariffID: "P", PaymentStatus: model.PaymentStatusPaid, InvoiceID: "inv-0"})
			require.NoError(t, err)
		}}
		uc := usecase.NewPaymentUseCase(f.accountUC(), f.tariffs, billing, newTestLogger(),
			usecase.WithInvoiceRateLimit(limiter, 5, time.Hour))

		inv, acc, err := uc.CreateInvoice(ctx, "A", "P2")
		require.NoError(t, err)
		require.NotNil(t, inv)
		require.Len(t, billing.Requests, 1)

		stored := f.store.account("A")
		require.NotNil(t, stored.TariffID)
		assert.Equal(t, "P2", *stored.TariffID)
		require.NotNil(t, stored.InvoiceID)
		assert.Equal(t, "inv-0", *stored.InvoiceID)
		assert.Equal(t, model.AccountStatusActive, stored.Status)
		assert.Equal(t, int64(3), stored.Version)
		assert.Equal(t, stored.Version, acc.Version)
	})

	t.Run("should not bill when the tariff cannot be recorded", func(t *testing.T) {
		f, billing, uc := setup()
		f.accounts.UpdateFunc = func(*model.Account) error {
			return domain.ErrVersionConflict
		}

		_, _, err := uc.CreateInvoice(ctx, "A", "P")
		require.ErrorIs(t, err, domain.ErrVersionConflict)
		assert.Empty(t, billing.Requests)
	})

	t.Run("should refuse invoices past the per-user limit", func(t *testing.T) {
		f := newFixture()
		f.seedPaidScenario(model.AccountStatusPending, nil)
		billing := &MockBilling{}
		limiter := &countingLimiter{}
		uc := usecase.NewPaymentUseCase(f.accountUC(), f.tariffs, billing, newTestLogger(),
			usecase.WithInvoiceRateLimit(limiter, 2, time.Hour))

		for i := 0; i < 2; i++ {
			_, _, err := uc.CreateInvoice(ctx, "A", "P")
			require.NoError(t, err)
		}
		_, _, err := uc.CreateInvoice(ctx, "A", "P")
		require.ErrorIs(t, err, domain.ErrRateLimited)
		assert.Len(t, billing.Requests, 2)
		assert.Equal(t, 3, limiter.hits["invoice:U"])
	})

	t.Run("should invoice anyway when the limiter fails", func(t *testing.T) {
		f := newFixture()
		f.seedPaidScenario(model.AccountStatusPending, nil)
		uc := usecase.NewPaymentUseCase(f.accountUC(), f.tariffs, &MockBilling{}, newTestLogger(),
			usecase.WithInvoiceRateLimit(&countingLimiter{err: errors.New("redis down")}, 1, time.Hour))

		_, _, err := uc.CreateInvoice(ctx, "A", "P")
		require.NoError(t, err)
	})

	t.Run("should fetch the invoice by account", func(t *testing.T) {
		_, _, uc := setup()
		inv, err := uc.GetInvoice(ctx, "A")
		require.NoError(t, err)
		assert.Equal(t, "A", inv.ServiceID)
	})

	t.Run("should refund only the last applied invoice", func(t *testing.T) {
		f, billing, uc := setup()
		_, _, err := uc.CreateInvoice(ctx, "A", "P")
		require.NoError(t, err)

		assert.Nil(t, f.store.account("A").InvoiceID)
		_, err = uc.CreateRefund(ctx, "A", "inv-1")
		require.ErrorIs(t, err, domain.ErrValidation)

		_, _, err = f.accountUC().ApplyPayment(ctx, model.PaymentEvent{AccountID: "A", TariffID: "P", PaymentStatus: model.PaymentStatusPaid, InvoiceID: "inv-1"})
		require.NoError(t, err)
		require.NotNil(t, f.store.account("A").InvoiceID)
		assert.Equal(t, "inv-1", *f.store.account("A").InvoiceID)

		_, err = uc.CreateRefund(ctx, "A", "other")
		require.ErrorIs(t, err, domain.ErrValidation)
		assert.Empty(t, billing.Refunds)

		inv, err := uc.CreateRefund(ctx, "A", "inv-1")
		require.NoError(t, err)
		assert.Equal(t, model.PaymentStatusRefunded, inv.Status)
		assert.Equal(t, []string{"inv-1"}, billing.Refunds)
	})
}

type countingLimiter struct {
	hits    map[string]int
	err     error
	onAllow func()
}

func (l *countingLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	if l.onAllow != nil {
		l.onAllow()
	}
	if l.err != nil {
		return false, l.err
	}
	if l.hits == nil {
		l.hits = map[string]int{}
	}
	l.hits[key]++
	return l.hits[key] <= limit, nil
}
