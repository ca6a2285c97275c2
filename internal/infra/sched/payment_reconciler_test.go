package sched

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subscription-api/internal/domain"
	"subscription-api/internal/domain/model"
	"subscription-api/internal/domain/ports/adapter"
	"subscription-api/internal/domain/ports/repository"
)

type awaitingRepo struct {
	repository.AccountRepository
	accounts []*model.Account
	cutoff   time.Time
	err      error
}

func (r *awaitingRepo) ListAwaitingPayment(_ context.Context, _ repository.Tx, before time.Time, _ int) ([]*model.Account, error) {
	r.cutoff = before
	return r.accounts, r.err
}

type invoiceBilling struct {
	adapter.BillingClient
	byAccount map[string]*model.Invoice
}

func (b *invoiceBilling) GetInvoiceByAccount(_ context.Context, accountID string) (*model.Invoice, error) {
	inv, ok := b.byAccount[accountID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return inv, nil
}

type recordingApplier struct {
	events []model.PaymentEvent
	err    error
}

func (a *recordingApplier) ApplyPayment(_ context.Context, ev model.PaymentEvent) (*model.Account, bool, error) {
	if a.err != nil {
		return nil, false, a.err
	}
	a.events = append(a.events, ev)
	return &model.Account{ID: ev.AccountID}, true, nil
}

func strPtr(s string) *string { return &s }

func TestPaymentReconciler_Tick(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	newWorker := func(repo *awaitingRepo, billing *invoiceBilling, applier *recordingApplier) *PaymentReconciler {
		w := NewPaymentReconciler(repo, billing, applier, time.Minute, 15*time.Minute, 50, &logger)
		w.now = func() time.Time { return now }
		return w
	}

	t.Run("should apply paid invoices the account has not seen", func(t *testing.T) {
		repo := &awaitingRepo{accounts: []*model.Account{
			{ID: "paid", TariffID: strPtr("T1"), Status: model.AccountStatusPending},
			{ID: "open", TariffID: strPtr("T1"), Status: model.AccountStatusPending},
			{ID: "seen", TariffID: strPtr("T2"), Status: model.AccountStatusPending, InvoiceID: strPtr("inv-seen")},
			{ID: "none", TariffID: strPtr("T1"), Status: model.AccountStatusPending},
		}}
		billing := &invoiceBilling{byAccount: map[string]*model.Invoice{
			"paid": {ID: "inv-paid", Status: model.PaymentStatusPaid},
			"open": {ID: "inv-open", Status: model.PaymentStatusOpen},
			"seen": {ID: "inv-seen", Status: model.PaymentStatusPaid},
		}}
		applier := &recordingApplier{}

		n := newWorker(repo, billing, applier).Tick(ctx)

		assert.Equal(t, 1, n)
		assert.Equal(t, now.Add(-15*time.Minute), repo.cutoff)
		require.Len(t, applier.events, 1)
		assert.Equal(t, model.PaymentEvent{
			AccountID:     "paid",
			TariffID:      "T1",
			PaymentStatus: model.PaymentStatusPaid,
			InvoiceID:     "inv-paid",
		}, applier.events[0])
	})

	t.Run("should keep going when applying fails", func(t *testing.T) {
		repo := &awaitingRepo{accounts: []*model.Account{{ID: "paid", TariffID: strPtr("T1")}}}
		billing := &invoiceBilling{byAccount: map[string]*model.Invoice{
			"paid": {ID: "inv-paid", Status: model.PaymentStatusPaid},
		}}
		applier := &recordingApplier{err: domain.ErrTariffMismatch}

		assert.Equal(t, 0, newWorker(repo, billing, applier).Tick(ctx))
	})

	t.Run("should do nothing when listing fails", func(t *testing.T) {
		repo := &awaitingRepo{err: errors.New("db down")}
		applier := &recordingApplier{}

		assert.Equal(t, 0, newWorker(repo, &invoiceBilling{}, applier).Tick(ctx))
		assert.Empty(t, applier.events)
	})
}

func TestPaymentReconciler_RunStopsOnCancel(t *testing.T) {
	logger := zerolog.Nop()
	w := NewPaymentReconciler(&awaitingRepo{}, &invoiceBilling{}, &recordingApplier{}, time.Millisecond, 0, 0, &logger)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop")
	}
}
