package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"subscription-api/internal/domain"
	"subscription-api/internal/domain/model"
	"subscription-api/internal/domain/ports/adapter"
	"subscription-api/internal/domain/ports/repository"
	"subscription-api/internal/infra/metrics"
)

// PaymentApplier is satisfied by *usecase.AccountUseCase.
type PaymentApplier interface {
	ApplyPayment(ctx context.Context, ev model.PaymentEvent) (*model.Account, bool, error)
}

// PaymentReconciler periodically asks billing about accounts that chose a
// tariff but are still pending, and applies invoices that were paid while
// the webhook was lost.
type PaymentReconciler struct {
	accounts   repository.AccountRepository
	billing    adapter.BillingClient
	payments   PaymentApplier
	interval   time.Duration
	staleAfter time.Duration
	batch      int
	now        func() time.Time
	log        *zerolog.Logger
}

func NewPaymentReconciler(accounts repository.AccountRepository, billing adapter.BillingClient, payments PaymentApplier, interval, staleAfter time.Duration, batch int, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	if batch <= 0 {
		batch = 200
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{
		accounts:   accounts,
		billing:    billing,
		payments:   payments,
		interval:   interval,
		staleAfter: staleAfter,
		batch:      batch,
		now:        time.Now,
		log:        &l,
	}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("stale_after", w.staleAfter).Msg("Starting payment reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reconciler")
			return ctx.Err()
		case <-t.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs a single reconciliation pass and returns how many accounts changed.
func (w *PaymentReconciler) Tick(ctx context.Context) int {
	cutoff := w.now().Add(-w.staleAfter)
	pending, err := w.accounts.ListAwaitingPayment(ctx, repository.NoTX, cutoff, w.batch)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("payment reconciler: list pending accounts")
		}
		return 0
	}

	applied := 0
	for _, acc := range pending {
		if ctx.Err() != nil {
			break
		}
		if w.reconcile(ctx, acc) {
			applied++
		}
	}
	if applied > 0 {
		w.log.Info().Int("applied", applied).Int("checked", len(pending)).Msg("payment reconciler pass done")
	}
	return applied
}

func (w *PaymentReconciler) reconcile(ctx context.Context, acc *model.Account) bool {
	inv, err := w.billing.GetInvoiceByAccount(ctx, acc.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			w.log.Warn().Err(err).Str("account_id", acc.ID).Msg("payment reconciler: fetch invoice")
		}
		return false
	}
	if inv.Status != model.PaymentStatusPaid {
		return false
	}
	if acc.InvoiceID != nil && *acc.InvoiceID == inv.ID {
		return false
	}

	_, changed, err := w.payments.ApplyPayment(ctx, model.PaymentEvent{
		AccountID:     acc.ID,
		TariffID:      *acc.TariffID,
		PaymentStatus: model.PaymentStatusPaid,
		InvoiceID:     inv.ID,
	})
	if err != nil {
		metrics.IncPaymentEvent(model.PaymentStatusPaid, "error")
		w.log.Warn().Err(err).Str("account_id", acc.ID).Str("invoice_id", inv.ID).Msg("payment reconciler: apply payment")
		return false
	}
	if changed {
		metrics.IncPaymentEvent(model.PaymentStatusPaid, "reconciled")
		w.log.Info().Str("account_id", acc.ID).Str("invoice_id", inv.ID).Msg("payment reconciled")
	}
	return changed
}
