package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"subscription-api/internal/domain"
	"subscription-api/internal/domain/model"
	"subscription-api/internal/domain/ports/repository"
	"subscription-api/internal/infra/logging"
)

const defaultLockTTL = 10 * time.Second

// AccountUseCase owns the account lifecycle: CRUD with an audit trail and
// the payment-driven status/expiry transitions.
type AccountUseCase struct {
	accounts repository.AccountRepository
	statuses repository.AccountStatusRepository
	tariffs  repository.TariffRepository
	subs     repository.SubscriptionRepository
	tm       repository.TransactionManager

	locker  repository.Locker
	lockTTL time.Duration
	hooks   HookList[model.Account]
	now     func() time.Time
	newID   func() string
	log     *zerolog.Logger
}

type AccountOption func(*AccountUseCase)

// WithClock overrides the time source used for expiry computation and timestamps.
func WithClock(now func() time.Time) AccountOption {
	return func(uc *AccountUseCase) { uc.now = now }
}

// WithAccountHooks registers lifecycle observers.
func WithAccountHooks(hooks ...Hooks[model.Account]) AccountOption {
	return func(uc *AccountUseCase) { uc.hooks = append(uc.hooks, hooks...) }
}

// WithLocker serializes payment processing per account across processes.
func WithLocker(l repository.Locker, ttl time.Duration) AccountOption {
	return func(uc *AccountUseCase) {
		uc.locker = l
		if ttl > 0 {
			uc.lockTTL = ttl
		}
	}
}

// WithIDGenerator overrides UUID generation; used by tests.
func WithIDGenerator(gen func() string) AccountOption {
	return func(uc *AccountUseCase) { uc.newID = gen }
}

func NewAccountUseCase(
	accounts repository.AccountRepository,
	statuses repository.AccountStatusRepository,
	tariffs repository.TariffRepository,
	subs repository.SubscriptionRepository,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
	opts ...AccountOption,
) *AccountUseCase {
	l := logger.With().Str("component", "AccountUseCase").Logger()
	uc := &AccountUseCase{
		accounts: accounts,
		statuses: statuses,
		tariffs:  tariffs,
		subs:     subs,
		tm:       tm,
		lockTTL:  defaultLockTTL,
		now:      time.Now,
		newID:    uuid.NewString,
		log:      &l,
	}
	for _, o := range opts {
		o(uc)
	}
	return uc
}

// CalculateExpiresAt computes the expiry for an account moving to newStatus.
// Rules:
//   - active: extend from the current expiry by the tariff duration, even if that
//     expiry is in the past. A missing expiry extends from now.
//   - any other status: now plus the tariff duration.
func (uc *AccountUseCase) CalculateExpiresAt(acc *model.Account, tariff *model.Tariff, newStatus model.AccountStatus) time.Time {
	now := uc.now()
	if newStatus == model.AccountStatusActive {
		base := now
		if acc.ExpiresAt != nil {
			base = *acc.ExpiresAt
		}
		return base.Add(tariff.Period())
	}
	return now.Add(tariff.Period())
}

func (uc *AccountUseCase) Get(ctx context.Context, id string) (*model.Account, error) {
	acc, err := uc.accounts.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, notFoundAs(err, domain.ErrAccountNotFound)
	}
	return acc, nil
}

func (uc *AccountUseCase) GetByUserID(ctx context.Context, userID string) ([]*model.Account, error) {
	out, err := uc.accounts.ListByUser(ctx, repository.NoTX, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return []*model.Account{}, nil
		}
		return nil, err
	}
	if out == nil {
		out = []*model.Account{}
	}
	return out, nil
}

// Search lists accounts page by page; a non-empty filter must be an account status.
func (uc *AccountUseCase) Search(ctx context.Context, page model.Page, filter string) ([]*model.Account, error) {
	if filter != "" {
		if _, err := model.ParseAccountStatus(filter); err != nil {
			return nil, err
		}
	}
	out, err := uc.accounts.Search(ctx, repository.NoTX, page.Normalize(), filter)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if out == nil {
		out = []*model.Account{}
	}
	return out, nil
}

// History returns the status audit trail of an account, oldest first.
func (uc *AccountUseCase) History(ctx context.Context, accountID string) ([]*model.AccountStatusEvent, error) {
	if _, err := uc.Get(ctx, accountID); err != nil {
		return nil, err
	}
	out, err := uc.statuses.ListByAccount(ctx, repository.NoTX, accountID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if out == nil {
		out = []*model.AccountStatusEvent{}
	}
	return out, nil
}

// Create persists a new account together with its first status event.
func (uc *AccountUseCase) Create(ctx context.Context, in model.AccountCreate) (*model.Account, error) {
	defer logging.TraceDuration(uc.log, "AccountUseCase.Create")()

	now := uc.now()
	acc, err := model.NewAccount(uc.newID(), in, now)
	if err != nil {
		return nil, err
	}

	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.ensurePairing(ctx, tx, acc.SubscriptionID, acc.TariffID); err != nil {
			return err
		}
		if err := uc.accounts.Create(ctx, tx, acc); err != nil {
			return err
		}
		return uc.statuses.Append(ctx, tx, model.NewAccountStatusEvent(uc.newID(), acc, now))
	})
	if err != nil {
		return nil, err
	}

	if err := uc.hooks.AfterCreate(ctx, acc); err != nil {
		uc.log.Warn().Err(err).Str("account_id", acc.ID).Msg("after create hooks failed")
	}
	return acc, nil
}

// Update applies patch on top of existing. The write only succeeds if the
// stored row still has existing.Version.
func (uc *AccountUseCase) Update(ctx context.Context, patch model.AccountPatch, existing *model.Account) (*model.Account, error) {
	defer logging.TraceDuration(uc.log, "AccountUseCase.Update")()

	if existing == nil {
		return nil, domain.Invalid("account is required")
	}
	updated, err := patch.Apply(*existing)
	if err != nil {
		return nil, err
	}

	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if patch.TouchesTariff() {
			if err := uc.ensurePairing(ctx, tx, updated.SubscriptionID, updated.TariffID); err != nil {
				return err
			}
		}
		return uc.persist(ctx, tx, &updated)
	})
	if err != nil {
		return nil, err
	}

	if err := uc.hooks.AfterUpdate(ctx, existing, &updated); err != nil {
		uc.log.Warn().Err(err).Str("account_id", updated.ID).Msg("after update hooks failed")
	}
	return &updated, nil
}

// Delete removes the account and returns its last snapshot.
func (uc *AccountUseCase) Delete(ctx context.Context, existing *model.Account) (*model.Account, error) {
	if existing == nil {
		return nil, domain.Invalid("account is required")
	}
	if err := uc.hooks.BeforeDelete(ctx, existing); err != nil {
		return nil, err
	}
	if err := uc.accounts.Delete(ctx, repository.NoTX, existing.ID); err != nil {
		return nil, notFoundAs(err, domain.ErrAccountNotFound)
	}
	if err := uc.hooks.AfterDelete(ctx, existing); err != nil {
		uc.log.Warn().Err(err).Str("account_id", existing.ID).Msg("after delete hooks failed")
	}
	return existing, nil
}

// ApplyPayment processes a billing webhook delivery.
// Rules:
//   - account and tariff must exist and belong to the same subscription,
//     checked before anything is written.
//   - paid moves the account to active, refunded to inactive; every other
//     payment status leaves the account untouched.
//   - a redelivery for the invoice the account already reflects is a no-op.
//
// The returned flag reports whether the account was changed.
func (uc *AccountUseCase) ApplyPayment(ctx context.Context, ev model.PaymentEvent) (*model.Account, bool, error) {
	defer logging.TraceDuration(uc.log, "AccountUseCase.ApplyPayment")()

	if ev.AccountID == "" {
		return nil, false, domain.Invalid("account_id is required")
	}
	if ev.TariffID == "" {
		return nil, false, domain.Invalid("tariff_id is required")
	}
	if _, err := model.ParsePaymentStatus(string(ev.PaymentStatus)); err != nil {
		return nil, false, err
	}

	if uc.locker != nil {
		key := "lock:account:" + ev.AccountID
		token, err := uc.locker.TryLock(ctx, key, uc.lockTTL)
		if err != nil {
			return nil, false, err
		}
		defer func() {
			if err := uc.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
				uc.log.Warn().Err(err).Str("account_id", ev.AccountID).Msg("unlock failed")
			}
		}()
	}

	var (
		before, after model.Account
		applied       bool
	)
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		acc, err := uc.accounts.FindByID(ctx, tx, ev.AccountID)
		if err != nil {
			return notFoundAs(err, domain.ErrAccountNotFound)
		}
		tariff, err := uc.tariffs.FindByID(ctx, tx, ev.TariffID)
		if err != nil {
			return notFoundAs(err, domain.ErrTariffNotFound)
		}
		if !tariff.BelongsTo(acc.SubscriptionID) {
			return domain.ErrTariffMismatch
		}
		before, after = *acc, *acc

		target, ok := ev.PaymentStatus.TargetStatus()
		if !ok {
			return nil
		}
		if ev.InvoiceID != "" && acc.InvoiceID != nil && *acc.InvoiceID == ev.InvoiceID && acc.Status == target {
			return nil
		}

		expiresAt := uc.CalculateExpiresAt(acc, tariff, target)
		after.Status = target
		after.ExpiresAt = &expiresAt
		if ev.InvoiceID != "" {
			inv := ev.InvoiceID
			after.InvoiceID = &inv
		}
		if err := uc.persist(ctx, tx, &after); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	l := logging.With(ctx, uc.log)
	if !applied {
		l.Info().
			Str("account_id", ev.AccountID).
			Str("payment_status", string(ev.PaymentStatus)).
			Msg("payment event ignored")
		return &after, false, nil
	}

	l.Info().
		Str("account_id", after.ID).
		Str("from", string(before.Status)).
		Str("to", string(after.Status)).
		Time("expires_at", *after.ExpiresAt).
		Msg("payment event applied")
	if err := uc.hooks.AfterUpdate(ctx, &before, &after); err != nil {
		uc.log.Warn().Err(err).Str("account_id", after.ID).Msg("after update hooks failed")
	}
	return &after, true, nil
}

// persist writes acc with the version check and appends its status event.
func (uc *AccountUseCase) persist(ctx context.Context, tx repository.Tx, acc *model.Account) error {
	now := uc.now()
	acc.ModifiedAt = now
	if err := uc.accounts.Update(ctx, tx, acc); err != nil {
		return notFoundAs(err, domain.ErrAccountNotFound)
	}
	return uc.statuses.Append(ctx, tx, model.NewAccountStatusEvent(uc.newID(), acc, now))
}

// ensurePairing verifies the referenced subscription and tariff exist and match.
func (uc *AccountUseCase) ensurePairing(ctx context.Context, tx repository.Tx, subscriptionID string, tariffID *string) error {
	if _, err := uc.subs.FindByID(ctx, tx, subscriptionID); err != nil {
		return notFoundAs(err, domain.ErrSubscriptionNotFound)
	}
	if tariffID == nil {
		return nil
	}
	tariff, err := uc.tariffs.FindByID(ctx, tx, *tariffID)
	if err != nil {
		return notFoundAs(err, domain.ErrTariffNotFound)
	}
	if !tariff.BelongsTo(subscriptionID) {
		return domain.ErrTariffMismatch
	}
	return nil
}

// notFoundAs replaces a generic not-found error with an entity specific one.
func notFoundAs(err, target error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return target
	}
	return err
}
