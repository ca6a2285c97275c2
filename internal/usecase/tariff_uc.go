package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"subscription-api/internal/domain"
	"subscription-api/internal/domain/model"
	"subscription-api/internal/domain/ports/repository"
)

// TariffUseCase manages the price/duration tiers of subscriptions.
type TariffUseCase struct {
	tariffs  repository.TariffRepository
	subs     repository.SubscriptionRepository
	accounts repository.AccountRepository
	tm       repository.TransactionManager
	hooks    HookList[model.Tariff]
	log      *zerolog.Logger
}

func NewTariffUseCase(
	tariffs repository.TariffRepository,
	subs repository.SubscriptionRepository,
	accounts repository.AccountRepository,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
	hooks ...Hooks[model.Tariff],
) *TariffUseCase {
	l := logger.With().Str("component", "TariffUseCase").Logger()
	return &TariffUseCase{tariffs: tariffs, subs: subs, accounts: accounts, tm: tm, hooks: hooks, log: &l}
}

func (uc *TariffUseCase) Create(ctx context.Context, in model.TariffCreate) (*model.Tariff, error) {
	t := &model.Tariff{
		ID:             uuid.NewString(),
		SubscriptionID: in.SubscriptionID,
		CreatedAt:      time.Now(),
		ExpiresAt:      in.ExpiresAt,
		Amount:         in.Amount,
		Currency:       strings.ToUpper(in.Currency),
		Duration:       in.Duration,
	}
	if t.Currency == "" {
		t.Currency = model.DefaultCurrency
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if _, err := uc.subs.FindByID(ctx, repository.NoTX, t.SubscriptionID); err != nil {
		return nil, notFoundAs(err, domain.ErrSubscriptionNotFound)
	}
	if err := uc.tariffs.Create(ctx, repository.NoTX, t); err != nil {
		return nil, err
	}
	if err := uc.hooks.AfterCreate(ctx, t); err != nil {
		uc.log.Warn().Err(err).Str("tariff_id", t.ID).Msg("after create hooks failed")
	}
	return t, nil
}

func (uc *TariffUseCase) Get(ctx context.Context, id string) (*model.Tariff, error) {
	t, err := uc.tariffs.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, notFoundAs(err, domain.ErrTariffNotFound)
	}
	return t, nil
}

// GetBySubscription returns the current tariff of a subscription.
// Tariffs are not versioned by date yet, so at is accepted but not used
// and the most recently created tariff is returned.
func (uc *TariffUseCase) GetBySubscription(ctx context.Context, subscriptionID string, at time.Time) (*model.Tariff, error) {
	_ = at
	t, err := uc.tariffs.FindCurrentBySubscription(ctx, repository.NoTX, subscriptionID)
	if err != nil {
		return nil, notFoundAs(err, domain.ErrTariffNotFound)
	}
	return t, nil
}

func (uc *TariffUseCase) Update(ctx context.Context, patch model.TariffPatch, existing *model.Tariff) (*model.Tariff, error) {
	if existing == nil {
		return nil, domain.Invalid("tariff is required")
	}
	updated := patch.Apply(*existing)
	updated.Currency = strings.ToUpper(updated.Currency)
	if err := updated.Validate(); err != nil {
		return nil, err
	}

	// A tariff that accounts already pay for stays in its subscription.
	// The row lock keeps account pairing checks from reading the old owner
	// while the move commits.
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		current, err := uc.tariffs.FindByIDForUpdate(ctx, tx, existing.ID)
		if err != nil {
			return notFoundAs(err, domain.ErrTariffNotFound)
		}
		if updated.SubscriptionID != current.SubscriptionID {
			if _, err := uc.subs.FindByID(ctx, tx, updated.SubscriptionID); err != nil {
				return notFoundAs(err, domain.ErrSubscriptionNotFound)
			}
			inUse, err := uc.accounts.ExistsByTariff(ctx, tx, current.ID)
			if err != nil {
				return err
			}
			if inUse {
				return domain.Invalid("tariff %s is used by accounts, its subscription cannot change", current.ID)
			}
		}
		if err := uc.tariffs.Update(ctx, tx, &updated); err != nil {
			return notFoundAs(err, domain.ErrTariffNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := uc.hooks.AfterUpdate(ctx, existing, &updated); err != nil {
		uc.log.Warn().Err(err).Str("tariff_id", updated.ID).Msg("after update hooks failed")
	}
	return &updated, nil
}

func (uc *TariffUseCase) Delete(ctx context.Context, existing *model.Tariff) (*model.Tariff, error) {
	if existing == nil {
		return nil, domain.Invalid("tariff is required")
	}
	if err := uc.hooks.BeforeDelete(ctx, existing); err != nil {
		return nil, err
	}
	if err := uc.tariffs.Delete(ctx, repository.NoTX, existing.ID); err != nil {
		return nil, notFoundAs(err, domain.ErrTariffNotFound)
	}
	if err := uc.hooks.AfterDelete(ctx, existing); err != nil {
		uc.log.Warn().Err(err).Str("tariff_id", existing.ID).Msg("after delete hooks failed")
	}
	return existing, nil
}

func (uc *TariffUseCase) Search(ctx context.Context, page model.Page, filter string) ([]*model.Tariff, error) {
	out, err := uc.tariffs.Search(ctx, repository.NoTX, page.Normalize(), filter)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if out == nil {
		out = []*model.Tariff{}
	}
	return out, nil
}
