package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"subscription-api/internal/domain"
	"subscription-api/internal/domain/model"
	"subscription-api/internal/domain/ports/repository"
)

// SubscriptionUseCase manages subscription plans.
type SubscriptionUseCase struct {
	subs  repository.SubscriptionRepository
	hooks HookList[model.Subscription]
	log   *zerolog.Logger
}

func NewSubscriptionUseCase(subs repository.SubscriptionRepository, logger *zerolog.Logger, hooks ...Hooks[model.Subscription]) *SubscriptionUseCase {
	l := logger.With().Str("component", "SubscriptionUseCase").Logger()
	return &SubscriptionUseCase{subs: subs, hooks: hooks, log: &l}
}

// Create adds a subscription; names are unique.
func (uc *SubscriptionUseCase) Create(ctx context.Context, name string) (*model.Subscription, error) {
	s, err := model.NewSubscription(uuid.NewString(), name)
	if err != nil {
		return nil, err
	}
	if existing, err := uc.subs.FindByName(ctx, repository.NoTX, s.Name); err == nil && existing != nil {
		return nil, domain.ErrAlreadyExists
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if err := uc.subs.Create(ctx, repository.NoTX, s); err != nil {
		return nil, err
	}
	if err := uc.hooks.AfterCreate(ctx, s); err != nil {
		uc.log.Warn().Err(err).Str("subscription_id", s.ID).Msg("after create hooks failed")
	}
	return s, nil
}

func (uc *SubscriptionUseCase) Get(ctx context.Context, id string) (*model.Subscription, error) {
	s, err := uc.subs.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, notFoundAs(err, domain.ErrSubscriptionNotFound)
	}
	return s, nil
}

func (uc *SubscriptionUseCase) GetByName(ctx context.Context, name string) (*model.Subscription, error) {
	s, err := uc.subs.FindByName(ctx, repository.NoTX, strings.TrimSpace(name))
	if err != nil {
		return nil, notFoundAs(err, domain.ErrSubscriptionNotFound)
	}
	return s, nil
}

// Update renames a subscription.
func (uc *SubscriptionUseCase) Update(ctx context.Context, name string, existing *model.Subscription) (*model.Subscription, error) {
	if existing == nil {
		return nil, domain.Invalid("subscription is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Invalid("subscription name is required")
	}
	updated := *existing
	updated.Name = name
	if err := uc.subs.Update(ctx, repository.NoTX, &updated); err != nil {
		return nil, notFoundAs(err, domain.ErrSubscriptionNotFound)
	}
	if err := uc.hooks.AfterUpdate(ctx, existing, &updated); err != nil {
		uc.log.Warn().Err(err).Str("subscription_id", updated.ID).Msg("after update hooks failed")
	}
	return &updated, nil
}

// Delete removes a subscription that no tariff or account references.
func (uc *SubscriptionUseCase) Delete(ctx context.Context, existing *model.Subscription) (*model.Subscription, error) {
	if existing == nil {
		return nil, domain.Invalid("subscription is required")
	}
	if err := uc.hooks.BeforeDelete(ctx, existing); err != nil {
		return nil, err
	}
	if err := uc.subs.Delete(ctx, repository.NoTX, existing.ID); err != nil {
		return nil, notFoundAs(err, domain.ErrSubscriptionNotFound)
	}
	if err := uc.hooks.AfterDelete(ctx, existing); err != nil {
		uc.log.Warn().Err(err).Str("subscription_id", existing.ID).Msg("after delete hooks failed")
	}
	return existing, nil
}

func (uc *SubscriptionUseCase) Search(ctx context.Context, page model.Page, filter string) ([]*model.Subscription, error) {
	out, err := uc.subs.Search(ctx, repository.NoTX, page.Normalize(), strings.TrimSpace(filter))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if out == nil {
		out = []*model.Subscription{}
	}
	return out, nil
}
