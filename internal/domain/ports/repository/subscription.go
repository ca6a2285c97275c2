package repository

import (
	"context"

	"subscription-api/internal/domain/model"
)

// SubscriptionRepository is the persistence port for subscription plans.
type SubscriptionRepository interface {
	Create(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	FindByName(ctx context.Context, tx Tx, name string) (*model.Subscription, error)
	Update(ctx context.Context, tx Tx, s *model.Subscription) error
	Delete(ctx context.Context, tx Tx, id string) error
	// Search matches filter as a case-insensitive name substring.
	Search(ctx context.Context, tx Tx, page model.Page, filter string) ([]*model.Subscription, error)
}
