package repository

import (
	"context"

	"subscription-api/internal/domain/model"
)

type TariffRepository interface {
	Create(ctx context.Context, tx Tx, t *model.Tariff) error
	// FindByID takes a key-share lock when tx is a live transaction, so a
	// concurrent FindByIDForUpdate waits for the reader to commit.
	FindByID(ctx context.Context, tx Tx, id string) (*model.Tariff, error)
	// FindByIDForUpdate locks the row against readers that pair accounts with it.
	FindByIDForUpdate(ctx context.Context, tx Tx, id string) (*model.Tariff, error)
	// FindCurrentBySubscription returns the most recently created tariff of the subscription.
	FindCurrentBySubscription(ctx context.Context, tx Tx, subscriptionID string) (*model.Tariff, error)
	Update(ctx context.Context, tx Tx, t *model.Tariff) error
	Delete(ctx context.Context, tx Tx, id string) error
	// Search matches filter against the subscription id.
	Search(ctx context.Context, tx Tx, page model.Page, filter string) ([]*model.Tariff, error)
}
