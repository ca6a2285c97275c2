package repository

import (
	"context"
	"time"

	"subscription-api/internal/domain/model"
)

// AccountRepository is the persistence port for subscription accounts.
type AccountRepository interface {
	Create(ctx context.Context, tx Tx, a *model.Account) error
	// FindByID locks the row when tx is a live transaction.
	FindByID(ctx context.Context, tx Tx, id string) (*model.Account, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Account, error)
	// ExistsByTariff reports whether any account references the tariff.
	ExistsByTariff(ctx context.Context, tx Tx, tariffID string) (bool, error)
	// Search matches filter against the account status.
	Search(ctx context.Context, tx Tx, page model.Page, filter string) ([]*model.Account, error)
	// Update persists a only if the stored version still equals a.Version.
	// On success a.Version and a.ModifiedAt are refreshed from the row.
	Update(ctx context.Context, tx Tx, a *model.Account) error
	Delete(ctx context.Context, tx Tx, id string) error
	// ListAwaitingPayment returns pending accounts with a tariff chosen that
	// were last modified before the cutoff, oldest first.
	ListAwaitingPayment(ctx context.Context, tx Tx, modifiedBefore time.Time, limit int) ([]*model.Account, error)

	// --- Statistics read-only methods ---
	CountByStatus(ctx context.Context, tx Tx) (map[model.AccountStatus]int, error)
}

// AccountStatusRepository is the append-only audit trail of account statuses.
type AccountStatusRepository interface {
	Append(ctx context.Context, tx Tx, e *model.AccountStatusEvent) error
	ListByAccount(ctx context.Context, tx Tx, accountID string) ([]*model.AccountStatusEvent, error)
}
