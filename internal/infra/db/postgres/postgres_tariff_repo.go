package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"subscription-api/internal/domain"
	"subscription-api/internal/domain/model"
	"subscription-api/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.TariffRepository = (*PostgresTariffRepo)(nil)

type PostgresTariffRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresTariffRepo(pool *pgxpool.Pool) *PostgresTariffRepo {
	return &PostgresTariffRepo{pool: pool}
}

const tariffColumns = `id, subscription_id, created_at, expires_at, amount, currency, duration`

func (r *PostgresTariffRepo) Create(ctx context.Context, tx repository.Tx, t *model.Tariff) error {
	const q = `
INSERT INTO tariffs (` + tariffColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7);`
	_, err := execSQL(ctx, r.pool, tx, q, t.ID, t.SubscriptionID, t.CreatedAt, t.ExpiresAt, t.Amount, t.Currency, t.Duration)
	return mapError(err)
}

func (r *PostgresTariffRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Tariff, error) {
	q := `SELECT ` + tariffColumns + ` FROM tariffs WHERE id = $1` + keyShareClause(tx) + `;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanTariff(row)
}

func (r *PostgresTariffRepo) FindByIDForUpdate(ctx context.Context, tx repository.Tx, id string) (*model.Tariff, error) {
	q := `SELECT ` + tariffColumns + ` FROM tariffs WHERE id = $1` + lockClause(tx) + `;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanTariff(row)
}

func (r *PostgresTariffRepo) FindCurrentBySubscription(ctx context.Context, tx repository.Tx, subscriptionID string) (*model.Tariff, error) {
	const q = `
SELECT ` + tariffColumns + `
  FROM tariffs
 WHERE subscription_id = $1
 ORDER BY created_at DESC, id
 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, subscriptionID)
	if err != nil {
		return nil, err
	}
	return scanTariff(row)
}

func (r *PostgresTariffRepo) Update(ctx context.Context, tx repository.Tx, t *model.Tariff) error {
	const q = `
UPDATE tariffs
   SET subscription_id = $2, expires_at = $3, amount = $4, currency = $5, duration = $6
 WHERE id = $1;`
	return rowsAffectedOrNotFound(execSQL(ctx, r.pool, tx, q, t.ID, t.SubscriptionID, t.ExpiresAt, t.Amount, t.Currency, t.Duration))
}

func (r *PostgresTariffRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	const q = `DELETE FROM tariffs WHERE id = $1;`
	return rowsAffectedOrNotFound(execSQL(ctx, r.pool, tx, q, id))
}

func (r *PostgresTariffRepo) Search(ctx context.Context, tx repository.Tx, page model.Page, filter string) ([]*model.Tariff, error) {
	const q = `
SELECT ` + tariffColumns + `
  FROM tariffs
 WHERE ($1::text = '' OR subscription_id::text = $1::text)
 ORDER BY created_at, id
 LIMIT $2 OFFSET $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, filter, page.Limit(), page.Offset())
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	out := []*model.Tariff{}
	for rows.Next() {
		t, err := scanTariff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanTariff(row pgx.Row) (*model.Tariff, error) {
	var t model.Tariff
	if err := row.Scan(&t.ID, &t.SubscriptionID, &t.CreatedAt, &t.ExpiresAt, &t.Amount, &t.Currency, &t.Duration); err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}
