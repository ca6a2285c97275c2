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
var _ repository.SubscriptionRepository = (*PostgresSubscriptionRepo)(nil)

type PostgresSubscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresSubscriptionRepo(pool *pgxpool.Pool) *PostgresSubscriptionRepo {
	return &PostgresSubscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, name, created_at`

func (r *PostgresSubscriptionRepo) Create(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `INSERT INTO subscriptions (id, name, created_at) VALUES ($1, $2, $3);`
	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.Name, s.CreatedAt)
	return mapError(err)
}

func (r *PostgresSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1` + lockClause(tx) + `;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *PostgresSubscriptionRepo) FindByName(ctx context.Context, tx repository.Tx, name string) (*model.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE name = $1;`
	return r.queryOne(ctx, tx, q, name)
}

func (r *PostgresSubscriptionRepo) Update(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `UPDATE subscriptions SET name = $2 WHERE id = $1;`
	return rowsAffectedOrNotFound(execSQL(ctx, r.pool, tx, q, s.ID, s.Name))
}

func (r *PostgresSubscriptionRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	const q = `DELETE FROM subscriptions WHERE id = $1;`
	return rowsAffectedOrNotFound(execSQL(ctx, r.pool, tx, q, id))
}

func (r *PostgresSubscriptionRepo) Search(ctx context.Context, tx repository.Tx, page model.Page, filter string) ([]*model.Subscription, error) {
	const q = `
SELECT ` + subscriptionColumns + `
  FROM subscriptions
 WHERE ($1::text = '' OR name ILIKE '%' || $1::text || '%')
 ORDER BY name, id
 LIMIT $2 OFFSET $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, filter, page.Limit(), page.Offset())
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	out := []*model.Subscription{}
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *PostgresSubscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var s model.Subscription
	if err := row.Scan(&s.ID, &s.Name, &s.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	return &s, nil
}
