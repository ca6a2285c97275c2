package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"subscription-api/internal/domain"
	"subscription-api/internal/domain/model"
	"subscription-api/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.AccountStatusRepository = (*PostgresAccountStatusRepo)(nil)

// PostgresAccountStatusRepo stores the append-only status trail. Rows go away
// only through the ON DELETE CASCADE of their account.
type PostgresAccountStatusRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresAccountStatusRepo(pool *pgxpool.Pool) *PostgresAccountStatusRepo {
	return &PostgresAccountStatusRepo{pool: pool}
}

func (r *PostgresAccountStatusRepo) Append(ctx context.Context, tx repository.Tx, e *model.AccountStatusEvent) error {
	const q = `
INSERT INTO account_status_events (id, account_id, created_at, expires_at, status)
VALUES ($1, $2, $3, $4, $5);`
	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.AccountID, e.CreatedAt, e.ExpiresAt, string(e.Status))
	return mapError(err)
}

func (r *PostgresAccountStatusRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string) ([]*model.AccountStatusEvent, error) {
	const q = `
SELECT id, account_id, created_at, expires_at, status
  FROM account_status_events
 WHERE account_id = $1
 ORDER BY seq;`
	rows, err := queryRows(ctx, r.pool, tx, q, accountID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	out := []*model.AccountStatusEvent{}
	for rows.Next() {
		var (
			e      model.AccountStatusEvent
			status string
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &e.CreatedAt, &e.ExpiresAt, &status); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		e.Status = model.AccountStatus(status)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
