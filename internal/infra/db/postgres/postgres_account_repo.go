package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"subscription-api/internal/domain"
	"subscription-api/internal/domain/model"
	"subscription-api/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.AccountRepository = (*PostgresAccountRepo)(nil)

type PostgresAccountRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresAccountRepo(pool *pgxpool.Pool) *PostgresAccountRepo {
	return &PostgresAccountRepo{pool: pool}
}

const accountColumns = `id, created_at, modified_at, user_id, subscription_id, tariff_id, status, expires_at, invoice_id, version`

func (r *PostgresAccountRepo) Create(ctx context.Context, tx repository.Tx, a *model.Account) error {
	const q = `
INSERT INTO accounts (` + accountColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`
	_, err := execSQL(ctx, r.pool, tx, q,
		a.ID, a.CreatedAt, a.ModifiedAt, a.UserID, a.SubscriptionID, a.TariffID,
		string(a.Status), a.ExpiresAt, a.InvoiceID, a.Version,
	)
	return mapError(err)
}

// FindByID locks the row for the rest of the transaction when tx is a pgx.Tx.
func (r *PostgresAccountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1` + lockClause(tx) + `;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanAccount(row)
}

func (r *PostgresAccountRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Account, error) {
	const q = `
SELECT ` + accountColumns + `
  FROM accounts
 WHERE user_id = $1
 ORDER BY created_at, id;`
	return r.queryMany(ctx, tx, q, userID)
}

func (r *PostgresAccountRepo) ExistsByTariff(ctx context.Context, tx repository.Tx, tariffID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM accounts WHERE tariff_id = $1);`
	row, err := pickRow(ctx, r.pool, tx, q, tariffID)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, mapError(err)
	}
	return ok, nil
}

func (r *PostgresAccountRepo) Search(ctx context.Context, tx repository.Tx, page model.Page, filter string) ([]*model.Account, error) {
	const q = `
SELECT ` + accountColumns + `
  FROM accounts
 WHERE ($1::text = '' OR status = $1::text)
 ORDER BY created_at, id
 LIMIT $2 OFFSET $3;`
	return r.queryMany(ctx, tx, q, filter, page.Limit(), page.Offset())
}

func (r *PostgresAccountRepo) ListAwaitingPayment(ctx context.Context, tx repository.Tx, modifiedBefore time.Time, limit int) ([]*model.Account, error) {
	const q = `
SELECT ` + accountColumns + `
  FROM accounts
 WHERE status = 'pending'
   AND tariff_id IS NOT NULL
   AND modified_at < $1
 ORDER BY modified_at, id
 LIMIT $2;`
	return r.queryMany(ctx, tx, q, modifiedBefore, limit)
}

// Update is a compare-and-swap on version.
func (r *PostgresAccountRepo) Update(ctx context.Context, tx repository.Tx, a *model.Account) error {
	const q = `
UPDATE accounts
   SET user_id = $3, subscription_id = $4, tariff_id = $5, status = $6,
       expires_at = $7, invoice_id = $8, modified_at = $9, version = version + 1
 WHERE id = $1 AND version = $2
RETURNING version, modified_at;`
	row, err := pickRow(ctx, r.pool, tx, q,
		a.ID, a.Version, a.UserID, a.SubscriptionID, a.TariffID, string(a.Status),
		a.ExpiresAt, a.InvoiceID, a.ModifiedAt,
	)
	if err != nil {
		return err
	}
	if err := row.Scan(&a.Version, &a.ModifiedAt); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return mapError(err)
		}
		exists, err := r.exists(ctx, tx, a.ID)
		if err != nil {
			return err
		}
		if exists {
			return domain.ErrVersionConflict
		}
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresAccountRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	const q = `DELETE FROM accounts WHERE id = $1;`
	return rowsAffectedOrNotFound(execSQL(ctx, r.pool, tx, q, id))
}

func (r *PostgresAccountRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.AccountStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM accounts GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	out := make(map[model.AccountStatus]int, len(model.AccountStatuses))
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[model.AccountStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *PostgresAccountRepo) exists(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1);`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, mapError(err)
	}
	return ok, nil
}

func (r *PostgresAccountRepo) queryMany(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Account, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	out := []*model.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var (
		a      model.Account
		status string
	)
	if err := row.Scan(
		&a.ID, &a.CreatedAt, &a.ModifiedAt, &a.UserID, &a.SubscriptionID, &a.TariffID,
		&status, &a.ExpiresAt, &a.InvoiceID, &a.Version,
	); err != nil {
		return nil, mapError(err)
	}
	a.Status = model.AccountStatus(status)
	return &a, nil
}
