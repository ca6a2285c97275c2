package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an infra-defined transaction handle (pgx.Tx for Postgres).
// Repositories accept NoTX for the non-transactional path.
type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside a database transaction and passes the
// handle through tx. A non-nil error from fn rolls the transaction back.
//
// Repositories that receive a live transaction lock the rows they read
// (SELECT ... FOR UPDATE) so that read-modify-write sequences stay serialized.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
