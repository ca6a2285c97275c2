package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jackc/pgx/v4/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// Migrator applies the embedded goose migrations through a pgx pool.
type Migrator struct {
	pool  *pgxpool.Pool
	table string
	log   *zerolog.Logger
}

func NewMigrator(pool *pgxpool.Pool, table string, logger *zerolog.Logger) *Migrator {
	l := logger.With().Str("component", "Migrator").Logger()
	return &Migrator{pool: pool, table: table, log: &l}
}

func (m *Migrator) Up(ctx context.Context) error {
	return m.run(func(db *sql.DB) error { return goose.UpContext(ctx, db, migrationsDir) })
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) error {
	return m.run(func(db *sql.DB) error { return goose.DownContext(ctx, db, migrationsDir) })
}

// Status logs the applied state of every migration.
func (m *Migrator) Status(ctx context.Context) error {
	return m.run(func(db *sql.DB) error { return goose.StatusContext(ctx, db, migrationsDir) })
}

// Version returns the current schema version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	var v int64
	err := m.run(func(db *sql.DB) error {
		var err error
		v, err = goose.GetDBVersionContext(ctx, db)
		return err
	})
	return v, err
}

func (m *Migrator) run(fn func(db *sql.DB) error) error {
	db := stdlib.OpenDB(*m.pool.Config().ConnConfig)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{m.log})
	if m.table != "" {
		goose.SetTableName(m.table)
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := fn(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// gooseLogger routes goose output through zerolog.
type gooseLogger struct{ l *zerolog.Logger }

func (g gooseLogger) Printf(format string, v ...interface{}) {
	g.l.Info().Msgf(format, v...)
}

func (g gooseLogger) Fatalf(format string, v ...interface{}) {
	g.l.Fatal().Msgf(format, v...)
}
