package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"subscription-api/internal/domain"
	"subscription-api/internal/domain/model"
	pg "subscription-api/internal/infra/db/postgres"
	"subscription-api/internal/usecase"
)

const day int64 = 24 * 60 * 60

type seedTariff struct {
	Days   int64
	Amount int64
}

// sampleCatalog is the demo catalog created by `seed`. Amounts are in kopecks.
var sampleCatalog = []struct {
	Name    string
	Tariffs []seedTariff
}{
	{"basic", []seedTariff{{7, 19_900}, {30, 69_900}}},
	{"premium", []seedTariff{{30, 149_900}, {90, 399_900}}},
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create sample subscriptions and tariffs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			pool, err := pg.NewPgxPool(ctx, cfg.Database, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			subRepo := pg.NewPostgresSubscriptionRepo(pool)
			return seedCatalog(ctx, cmd.OutOrStdout(),
				usecase.NewSubscriptionUseCase(subRepo, logger),
				usecase.NewTariffUseCase(pg.NewPostgresTariffRepo(pool), subRepo, pg.NewPostgresAccountRepo(pool), pg.NewTxManager(pool), logger),
				logger)
		},
	}
}

type subscriptionSeeder interface {
	Create(ctx context.Context, name string) (*model.Subscription, error)
	GetByName(ctx context.Context, name string) (*model.Subscription, error)
}

type tariffSeeder interface {
	Create(ctx context.Context, in model.TariffCreate) (*model.Tariff, error)
}

// seedCatalog is idempotent per subscription name: existing subscriptions are
// left alone together with their tariffs.
func seedCatalog(ctx context.Context, out io.Writer, subs subscriptionSeeder, tariffs tariffSeeder, logger *zerolog.Logger) error {
	for _, s := range sampleCatalog {
		existing, err := subs.GetByName(ctx, s.Name)
		switch {
		case err == nil:
			fmt.Fprintf(out, "exists: %s (id=%s)\n", existing.Name, existing.ID)
			continue
		case !errors.Is(err, domain.ErrNotFound):
			return fmt.Errorf("lookup subscription %q: %w", s.Name, err)
		}

		sub, err := subs.Create(ctx, s.Name)
		if err != nil {
			return fmt.Errorf("create subscription %q: %w", s.Name, err)
		}
		fmt.Fprintf(out, "seeded: %s (id=%s)\n", sub.Name, sub.ID)

		for _, t := range s.Tariffs {
			tr, err := tariffs.Create(ctx, model.TariffCreate{
				SubscriptionID: sub.ID,
				Amount:         t.Amount,
				Currency:       "RUB",
				Duration:       t.Days * day,
			})
			if err != nil {
				return fmt.Errorf("create tariff for %q: %w", s.Name, err)
			}
			fmt.Fprintf(out, "  tariff: %d days, %d %s (id=%s)\n", t.Days, tr.Amount, tr.Currency, tr.ID)
		}
	}
	logger.Info().Int("subscriptions", len(sampleCatalog)).Msg("seeding complete")
	return nil
}
