package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"subscription-api/internal/config"
	"subscription-api/internal/domain/ports/adapter"
	"subscription-api/internal/infra/adapters/billing"
	"subscription-api/internal/infra/api"
	"subscription-api/internal/infra/api/apiv1"
	pg "subscription-api/internal/infra/db/postgres"
	"subscription-api/internal/infra/metrics"
	red "subscription-api/internal/infra/redis"
	"subscription-api/internal/infra/sched"
	"subscription-api/internal/usecase"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := pg.NewMigrator(pool, cfg.Database.MigrationsTable, logger).Up(ctx); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
	}

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	subRepo := pg.NewPostgresSubscriptionRepo(pool)
	accountRepo := pg.NewPostgresAccountRepo(pool)
	statusRepo := pg.NewPostgresAccountStatusRepo(pool)
	tariffRepo := pg.NewPostgresTariffRepo(pool)

	accountOpts := []usecase.AccountOption{usecase.WithAccountHooks(metrics.AccountHooks{})}
	var paymentOpts []usecase.PaymentOption

	// ---- Redis (optional) ----
	var redisClient *red.Client
	if cfg.Redis.URL != "" {
		redisClient, err = red.NewClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer redisClient.Close()
		accountOpts = append(accountOpts, usecase.WithLocker(red.NewLocker(redisClient), cfg.Redis.LockTTL))
		paymentOpts = append(paymentOpts, usecase.WithInvoiceRateLimit(red.NewRateLimiter(redisClient), cfg.Redis.InvoiceLimit, cfg.Redis.InvoiceWindow))
		logger.Info().Msg("redis enabled: account locks and invoice rate limit")
	}

	// ---- Billing ----
	var billingClient adapter.BillingClient
	if cfg.Billing.BaseURL != "" {
		billingClient, err = billing.NewHTTPClient(ctx, cfg.Billing, logger)
		if err != nil {
			return err
		}
	} else {
		logger.Warn().Msg("billing.base_url not set; using in-memory billing")
		billingClient = billing.NewNoopClient()
	}

	// ---- Use cases ----
	subUC := usecase.NewSubscriptionUseCase(subRepo, logger)
	tariffUC := usecase.NewTariffUseCase(tariffRepo, subRepo, accountRepo, tm, logger)
	accountUC := usecase.NewAccountUseCase(accountRepo, statusRepo, tariffRepo, subRepo, tm, logger, accountOpts...)
	paymentUC := usecase.NewPaymentUseCase(accountUC, tariffRepo, billingClient, logger, paymentOpts...)

	// ---- HTTP ----
	auth := api.NewAuthenticator(cfg.Auth)
	r := chi.NewRouter()
	r.Use(
		api.TraceID(),
		api.RequestLog(logger),
		api.Recover(logger),
		api.Timeout(cfg.HTTP.RequestTimeout),
		auth.Middleware(),
	)
	r.Get("/health", healthHandler(pool, redisClient))
	r.Handle("/metrics", metrics.Handler())
	apiv1.RegisterAPIV1(r, apiv1.NewServer(subUC, tariffUC, accountUC, paymentUC, cfg.Auth, logger))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	workers := []interface{ Run(context.Context) error }{
		sched.NewStatsWorker(cfg.Scheduler.StatsInterval, accountRepo, pool, logger),
	}
	if cfg.Billing.BaseURL != "" {
		workers = append(workers, sched.NewPaymentReconciler(accountRepo, billingClient, accountUC,
			cfg.Scheduler.ReconcileInterval, cfg.Scheduler.ReconcileStaleAfter, cfg.Scheduler.ReconcileBatch, logger))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Str("app", cfg.App.Name).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	for _, w := range workers {
		w := w
		g.Go(func() error {
			if err := w.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type pinger interface {
	Ping(ctx context.Context) error
}

func healthHandler(db pinger, rdb *red.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			api.WriteDetail(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctx); err != nil {
				api.WriteDetail(w, http.StatusServiceUnavailable, "redis unavailable")
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}
