package application

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"gym-membership/internal/config"
	"gym-membership/internal/domain/ports/adapter"
	"gym-membership/internal/domain/ports/repository"
	"gym-membership/internal/infra/adapters/payment"
	"gym-membership/internal/infra/api"
	pg "gym-membership/internal/infra/db/postgres"
	red "gym-membership/internal/infra/redis"
	"gym-membership/internal/infra/sched"
	"gym-membership/internal/infra/worker"
	"gym-membership/internal/usecase"
)

const devWebhookSecret = "dev-webhook-secret"

// App holds the wired service graph shared by the HTTP server and gymctl.
type App struct {
	Cfg   *config.Config
	Log   *zerolog.Logger
	Pool  *pgxpool.Pool
	Redis red.RedisClient // nil when Redis is not configured

	Plans       usecase.PlanUseCase
	Memberships usecase.MembershipUseCase
	Payments    usecase.PaymentUseCase
	Ledger      *usecase.Ledger

	Workers    *worker.Pool
	Expiry     *sched.ExpiryWorker
	Reconciler *sched.PaymentReconciler
}

// New connects to Postgres (and Redis when configured) and wires repositories,
// use cases and workers. Close releases what New opened.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	pool, err := pg.Connect(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	a := &App{Cfg: cfg, Log: logger, Pool: pool}

	var planRepo repository.PlanRepository = pg.NewPlanRepo(pool)
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.Redis = rc
		planRepo = pg.NewPlanRepoCacheDecorator(planRepo, rc, cfg.Redis.TTL, logger)
	} else {
		logger.Warn().Msg("redis not configured: plan cache, settlement locks and rate limiting disabled")
	}
	membershipRepo := pg.NewMembershipRepo(pool)
	txRepo := pg.NewTransactionRepo(pool)
	tm := pg.NewTxManager(pool)

	gateway, err := newGateway(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Plans = usecase.NewPlanUseCase(planRepo, tm, logger)
	memberships := usecase.NewMembershipUseCase(planRepo, membershipRepo, tm, logger)
	a.Memberships = memberships
	payments := usecase.NewPaymentUseCase(memberships, membershipRepo, txRepo, tm, gateway, usecase.PaymentOptions{
		CallbackURL:   cfg.Paystack.CallbackURL,
		InitRateLimit: cfg.RateLimit.InitPerMinute,
	}, logger)
	if a.Redis != nil {
		payments.SetLocker(red.NewLocker(a.Redis))
		payments.SetRateLimiter(red.NewRateLimiter(a.Redis))
	}
	a.Payments = payments
	a.Ledger = usecase.NewLedger(txRepo, logger)

	a.Workers = worker.NewPool(cfg.Cron.Workers, logger)
	a.Expiry = sched.NewExpiryWorker(cfg.Cron.ExpiryInterval, memberships, logger)
	a.Reconciler = sched.NewPaymentReconciler(payments, a.Workers, cfg.Cron.ReconcileInterval, cfg.Cron.StaleAfter, cfg.Cron.BatchSize, logger)
	return a, nil
}

// newGateway picks the Paystack client, or the in-process gateway in dev mode
// when no secret key is configured.
func newGateway(cfg *config.Config, logger *zerolog.Logger) (adapter.PaymentGateway, error) {
	if cfg.Paystack.SecretKey == "" && cfg.Runtime.Dev {
		logger.Warn().Str("webhook_secret", devWebhookSecret).Msg("[DEV MODE] using in-process payment gateway")
		return payment.NewNoopPaymentGateway(devWebhookSecret, cfg.Paystack.BaseURL), nil
	}
	gw, err := payment.NewPaystackGateway(cfg.Paystack.SecretKey, cfg.Paystack.BaseURL, cfg.Paystack.Timeout, logger)
	if err != nil {
		return nil, fmt.Errorf("paystack gateway: %w", err)
	}
	return gw, nil
}

// Server builds the HTTP layer on top of the wired graph.
func (a *App) Server() *api.Server {
	return api.NewServer(api.Deps{
		Plans:       a.Plans,
		Memberships: a.Memberships,
		Payments:    a.Payments,
		Ledger:      a.Ledger,
		Sweeper:     a.Expiry,
		Reconciler:  a.Reconciler,
		Auth:        api.NewAuthenticator(a.Cfg.Auth.JWTSecret, a.Cfg.Auth.Issuer, a.Cfg.Auth.AdminRole, a.Cfg.Auth.EmailClaim),
		Ping:        a.Pool.Ping,
	}, a.Cfg.Pages, a.Cfg.Cron.Secret, a.Cfg.Server.RequestTimeout, a.Log)
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Log.Warn().Err(err).Msg("redis close failed")
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
