// Package app wires configuration, storage, services and transports into a
// runnable process.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/liquifund/liquidity/internal/api"
	"github.com/liquifund/liquidity/internal/api/middleware"
	"github.com/liquifund/liquidity/internal/config"
	"github.com/liquifund/liquidity/internal/db"
	"github.com/liquifund/liquidity/internal/gateway"
	"github.com/liquifund/liquidity/internal/idempotency"
	"github.com/liquifund/liquidity/internal/notify"
	"github.com/liquifund/liquidity/internal/observability"
	"github.com/liquifund/liquidity/internal/repository"
	"github.com/liquifund/liquidity/internal/service"
	"github.com/liquifund/liquidity/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// App holds the long-lived dependencies shared by the server, the workers
// and the one-shot CLI commands.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Idem     *idempotency.Store
	Services api.Services
}

// New connects to Postgres and Redis using cfg
// and builds every service. Close releases the connections.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	var redisClient *redis.Client
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisClient, err = newRedisClient(cfg.RedisURL)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}

	a := &App{Config: cfg, Logger: logger, Pool: pool, Redis: redisClient}
	var cache redis.Cmdable
	if redisClient != nil {
		cache = redisClient
	}
	a.Idem = idempotency.NewStore(cache, pool, cfg.IdempotencyTTL)
	a.Services = buildServices(cfg, logger, pool, cache, newMpesa(cfg, logger))
	return a, nil
}

func buildServices(cfg *config.Config, logger *zap.Logger, pool *pgxpool.Pool, cache redis.Cmdable, mpesa gateway.Mpesa) api.Services {
	store := repository.NewStore(pool)
	ledger := service.NewLedger()
	settings := service.NewSettingsService(store, cache, cfg.SettingsCacheTTL)
	notifier := notify.NewLogNotifier(settings, logger)

	tokens := service.NewTokenManager(service.TokenConfig{
		Secret:     []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
		ResetTTL:   cfg.PasswordResetTTL,
	})
	referrals := service.NewReferralService(store, ledger, cfg.ReferralRewardRate, cfg.FrontendURL)
	rentals := service.NewRentalService(store, ledger, referrals, service.RentalConfig{
		DurationDays: cfg.RentalDurationDays,
		Multiplier:   cfg.RentalReturnMultiplier,
	})

	return api.Services{
		Auth:      service.NewAuthService(store, tokens, notifier, cfg.FrontendURL),
		Users:     service.NewUserService(store, ledger),
		Rentals:   rentals,
		Referrals: referrals,
		Payments: service.NewPaymentService(store, ledger, rentals, mpesa, service.PaymentConfig{
			CallbackToken: cfg.Mpesa.CallbackToken,
			Expiry:        cfg.PaymentExpiry,
		}),
		Withdrawals: service.NewWithdrawalService(store, ledger, notifier, service.WithdrawalConfig{
			MinAmount:     cfg.WithdrawalMinAmount,
			EscalateAfter: cfg.WithdrawalEscalation,
		}),
		Kyc:            service.NewKycService(store),
		Support:        service.NewSupportService(store),
		Settings:       settings,
		Reconciliation: service.NewReconciliationService(store),
	}
}

// newMpesa picks the Daraja client, or the in-process mock when MPESA_ENV is
// "mock".
func newMpesa(cfg *config.Config, logger *zap.Logger) gateway.Mpesa {
	if cfg.Mpesa.Env == "mock" {
		logger.Warn("using mock M-Pesa gateway; STK pushes are not sent")
		return gateway.NewMockMpesa()
	}
	return gateway.NewMpesaClient(gateway.MpesaOptions{
		BaseURL:        gateway.BaseURLFor(cfg.Mpesa.Env),
		ConsumerKey:    cfg.Mpesa.ConsumerKey,
		ConsumerSecret: cfg.Mpesa.ConsumerSecret,
		ShortCode:      cfg.Mpesa.ShortCode,
		Passkey:        cfg.Mpesa.Passkey,
		TillNumber:     cfg.Mpesa.TillNumber,
		CallbackURL:    cfg.Mpesa.CallbackURL,
	})
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("close redis", zap.Error(err))
		}
	}
	a.Pool.Close()
}

// Workers returns the periodic jobs run alongside the HTTP server.
func (a *App) Workers() []*worker.Worker {
	cfg := a.Config
	return []*worker.Worker{
		worker.NewMaturityWorker(a.Services.Rentals, cfg.MaturityPollInterval, cfg.WorkerBatchSize),
		worker.NewSweepWorker(a.Services.Withdrawals, a.Services.Payments, a.Idem, cfg.SweepPollInterval, cfg.WorkerBatchSize),
		worker.NewReconciliationWorker(a.Services.Reconciliation, cfg.ReconciliationInterval),
	}
}

// Serve runs the HTTP server and the background workers until ctx is
// canceled or the server fails, then shuts both down.
func (a *App) Serve(ctx context.Context) error {
	observability.Init()

	router := api.NewRouter(a.Config, a.Logger, a.Pool, a.Idem, a.redisCmdable(), a.Services)
	server := &http.Server{
		Addr:         ":" + a.Config.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("http server starting", zap.String("port", a.Config.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	for _, w := range a.Workers() {
		g.Go(func() error {
			w.Start(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.Logger.Error("http server shutdown failed", zap.Error(err))
		}
		return nil
	})

	err := g.Wait()
	a.Logger.Info("shutdown complete")
	return err
}

func (a *App) redisCmdable() redis.Cmdable {
	if a.Redis == nil {
		return nil
	}
	return a.Redis
}

// NewLogger builds the production zap logger at the given level.
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
