package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/liquifund/liquidity/internal/api/handler"
	"github.com/liquifund/liquidity/internal/api/middleware"
	"github.com/liquifund/liquidity/internal/api/spec"
	"github.com/liquifund/liquidity/internal/config"
	"github.com/liquifund/liquidity/internal/domain"
	"github.com/liquifund/liquidity/internal/idempotency"
	"github.com/liquifund/liquidity/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// Services bundles the domain services the HTTP layer depends on.
type Services struct {
	Auth           *service.AuthService
	Users          *service.UserService
	Rentals        *service.RentalService
	Referrals      *service.ReferralService
	Payments       *service.PaymentService
	Withdrawals    *service.WithdrawalService
	Kyc            *service.KycService
	Support        *service.SupportService
	Settings       *service.SettingsService
	Reconciliation *service.ReconciliationService
}

type Router struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *pgxpool.Pool
	idem   *idempotency.Store
	redis  redis.Cmdable
	svc    Services
}

func NewRouter(cfg *config.Config, logger *zap.Logger, db *pgxpool.Pool, idem *idempotency.Store, redis redis.Cmdable, svc Services) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{cfg: cfg, logger: logger, db: db, idem: idem, redis: redis, svc: svc}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	healthHandler := handler.NewHealthHandler(api.db, api.redis)
	authHandler := handler.NewAuthHandler(api.svc.Auth)
	profileHandler := handler.NewProfileHandler(api.svc.Users)
	paymentHandler := handler.NewPaymentHandler(api.svc.Payments)
	rentalHandler := handler.NewRentalHandler(api.svc.Rentals)
	referralHandler := handler.NewReferralHandler(api.svc.Referrals)
	withdrawalHandler := handler.NewWithdrawalHandler(api.svc.Withdrawals)
	kycHandler := handler.NewKycHandler(api.svc.Kyc)
	supportHandler := handler.NewSupportHandler(api.svc.Support)
	settingsHandler := handler.NewSettingsHandler(api.svc.Settings)
	adminHandler := handler.NewAdminHandler(
		api.svc.Users,
		api.svc.Rentals,
		api.svc.Referrals,
		api.svc.Payments,
		api.svc.Withdrawals,
		api.svc.Kyc,
		api.svc.Support,
		api.svc.Reconciliation,
	)

	idem := middleware.IdempotencyMiddleware(api.idem, api.logger)

	// Health and docs
	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.yaml", spec.OpenAPIHandler())
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs/index.html", http.StatusMovedPermanently)
	})
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

	// Public routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))

		r.Post("/v1/auth/register", authHandler.Register)
		r.Post("/v1/auth/refresh", authHandler.Refresh)
		r.Group(func(r chi.Router) {
			r.Use(middleware.CredentialRateLimiter(api.cfg.CredentialRateLimit))
			r.Post("/v1/auth/login", authHandler.Login)
			r.Post("/v1/auth/forgot-password", authHandler.ForgotPassword)
			r.Post("/v1/auth/reset-password", authHandler.ResetPassword)
		})

		r.Get("/v1/settings/maintenance", settingsHandler.Maintenance)
		r.Post("/v1/payments/mpesa/callback", paymentHandler.Callback)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.RequireActiveUser(api.svc.Users))
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		r.Post("/v1/auth/logout", authHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.MaintenanceMiddleware(api.svc.Settings))

			// Profile and wallet
			r.Get("/v1/profile", profileHandler.Get)
			r.Patch("/v1/profile", profileHandler.Update)
			r.Delete("/v1/profile", profileHandler.Delete)
			r.Get("/v1/wallet", profileHandler.Wallet)
			r.Get("/v1/wallet/entries", profileHandler.WalletEntries)

			// Payments
			r.With(idem).Post("/v1/payments/mpesa", paymentHandler.Initiate)
			r.Get("/v1/payments", paymentHandler.History)
			r.Get("/v1/payments/earnings", paymentHandler.Earnings)

			// Rentals
			r.With(idem).Post("/v1/rentals", rentalHandler.Create)
			r.Get("/v1/rentals", rentalHandler.List)
			r.Get("/v1/rentals/pending-returns", rentalHandler.PendingReturns)
			r.Get("/v1/rentals/{id}", rentalHandler.Get)

			// Referrals
			r.Get("/v1/referrals", referralHandler.Overview)
			r.Get("/v1/referrals/code", referralHandler.Code)

			// Withdrawals
			r.With(idem).Post("/v1/withdrawals", withdrawalHandler.Request)
			r.Get("/v1/withdrawals", withdrawalHandler.History)

			// KYC
			r.Get("/v1/kyc", kycHandler.Get)
			r.Put("/v1/kyc", kycHandler.Update)

			// Support
			r.Post("/v1/support/messages", supportHandler.Create)
			r.Get("/v1/support/messages", supportHandler.List)
		})

		// Admin
		r.Route("/v1/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(domain.RoleAdmin))

			r.Get("/users", adminHandler.ListUsers)
			r.Post("/users/{id}/block", adminHandler.BlockUser)
			r.Post("/users/{id}/unblock", adminHandler.UnblockUser)
			r.With(idem).Post("/users/{id}/award", adminHandler.AwardUser)

			r.Get("/rentals/active", adminHandler.ActiveRentals)
			r.Post("/rentals/{id}/complete", adminHandler.CompleteRental)
			r.Post("/rentals/{id}/fail", adminHandler.FailRental)

			r.Get("/referrals", adminHandler.Referrals)
			r.Get("/payments", adminHandler.Payments)

			r.Get("/withdrawals", adminHandler.Withdrawals)
			r.Post("/withdrawals/{id}/approve", adminHandler.ApproveWithdrawal)
			r.Post("/withdrawals/{id}/process", adminHandler.ProcessWithdrawal)
			r.Post("/withdrawals/{id}/paid", adminHandler.MarkWithdrawalPaid)
			r.Post("/withdrawals/{id}/reject", adminHandler.RejectWithdrawal)

			r.Get("/kyc", adminHandler.ListKyc)
			r.Post("/kyc/{id}/verify", adminHandler.VerifyKyc)

			r.Get("/support/messages", adminHandler.SupportMessages)
			r.Patch("/support/messages/{id}", adminHandler.UpdateSupportMessage)

			r.Get("/settings", settingsHandler.Get)
			r.Patch("/settings", settingsHandler.Update)

			r.Post("/reconcile", adminHandler.Reconcile)
		})
	})

	return r
}
