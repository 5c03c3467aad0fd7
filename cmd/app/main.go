// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"matrimony-subscription/internal/config"
	"matrimony-subscription/internal/domain/ports/adapter"
	"matrimony-subscription/internal/infra/adapters/payment"
	"matrimony-subscription/internal/infra/api"
	"matrimony-subscription/internal/infra/db"
	"matrimony-subscription/internal/infra/db/firestore"
	pg "matrimony-subscription/internal/infra/db/postgres"
	"matrimony-subscription/internal/infra/identity"
	"matrimony-subscription/internal/infra/logging"
	"matrimony-subscription/internal/infra/metrics"
	red "matrimony-subscription/internal/infra/redis"
	"matrimony-subscription/internal/infra/sched"
	"matrimony-subscription/internal/infra/worker"
	"matrimony-subscription/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (memory store, noop payments)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit, cfg.Store.Driver)

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("timezone")
	}
	pkgs, err := cfg.Catalog()
	if err != nil {
		logger.Fatal().Err(err).Msg("catalog")
	}
	catalog, err := usecase.NewPackageCatalog(pkgs)
	if err != nil {
		logger.Fatal().Err(err).Msg("catalog")
	}

	// ---- Store ----
	stores, err := db.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("store")
	}
	defer stores.Close()

	// ---- Redis (optional) ----
	var (
		locker  adapter.Locker
		limiter api.ContactLimiter
	)
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer rc.Close()
		locker = red.NewLocker(rc)
		limiter = api.NewRedisContactLimiter(red.NewRateLimiter(rc), cfg.Quota.ContactRate, cfg.Quota.ContactRateSpan)
		stores.Packages = pg.NewPackageRepoCacheDecorator(stores.Packages, rc, cfg.Redis.TTL, logger)
		logger.Info().Msg("redis connected")
	} else {
		limiter = api.NewLocalContactLimiter(cfg.Quota.ContactRate, cfg.Quota.ContactRateSpan)
		logger.Info().Msg("redis not configured; using in-process rate limiting")
	}

	// ---- Identity ----
	verifier, err := newIdentity(ctx, cfg, stores, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("provider", cfg.Auth.Provider).Msg("identity")
	}

	// ---- Payments ----
	var gateway adapter.PaymentVerifier
	switch cfg.Payment.Provider {
	case "razorpay":
		gateway, err = payment.NewRazorpayVerifier(cfg.Payment.KeySecret)
		if err != nil {
			logger.Fatal().Err(err).Msg("razorpay")
		}
	default:
		logger.Warn().Msg("payment verification disabled; any non-empty signature is accepted")
		gateway = payment.NewNoopVerifier()
	}

	// ---- Use cases ----
	opts := usecase.QuotaOptions{
		Location: loc,
		Retry:    usecase.RetryPolicy{MaxAttempts: cfg.Quota.MaxTxAttempts, Backoff: cfg.Quota.RetryBackoff},
		Logger:   logger,
	}
	quotaUC := usecase.NewQuotaUseCase(usecase.QuotaDeps{
		Catalog:       catalog,
		Subscriptions: stores.Subscriptions,
		Usage:         stores.Usage,
		Tx:            stores.Tx,
	}, opts)
	subUC := usecase.NewSubscriptionUseCase(usecase.SubscriptionDeps{
		Catalog:       catalog,
		Subscriptions: stores.Subscriptions,
		Usage:         stores.Usage,
		Purchases:     stores.Purchases,
		Tx:            stores.Tx,
	}, opts)
	paymentUC := usecase.NewPaymentUseCase(gateway, subUC, logger)
	catalogUC := usecase.NewCatalogUseCase(catalog, stores.Packages, locker, logger)

	// ---- Background work ----
	pool := worker.NewPool(cfg.Worker.Workers, logger)
	pool.Start(ctx)
	go sched.NewCatalogReconciler(catalogUC, cfg.Worker.CatalogSyncInterval, logger).Start(ctx)

	// ---- HTTP ----
	srv := api.NewServer(api.Deps{
		Quota:    quotaUC,
		Subs:     subUC,
		Payments: paymentUC,
		Catalog:  catalogUC,
		Identity: verifier,
		Jobs:     pool,
		Limiter:  limiter,
		Ready:    stores.Ping,
	}, api.Options{
		Port:            cfg.HTTP.Port,
		RequestTimeout:  cfg.HTTP.RequestTimeout,
		RateLimitWindow: cfg.Quota.ContactRateSpan,
		Logger:          logger,
	})
	errc := make(chan error, 1)
	go func() {
		logger.Info().Int("port", cfg.HTTP.Port).Str("store", stores.Driver).Msg("http listening")
		errc <- srv.ListenAndServe()
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigc:
		logger.Info().Str("signal", sig.String()).Msg("shutdown requested")
	case err := <-errc:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
	pool.Stop()
	logger.Info().Msg("bye")
}

func newIdentity(ctx context.Context, cfg *config.Config, stores *db.Stores, logger *zerolog.Logger) (adapter.IdentityVerifier, error) {
	if cfg.Auth.Provider != "firebase" {
		return identity.NewJWTVerifier(cfg.Auth.JWTSecret)
	}
	app := stores.Firebase
	if app == nil {
		var err error
		if app, err = firestore.NewApp(ctx, cfg.Firebase); err != nil {
			return nil, err
		}
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return identity.NewFirebaseVerifier(client, cfg.Auth.CacheTTL, logger), nil
}
