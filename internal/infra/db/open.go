// Package db selects and opens the configured store driver.
package db

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"github.com/rs/zerolog"

	"matrimony-subscription/internal/config"
	"matrimony-subscription/internal/domain/ports/repository"
	"matrimony-subscription/internal/infra/db/firestore"
	"matrimony-subscription/internal/infra/db/memory"
	"matrimony-subscription/internal/infra/db/postgres"
	"matrimony-subscription/internal/infra/logging"
)

// Stores is the set of repositories backed by one driver.
type Stores struct {
	Driver        string
	Subscriptions repository.SubscriptionRepository
	Usage         repository.ContactUsageRepository
	Purchases     repository.PurchaseRepository
	Packages      repository.PackageRepository
	Tx            repository.TransactionManager

	// Firebase is set by the firestore driver so identity can share the app.
	Firebase *firebase.App

	ping    func(ctx context.Context) error
	closers []func()
}

// Ping reports whether the backing store is reachable.
func (s *Stores) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close releases connections in reverse order of opening.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Open builds the repositories for cfg.Store.Driver. The postgres driver applies
// pending migrations first when store.auto_migrate is set.
func Open(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*Stores, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	log := logging.Component(logger, "store")

	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		if cfg.Store.AutoMigrate {
			if err := postgres.MigrateUp(ctx, cfg.Store.DatabaseURL); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
			log.Info().Msg("migrations applied")
		}
		pool, err := postgres.NewPgxPool(ctx, cfg.Store)
		if err != nil {
			return nil, err
		}
		log.Info().Int32("max_conns", cfg.Store.MaxConns).Msg("postgres connected")
		return &Stores{
			Driver:        cfg.Store.Driver,
			Subscriptions: postgres.NewSubscriptionRepo(pool),
			Usage:         postgres.NewContactUsageRepo(pool),
			Purchases:     postgres.NewPurchaseRepo(pool),
			Packages:      postgres.NewPackageRepo(pool),
			Tx:            postgres.NewTxManager(pool),
			ping:          pool.Ping,
			closers:       []func(){pool.Close},
		}, nil

	case config.StoreDriverFirestore:
		app, err := firestore.NewApp(ctx, cfg.Firebase)
		if err != nil {
			return nil, err
		}
		cli, err := firestore.NewClient(ctx, app)
		if err != nil {
			return nil, err
		}
		log.Info().Str("project_id", cfg.Firebase.ProjectID).Msg("firestore connected")
		return &Stores{
			Driver:        cfg.Store.Driver,
			Subscriptions: firestore.NewSubscriptionRepo(cli),
			Usage:         firestore.NewContactUsageRepo(cli),
			Purchases:     firestore.NewPurchaseRepo(cli),
			Packages:      firestore.NewPackageRepo(cli),
			Tx:            firestore.NewTxManager(cli, 0),
			Firebase:      app,
			ping:          firestore.Ping(cli),
			closers:       []func(){func() { _ = cli.Close() }},
		}, nil

	case config.StoreDriverMemory:
		st := memory.NewStore()
		log.Warn().Msg("using the in-memory store; state is lost on restart")
		return &Stores{
			Driver:        cfg.Store.Driver,
			Subscriptions: memory.NewSubscriptionRepo(st),
			Usage:         memory.NewContactUsageRepo(st),
			Purchases:     memory.NewPurchaseRepo(st),
			Packages:      memory.NewPackageRepo(st),
			Tx:            st,
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}
