package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"matrimony-subscription/internal/domain"
	"matrimony-subscription/internal/infra/logging"
	"matrimony-subscription/internal/usecase"
)

// CatalogReconciler periodically compares the package mirror with the catalog and
// re-syncs when packages are missing or stale. Mirror-only packages are reported but
// never removed.
type CatalogReconciler struct {
	uc       usecase.CatalogUseCase
	interval time.Duration
	log      *zerolog.Logger
}

func NewCatalogReconciler(uc usecase.CatalogUseCase, interval time.Duration, logger *zerolog.Logger) *CatalogReconciler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &CatalogReconciler{uc: uc, interval: interval, log: logging.Component(logger, "catalog_reconciler")}
}

// Start reconciles once immediately and then on every tick until ctx is done.
func (w *CatalogReconciler) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("starting catalog reconciler")
	w.tick(ctx)
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping catalog reconciler")
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

// tick reports whether a sync was written.
func (w *CatalogReconciler) tick(ctx context.Context) bool {
	drift, err := w.uc.Drift(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("catalog drift check failed")
		return false
	}
	stale := 0
	for _, d := range drift {
		switch d.Kind {
		case usecase.DriftUnknown:
			w.log.Warn().Str("package_id", d.PackageID).Msg("mirror holds a package the catalog does not know")
		default:
			stale++
		}
	}
	if stale == 0 {
		return false
	}
	n, err := w.uc.Sync(ctx)
	switch {
	case errors.Is(err, domain.ErrLockNotAcquired):
		w.log.Debug().Msg("another instance is syncing the catalog")
		return false
	case err != nil:
		w.log.Error().Err(err).Int("stale", stale).Msg("catalog reconcile failed")
		return false
	}
	w.log.Info().Int("stale", stale).Int("written", n).Msg("catalog reconciled")
	return true
}
