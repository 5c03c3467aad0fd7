package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"matrimony-subscription/internal/domain"
	"matrimony-subscription/internal/domain/model"
	"matrimony-subscription/internal/domain/ports/adapter"
	"matrimony-subscription/internal/domain/ports/repository"
	"matrimony-subscription/internal/infra/logging"
	"matrimony-subscription/internal/infra/metrics"
)

// PackageCatalog is the authoritative, read-only package table. It is built once at
// startup and injected wherever caps are needed.
type PackageCatalog struct {
	byID  map[string]*model.Package
	order []string
}

// NewPackageCatalog validates pkgs and freezes them. Duplicate ids are rejected.
func NewPackageCatalog(pkgs []*model.Package) (*PackageCatalog, error) {
	c := &PackageCatalog{byID: make(map[string]*model.Package, len(pkgs))}
	for _, p := range pkgs {
		if p == nil || p.ID == "" {
			return nil, fmt.Errorf("catalog: %w: empty package", domain.ErrInvalidArgument)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("catalog: %w: %s", domain.ErrAlreadyExists, p.ID)
		}
		cp := *p
		c.byID[p.ID] = &cp
		c.order = append(c.order, p.ID)
	}
	return c, nil
}

// PackageByID returns a copy of the package, so callers cannot mutate the catalog.
func (c *PackageCatalog) PackageByID(id string) (*model.Package, bool) {
	p, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

// List returns copies in declaration order.
func (c *PackageCatalog) List() []*model.Package {
	out := make([]*model.Package, 0, len(c.order))
	for _, id := range c.order {
		cp := *c.byID[id]
		out = append(out, &cp)
	}
	return out
}

const (
	catalogSyncLockKey = "lock:catalog:sync"
	catalogSyncLockTTL = 30 * time.Second
)

// DriftKind classifies a mismatch between the catalog and its store mirror.
type DriftKind string

const (
	DriftMissing DriftKind = "missing" // in catalog, absent from mirror
	DriftChanged DriftKind = "changed" // present in both but different
	DriftUnknown DriftKind = "unknown" // in mirror only
)

type DriftEntry struct {
	PackageID string    `json:"package_id"`
	Kind      DriftKind `json:"kind"`
}

// CatalogUseCase mirrors the in-code catalog into the store for other tooling.
// The quota engine never reads the mirror.
type CatalogUseCase interface {
	// Sync writes every catalog package to the mirror and returns how many were written.
	Sync(ctx context.Context) (int, error)
	// Drift lists differences between the catalog and the mirror, sorted by package id.
	Drift(ctx context.Context) ([]DriftEntry, error)
	Catalog() *PackageCatalog
}

var _ CatalogUseCase = (*catalogUC)(nil)

type catalogUC struct {
	catalog *PackageCatalog
	repo    repository.PackageRepository
	locker  adapter.Locker
	log     *zerolog.Logger
}

// NewCatalogUseCase wires the sync use case. locker and logger may be nil.
func NewCatalogUseCase(catalog *PackageCatalog, repo repository.PackageRepository, locker adapter.Locker, logger *zerolog.Logger) CatalogUseCase {
	if logger == nil {
		logger = logging.Nop()
	}
	return &catalogUC{
		catalog: catalog,
		repo:    repo,
		locker:  locker,
		log:     logging.Component(logger, "catalog"),
	}
}

func (c *catalogUC) Catalog() *PackageCatalog { return c.catalog }

func (c *catalogUC) Sync(ctx context.Context) (int, error) {
	log := logging.With(ctx, c.log)
	defer logging.TraceDuration(log, "CatalogUC.Sync")()

	if c.locker != nil {
		token, err := c.locker.TryLock(ctx, catalogSyncLockKey, catalogSyncLockTTL)
		if err != nil {
			metrics.IncCatalogSync("locked")
			if errors.Is(err, domain.ErrLockNotAcquired) {
				return 0, err
			}
			return 0, fmt.Errorf("catalog sync lock: %w", err)
		}
		defer func() {
			if err := c.locker.Unlock(context.WithoutCancel(ctx), catalogSyncLockKey, token); err != nil {
				log.Warn().Err(err).Msg("catalog sync unlock failed")
			}
		}()
	}

	written := 0
	for _, p := range c.catalog.List() {
		if err := c.repo.Save(ctx, repository.NoTX, p); err != nil {
			metrics.IncCatalogSync("error")
			log.Error().Err(err).Str("package_id", p.ID).Int("written", written).Msg("catalog sync failed")
			return written, fmt.Errorf("sync package %s: %w", p.ID, err)
		}
		written++
	}
	metrics.IncCatalogSync("ok")
	log.Info().Int("packages", written).Msg("catalog synced")
	return written, nil
}

func (c *catalogUC) Drift(ctx context.Context) ([]DriftEntry, error) {
	mirrored, err := c.repo.ListAll(ctx, repository.NoTX)
	if err != nil {
		return nil, fmt.Errorf("list package mirror: %w", err)
	}
	seen := make(map[string]bool, len(mirrored))
	var out []DriftEntry
	for _, m := range mirrored {
		seen[m.ID] = true
		want, ok := c.catalog.PackageByID(m.ID)
		switch {
		case !ok:
			out = append(out, DriftEntry{PackageID: m.ID, Kind: DriftUnknown})
		case !want.Equal(m):
			out = append(out, DriftEntry{PackageID: m.ID, Kind: DriftChanged})
		}
	}
	for _, p := range c.catalog.List() {
		if !seen[p.ID] {
			out = append(out, DriftEntry{PackageID: p.ID, Kind: DriftMissing})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PackageID < out[j].PackageID })
	return out, nil
}
