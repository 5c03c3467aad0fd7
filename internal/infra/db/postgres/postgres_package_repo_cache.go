package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"matrimony-subscription/internal/domain/model"
	"matrimony-subscription/internal/domain/ports/repository"
	"matrimony-subscription/internal/infra/logging"
	"matrimony-subscription/internal/infra/metrics"
	red "matrimony-subscription/internal/infra/redis"
)

var _ repository.PackageRepository = (*packageRepoCacheDecorator)(nil)

const packagesAllKey = "packages:all"

// packageRepoCacheDecorator caches mirror reads in Redis. Redis failures degrade to
// the inner repository; they never fail a read.
type packageRepoCacheDecorator struct {
	inner repository.PackageRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

// NewPackageRepoCacheDecorator wraps any PackageRepository (postgres or firestore).
func NewPackageRepoCacheDecorator(inner repository.PackageRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.PackageRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &packageRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   logging.Component(logger, "package_cache"),
	}
}

func packageKey(id string) string { return fmt.Sprintf("package:%s", id) }

func (d *packageRepoCacheDecorator) cacheErr(ctx context.Context, key string, err error) {
	if err != nil && !errors.Is(err, red.ErrCacheMiss) {
		logging.With(ctx, d.log).Warn().Err(err).Str("key", key).Msg("redis unavailable, bypassing cache")
	}
}

func (d *packageRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Package, error) {
	key := packageKey(id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var p model.Package
		if json.Unmarshal([]byte(val), &p) == nil {
			metrics.IncCacheRequest("package", "hit")
			return &p, nil
		}
	}
	d.cacheErr(ctx, key, err)

	metrics.IncCacheRequest("package", "miss")
	p, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(p); err == nil {
		d.cacheErr(ctx, key, d.cache.Set(ctx, key, b, d.ttl))
	}
	return p, nil
}

// Save invalidates on both sides of the write. A read that misses while the write
// is in flight may re-cache the old row; the second delete drops it.
func (d *packageRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, p *model.Package) error {
	d.invalidate(ctx, p.ID)
	if err := d.inner.Save(ctx, tx, p); err != nil {
		return err
	}
	d.invalidate(ctx, p.ID)
	return nil
}

func (d *packageRepoCacheDecorator) invalidate(ctx context.Context, id string) {
	d.cacheErr(ctx, packagesAllKey, d.cache.Del(ctx, packageKey(id), packagesAllKey))
}

func (d *packageRepoCacheDecorator) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Package, error) {
	val, err := d.cache.Get(ctx, packagesAllKey)
	if err == nil {
		var pkgs []*model.Package
		if json.Unmarshal([]byte(val), &pkgs) == nil {
			metrics.IncCacheRequest("package_list", "hit")
			return pkgs, nil
		}
	}
	d.cacheErr(ctx, packagesAllKey, err)

	metrics.IncCacheRequest("package_list", "miss")
	pkgs, err := d.inner.ListAll(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(pkgs) > 0 {
		if b, err := json.Marshal(pkgs); err == nil {
			d.cacheErr(ctx, packagesAllKey, d.cache.Set(ctx, packagesAllKey, b, d.ttl))
		}
	}
	return pkgs, nil
}
