package pvgis

import (
	"context"
	"errors"
	"fmt"

	"github.com/iwvelando/solar-estimator/internal/metrics"
	"github.com/iwvelando/solar-estimator/internal/pvgis/cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CachedProvider puts a cache.Store in front of a Provider. Concurrent
// misses for the same key share one upstream call.
type CachedProvider struct {
	provider Provider
	store    cache.Store
	group    singleflight.Group
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewCachedProvider wraps p. A nil logger is replaced with a no-op one and
// a nil metrics value records nothing.
func NewCachedProvider(p Provider, store cache.Store, logger *zap.Logger, m *metrics.Metrics) *CachedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProvider{
		provider: p,
		store:    store,
		logger:   logger,
		metrics:  m,
	}
}

// Fetch implements Provider.
func (c *CachedProvider) Fetch(ctx context.Context, q Query) (*Response, error) {
	resp, _, err := c.Lookup(ctx, q)
	return resp, err
}

// Lookup returns the response and whether it came from the cache. Store
// failures degrade to a miss.
func (c *CachedProvider) Lookup(ctx context.Context, q Query) (*Response, bool, error) {
	if err := q.Validate(); err != nil {
		return nil, false, err
	}
	key := StoreKey(q)

	if resp, ok := c.fromStore(key); ok {
		c.metrics.CacheLookup(metrics.CacheHit)
		return resp, true, nil
	}
	c.metrics.CacheLookup(metrics.CacheMiss)

	// The shared fetch outlives any one caller; the client timeout bounds it.
	ch := c.group.DoChan(key, func() (any, error) {
		resp, err := c.provider.Fetch(context.WithoutCancel(ctx), q)
		if err != nil {
			return nil, err
		}
		if raw := resp.Raw(); len(raw) > 0 {
			if setErr := c.store.Set(key, raw); setErr != nil && !errors.Is(setErr, cache.ErrDisabled) {
				c.logger.Warn("failed to store yield response",
					zap.String("op", "pvgis.Lookup"),
					zap.String("key", key),
					zap.Error(setErr))
			}
		}
		return resp, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, false, fmt.Errorf("%w: %w", ErrUnreachable, ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, false, res.Err
	}

	c.logger.Debug("yield cache miss",
		zap.String("op", "pvgis.Lookup"),
		zap.String("key", key),
		zap.Bool("shared", res.Shared))
	return res.Val.(*Response), false, nil
}

func (c *CachedProvider) fromStore(key string) (*Response, bool) {
	entry, err := c.store.Get(key)
	switch {
	case err == nil:
	case errors.Is(err, cache.ErrNotFound), errors.Is(err, cache.ErrExpired), errors.Is(err, cache.ErrDisabled):
		return nil, false
	default:
		c.metrics.CacheLookup(metrics.CacheError)
		c.logger.Warn("yield cache read failed",
			zap.String("op", "pvgis.Lookup"),
			zap.String("key", key),
			zap.Error(err))
		return nil, false
	}

	resp, err := DecodeResponse(entry.Data)
	if err != nil {
		c.logger.Warn("dropping undecodable cache entry",
			zap.String("op", "pvgis.Lookup"),
			zap.String("key", key),
			zap.Error(err))
		_ = c.store.Delete(key)
		return nil, false
	}
	return resp, true
}

// StoreKey is cache.Key for q, with a suffix when the provider is asked to
// choose the angles, since those replies do not depend on the given tilt.
func StoreKey(q Query) string {
	key := cache.Key(q.Lat, q.Lon, q.PeakPowerKwp, q.LossPct, q.AngleDeg, q.Aspect)
	switch {
	case q.OptimalAngles:
		key += "|optimal"
	case q.OptimalInclination:
		key += "|optimal-tilt"
	}
	return key
}
