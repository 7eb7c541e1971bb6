// Package rediscache shares geocoding responses between service replicas
// through Redis. It sits behind the in-process LRU cache and in front of the
// Google client, so a lookup paid for by one replica is served to all.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/geocoder-service/internal/domain"
	"github.com/couchcryptid/geocoder-service/internal/observability"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "geocoder:v2:"

// Geocoder is a domain.Geocoder decorator backed by Redis. Redis failures
// are logged and the lookup falls through to the wrapped geocoder.
type Geocoder struct {
	inner   domain.Geocoder
	rdb     *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
}

var _ domain.Geocoder = (*Geocoder)(nil)

// NewClient connects to the Redis instance at url ("redis://host:port/db").
func NewClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}

// New wraps inner. Entries expire after ttl.
func New(inner domain.Geocoder, rdb *redis.Client, ttl time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Geocoder {
	return &Geocoder{
		inner:   inner,
		rdb:     rdb,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
}

func (g *Geocoder) Geocode(ctx context.Context, q domain.GeocodeQuery) (domain.Response, error) {
	return g.lookup(ctx, "geocode", q.CacheKey(), func() (domain.Response, error) {
		return g.inner.Geocode(ctx, q)
	})
}

func (g *Geocoder) Reverse(ctx context.Context, q domain.ReverseQuery) (domain.Response, error) {
	return g.lookup(ctx, "reverse", q.CacheKey(), func() (domain.Response, error) {
		return g.inner.Reverse(ctx, q)
	})
}

// CheckReadiness pings Redis.
func (g *Geocoder) CheckReadiness(ctx context.Context) error {
	if err := g.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

// entry is the stored form of a response.
type entry struct {
	Status    domain.Status     `json:"status"`
	Locations []domain.Location `json:"locations"`
	Document  json.RawMessage   `json:"document,omitempty"`
}

func (g *Geocoder) lookup(ctx context.Context, method, key string, fetch func() (domain.Response, error)) (domain.Response, error) {
	key = keyPrefix + key

	if resp, ok := g.get(ctx, method, key); ok {
		return resp, nil
	}

	resp, err := fetch()
	if err != nil || len(resp.Locations) == 0 {
		return resp, err
	}

	data, err := json.Marshal(entry{Status: resp.Status, Locations: resp.Locations, Document: resp.Document})
	if err != nil {
		g.logger.Warn("redis cache encode failed", "key", key, "error", err)
		return resp, nil
	}
	if err := g.rdb.Set(ctx, key, data, g.ttl).Err(); err != nil {
		g.logger.Warn("redis cache write failed", "key", key, "error", err)
	}
	return resp, nil
}

func (g *Geocoder) get(ctx context.Context, method, key string) (domain.Response, bool) {
	data, err := g.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		g.metrics.RemoteCache.WithLabelValues(method, "miss").Inc()
		return domain.Response{}, false
	case err != nil:
		g.metrics.RemoteCache.WithLabelValues(method, "error").Inc()
		g.logger.Warn("redis cache read failed", "key", key, "error", err)
		return domain.Response{}, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		g.metrics.RemoteCache.WithLabelValues(method, "error").Inc()
		g.logger.Warn("redis cache entry corrupt", "key", key, "error", err)
		return domain.Response{}, false
	}
	g.metrics.RemoteCache.WithLabelValues(method, "hit").Inc()
	return domain.Response{Status: e.Status, Locations: e.Locations, Document: e.Document}, true
}
