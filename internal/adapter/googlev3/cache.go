package googlev3

import (
	"context"
	"fmt"
	"slices"

	"github.com/couchcryptid/geocoder-service/internal/domain"
	"github.com/couchcryptid/geocoder-service/internal/observability"
	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache. Every caller
// gets its own copy of a cached response.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *lru.Cache[string, domain.Response]
	metrics *observability.Metrics
}

var _ domain.Geocoder = (*CachedGeocoder)(nil)

// NewCachedGeocoder creates a cache decorator holding at most maxEntries
// responses. maxEntries must be positive.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) (*CachedGeocoder, error) {
	cache, err := lru.New[string, domain.Response](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create response cache: %w", err)
	}
	return &CachedGeocoder{inner: inner, cache: cache, metrics: metrics}, nil
}

func (c *CachedGeocoder) Geocode(ctx context.Context, q domain.GeocodeQuery) (domain.Response, error) {
	return c.lookup("geocode", q.CacheKey(), func() (domain.Response, error) {
		return c.inner.Geocode(ctx, q)
	})
}

func (c *CachedGeocoder) Reverse(ctx context.Context, q domain.ReverseQuery) (domain.Response, error) {
	return c.lookup("reverse", q.CacheKey(), func() (domain.Response, error) {
		return c.inner.Reverse(ctx, q)
	})
}

// Len reports the number of cached responses.
func (c *CachedGeocoder) Len() int {
	return c.cache.Len()
}

func (c *CachedGeocoder) lookup(method, key string, fetch func() (domain.Response, error)) (domain.Response, error) {
	if resp, ok := c.cache.Get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues(method, "hit").Inc()
		return cloneResponse(resp), nil
	}
	c.metrics.GeocodeCache.WithLabelValues(method, "miss").Inc()

	resp, err := fetch()
	if err != nil {
		return resp, err
	}
	// Empty answers stay uncached so they are retried.
	if len(resp.Locations) > 0 {
		c.cache.Add(key, cloneResponse(resp))
	}
	return resp, nil
}

func cloneResponse(r domain.Response) domain.Response {
	r.Locations = slices.Clone(r.Locations)
	r.Document = slices.Clone(r.Document)
	return r
}
