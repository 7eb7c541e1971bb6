package googlev3

import (
	"context"
	"testing"

	"github.com/couchcryptid/geocoder-service/internal/domain"
	"github.com/couchcryptid/geocoder-service/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingGeocoder struct {
	forwardCalls int
	reverseCalls int
	resp         domain.Response
	err          error
}

func (m *countingGeocoder) Geocode(_ context.Context, _ domain.GeocodeQuery) (domain.Response, error) {
	m.forwardCalls++
	return m.resp, m.err
}

func (m *countingGeocoder) Reverse(_ context.Context, _ domain.ReverseQuery) (domain.Response, error) {
	m.reverseCalls++
	return m.resp, m.err
}

func newCached(t *testing.T, inner domain.Geocoder, size int, m *observability.Metrics) *CachedGeocoder {
	t.Helper()
	cached, err := NewCachedGeocoder(inner, size, m)
	require.NoError(t, err)
	return cached
}

func austinResponse() domain.Response {
	return domain.Response{
		Status:    domain.StatusOK,
		Locations: []domain.Location{{Address: "Austin, TX, USA", Lat: 30.2672, Lng: -97.7431}},
	}
}

func TestCachedGeocoder_GeocodeCacheHit(t *testing.T) {
	m := observability.NewMetricsForTesting()
	inner := &countingGeocoder{resp: austinResponse()}
	cached := newCached(t, inner, 10, m)

	r1, err := cached.Geocode(context.Background(), domain.NewGeocodeQuery("Austin, TX"))
	require.NoError(t, err)
	r2, err := cached.Geocode(context.Background(), domain.NewGeocodeQuery("Austin, TX"))
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, inner.forwardCalls, "should only call inner once")
	assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeCache.WithLabelValues("geocode", "hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeCache.WithLabelValues("geocode", "miss")), 0)
}

func TestCachedGeocoder_ReverseCacheHit(t *testing.T) {
	inner := &countingGeocoder{resp: austinResponse()}
	cached := newCached(t, inner, 10, observability.NewMetricsForTesting())

	q := domain.NewReverseQuery(domain.Coordinate{Lat: 30.2672, Lng: -97.7431})
	_, err := cached.Reverse(context.Background(), q)
	require.NoError(t, err)

	// The same point expressed differently shares the cache entry.
	q2 := domain.NewReverseQuery(domain.LatLngString("30.2672,-97.7431"))
	_, err = cached.Reverse(context.Background(), q2)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.reverseCalls)
}

func TestCachedGeocoder_QueryOptionsAreKeyed(t *testing.T) {
	inner := &countingGeocoder{resp: austinResponse()}
	cached := newCached(t, inner, 10, observability.NewMetricsForTesting())
	ctx := context.Background()

	base := domain.NewGeocodeQuery("Austin")
	withRegion := base
	withRegion.Region = "us"
	withLanguage := base
	withLanguage.Language = "es"
	all := base
	all.ExactlyOne = false

	for _, q := range []domain.GeocodeQuery{base, withRegion, withLanguage, all} {
		_, err := cached.Geocode(ctx, q)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, inner.forwardCalls)
}

func TestCachedGeocoder_EmptyResultNotCached(t *testing.T) {
	inner := &countingGeocoder{resp: domain.Response{Status: domain.StatusOK, Locations: []domain.Location{}}}
	cached := newCached(t, inner, 10, observability.NewMetricsForTesting())

	_, _ = cached.Geocode(context.Background(), domain.NewGeocodeQuery("nowhere"))
	_, _ = cached.Geocode(context.Background(), domain.NewGeocodeQuery("nowhere"))

	assert.Equal(t, 2, inner.forwardCalls)
}

func TestCachedGeocoder_ErrorNotCached(t *testing.T) {
	inner := &countingGeocoder{err: domain.StatusError(domain.StatusOverQueryLimit)}
	cached := newCached(t, inner, 10, observability.NewMetricsForTesting())

	_, err := cached.Geocode(context.Background(), domain.NewGeocodeQuery("Austin"))
	require.ErrorIs(t, err, domain.ErrTooManyQueries)
	_, err = cached.Geocode(context.Background(), domain.NewGeocodeQuery("Austin"))
	require.Error(t, err)

	assert.Equal(t, 2, inner.forwardCalls)
}

func TestNewCachedGeocoder_RejectsNonPositiveSize(t *testing.T) {
	_, err := NewCachedGeocoder(&countingGeocoder{}, 0, observability.NewMetricsForTesting())
	require.Error(t, err)
}

func TestCachedGeocoder_EvictsLeastRecentlyUsed(t *testing.T) {
	inner := &countingGeocoder{resp: austinResponse()}
	cached := newCached(t, inner, 2, observability.NewMetricsForTesting())
	ctx := context.Background()

	for _, addr := range []string{"a", "b", "a", "c"} {
		_, err := cached.Geocode(ctx, domain.NewGeocodeQuery(addr))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, inner.forwardCalls)
	assert.Equal(t, 2, cached.Len())

	// "b" was least recently used when "c" arrived.
	_, err := cached.Geocode(ctx, domain.NewGeocodeQuery("a"))
	require.NoError(t, err)
	assert.Equal(t, 3, inner.forwardCalls)
	_, err = cached.Geocode(ctx, domain.NewGeocodeQuery("b"))
	require.NoError(t, err)
	assert.Equal(t, 4, inner.forwardCalls)
}

func TestCachedGeocoder_CallersGetIndependentCopies(t *testing.T) {
	resp := austinResponse()
	resp.Document = []byte(`{"status":"OK"}`)
	inner := &countingGeocoder{resp: resp}
	cached := newCached(t, inner, 10, observability.NewMetricsForTesting())
	ctx := context.Background()

	first, err := cached.Geocode(ctx, domain.NewGeocodeQuery("Austin"))
	require.NoError(t, err)
	first.Locations[0].Address = "mutated"
	first.Document[0] = 'X'

	second, err := cached.Geocode(ctx, domain.NewGeocodeQuery("Austin"))
	require.NoError(t, err)
	second.Locations[0].Lat = 0

	third, err := cached.Geocode(ctx, domain.NewGeocodeQuery("Austin"))
	require.NoError(t, err)
	assert.Equal(t, "Austin, TX, USA", third.Locations[0].Address)
	assert.InDelta(t, 30.2672, third.Locations[0].Lat, 1e-9)
	assert.JSONEq(t, `{"status":"OK"}`, string(third.Document))
	assert.Equal(t, 1, inner.forwardCalls)
}
