package googlev3

import (
	"context"
	"io"
	"math"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/geocoder-service/internal/domain"
	"github.com/couchcryptid/geocoder-service/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	contentTypeJSON   = "application/json; charset=UTF-8"
	headerContentType = "Content-Type"

	amphitheatreBody = `{
  "status": "OK",
  "results": [{
    "formatted_address": "1600 Amphitheatre Parkway, Mountain View, CA 94043, USA",
    "geometry": {"location": {"lat": 37.4224764, "lng": -122.0842499}, "location_type": "ROOFTOP"},
    "place_id": "ChIJ2eUgeAK6j4ARbn5u_wAGqWA"
  }]
}`

	bedfordBody = `{
  "status": "OK",
  "results": [
    {"formatted_address": "277 Bedford Avenue, Brooklyn, NY 11211, USA",
     "geometry": {"location": {"lat": 40.714232, "lng": -73.9612889}}},
    {"formatted_address": "Grand St/Bedford Av, Brooklyn, NY 11211, USA",
     "geometry": {"location": {"lat": 40.7143528, "lng": -73.961452}}}
  ]
}`
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newClient(t *testing.T, opts Options) *Client {
	t.Helper()
	c, err := NewClient(opts, discardLogger(), observability.NewMetricsForTesting())
	require.NoError(t, err)
	return c
}

// serverOptions points a client at srv over plain http.
func serverOptions(srv *httptest.Server) Options {
	return Options{
		Domain:     strings.TrimPrefix(srv.URL, "http://"),
		Protocol:   "http",
		HTTPClient: srv.Client(),
	}
}

func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, body)
	}
}

func TestClient_Geocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, geocodePath, r.URL.Path)
		assert.Equal(t, amphitheatre, r.URL.Query().Get("address"))
		assert.Equal(t, "false", r.URL.Query().Get("sensor"))
		assert.False(t, r.URL.Query().Has("bounds"))
		assert.False(t, r.URL.Query().Has("client"))
		jsonHandler(amphitheatreBody)(w, r)
	}))
	defer srv.Close()

	c := newClient(t, serverOptions(srv))
	resp, err := c.Geocode(context.Background(), domain.NewGeocodeQuery(amphitheatre))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusOK, resp.Status)
	require.Len(t, resp.Locations, 1)
	loc := resp.Locations[0]
	assert.Equal(t, "1600 Amphitheatre Parkway, Mountain View, CA 94043, USA", loc.Address)
	assert.InDelta(t, 37.4224764, loc.Lat, 1e-9)
	assert.InDelta(t, -122.0842499, loc.Lng, 1e-9)
	assert.JSONEq(t, amphitheatreBody, string(resp.Document))
}

func TestClient_Geocode_QueryOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "Winnetka", q.Get("address"))
		assert.Equal(t, "34.172684,-118.604794|34.236144,-118.500938", q.Get("bounds"))
		assert.Equal(t, "us", q.Get("region"))
		assert.Equal(t, "es", q.Get("language"))
		assert.Equal(t, "true", q.Get("sensor"))
		jsonHandler(amphitheatreBody)(w, r)
	}))
	defer srv.Close()

	q := domain.NewGeocodeQuery("Winnetka")
	q.Bounds = &domain.Bounds{
		SouthWest: domain.Coordinate{Lat: 34.172684, Lng: -118.604794},
		NorthEast: domain.Coordinate{Lat: 34.236144, Lng: -118.500938},
	}
	q.Region = "us"
	q.Language = "es"
	q.Sensor = true

	c := newClient(t, serverOptions(srv))
	_, err := c.Geocode(context.Background(), q)
	require.NoError(t, err)
}

func TestClient_Geocode_ExactlyOne(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(bedfordBody))
	defer srv.Close()
	c := newClient(t, serverOptions(srv))

	one, err := c.Geocode(context.Background(), domain.NewGeocodeQuery("Bedford Ave"))
	require.NoError(t, err)
	require.Len(t, one.Locations, 1)
	assert.Equal(t, "277 Bedford Avenue, Brooklyn, NY 11211, USA", one.Locations[0].Address)

	q := domain.NewGeocodeQuery("Bedford Ave")
	q.ExactlyOne = false
	all, err := c.Geocode(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, all.Locations, 2)
	assert.Equal(t, one.Locations[0], all.Locations[0])
}

func TestClient_Reverse_AllResultsInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "40.714224,-73.961452", r.URL.Query().Get("latlng"))
		assert.False(t, r.URL.Query().Has("address"))
		jsonHandler(bedfordBody)(w, r)
	}))
	defer srv.Close()

	c := newClient(t, serverOptions(srv))
	resp, err := c.Reverse(context.Background(), domain.NewReverseQuery(domain.Coordinate{Lat: 40.714224, Lng: -73.961452}))
	require.NoError(t, err)

	require.Len(t, resp.Locations, 2)
	assert.Equal(t, "277 Bedford Avenue, Brooklyn, NY 11211, USA", resp.Locations[0].Address)
	assert.Equal(t, "Grand St/Bedford Av, Brooklyn, NY 11211, USA", resp.Locations[1].Address)
}

func TestClient_Reverse_PointForms(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = append(got, r.URL.Query().Get("latlng"))
		mu.Unlock()
		jsonHandler(bedfordBody)(w, r)
	}))
	defer srv.Close()
	c := newClient(t, serverOptions(srv))

	points := []domain.Point{
		domain.Coordinate{Lat: 40.714224, Lng: -73.961452},
		domain.Pair{40.714224, -73.961452},
		domain.LatLngString("40.714224,-73.961452"),
	}
	for _, p := range points {
		_, err := c.Reverse(context.Background(), domain.NewReverseQuery(p))
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"40.714224,-73.961452", "40.714224,-73.961452", "40.714224,-73.961452"}, got)
}

func TestClient_StatusErrors(t *testing.T) {
	tests := []struct {
		status domain.Status
		kind   domain.Kind
		is     []error
	}{
		{domain.StatusZeroResults, domain.KindQuery, []error{domain.ErrQuery}},
		{domain.StatusOverQueryLimit, domain.KindTooManyQueries, []error{domain.ErrTooManyQueries, domain.ErrQuery}},
		{domain.StatusRequestDenied, domain.KindQuery, []error{domain.ErrQuery}},
		{domain.StatusInvalidRequest, domain.KindQuery, []error{domain.ErrQuery}},
		{domain.StatusUnknownError, domain.KindGenericResult, []error{domain.ErrGenericResult}},
		{"SOMETHING_NEW", domain.KindGenericResult, []error{domain.ErrGenericResult}},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(jsonHandler(`{"status":"` + string(tt.status) + `","results":[]}`))
			defer srv.Close()

			c := newClient(t, serverOptions(srv))
			resp, err := c.Geocode(context.Background(), domain.NewGeocodeQuery("somewhere"))
			require.Error(t, err)

			assert.Equal(t, tt.kind, domain.KindOf(err))
			for _, target := range tt.is {
				assert.ErrorIs(t, err, target)
			}
			assert.Equal(t, tt.status, resp.Status)
			assert.Contains(t, err.Error(), string(tt.status))
		})
	}
}

func TestClient_ErrorMessageIsReported(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(`{"status":"REQUEST_DENIED","results":[],"error_message":"The provided API key is invalid."}`))
	defer srv.Close()

	c := newClient(t, serverOptions(srv))
	_, err := c.Geocode(context.Background(), domain.NewGeocodeQuery("somewhere"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "The provided API key is invalid.")
}

func TestClient_EmptyOKResults(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(`{"status":"OK","results":[]}`))
	defer srv.Close()

	m := observability.NewMetricsForTesting()
	c, err := NewClient(serverOptions(srv), discardLogger(), m)
	require.NoError(t, err)

	resp, err := c.Geocode(context.Background(), domain.NewGeocodeQuery("nowhere"))
	require.NoError(t, err)
	assert.Empty(t, resp.Locations)
	_, ok := resp.First()
	assert.False(t, ok)
	assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeRequests.WithLabelValues("geocode", "empty")), 0)
}

func TestClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(`{"status": "OK", "results": [`))
	defer srv.Close()

	c := newClient(t, serverOptions(srv))
	_, err := c.Geocode(context.Background(), domain.NewGeocodeQuery("somewhere"))
	require.ErrorIs(t, err, domain.ErrParse)
}

func TestClient_NonOKHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "backend unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newClient(t, serverOptions(srv))
	_, err := c.Geocode(context.Background(), domain.NewGeocodeQuery("somewhere"))
	require.ErrorIs(t, err, domain.ErrGenericResult)
	assert.Contains(t, err.Error(), "status 503")
	assert.Contains(t, err.Error(), "backend unavailable")
}

func TestClient_ContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := newClient(t, serverOptions(srv))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Geocode(ctx, domain.NewGeocodeQuery("slow"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, domain.KindUnknown, domain.KindOf(err))
}

func TestClient_SignedRequest(t *testing.T) {
	secret, err := decodeSecret(testSecretKey)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		unsigned, signature, found := strings.Cut(r.URL.RawQuery, "&signature=")
		assert.True(t, found, "signature must be the last parameter")
		assert.Equal(t, sign(secret, r.URL.Path+"?"+unsigned), signature)
		assert.Equal(t, testClientID, r.URL.Query().Get("client"))
		jsonHandler(amphitheatreBody)(w, r)
	}))
	defer srv.Close()

	opts := serverOptions(srv)
	opts.ClientID = testClientID
	opts.SecretKey = testSecretKey
	m := observability.NewMetricsForTesting()
	c, err := NewClient(opts, discardLogger(), m)
	require.NoError(t, err)
	assert.True(t, c.Premium())
	assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodePremium), 0)

	_, err = c.Geocode(context.Background(), domain.NewGeocodeQuery(amphitheatre))
	require.NoError(t, err)
	_, err = c.Reverse(context.Background(), domain.NewReverseQuery(domain.Pair{40.714224, -73.961452}))
	require.NoError(t, err)
}

func TestNewClient_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		msg  string
	}{
		{"unsupported protocol", Options{Protocol: "ftp"}, "supported protocols are http and https"},
		{"client id without secret", Options{ClientID: testClientID}, "must provide secret key with client id"},
		{"secret without client id", Options{SecretKey: testSecretKey}, "must provide client id with secret key"},
		{"secret not base64", Options{ClientID: testClientID, SecretKey: "not base64!"}, "secret key"},
		{"bad proxy", Options{ProxyURL: "://nope"}, "invalid proxy url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.opts, discardLogger(), observability.NewMetricsForTesting())
			require.ErrorIs(t, err, domain.ErrConfiguration)
			assert.Nil(t, c)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c := newClient(t, Options{ProxyURL: "http://proxy.internal:3128"})
	assert.Equal(t, DefaultDomain, c.domain)
	assert.Equal(t, "https", c.protocol)
	assert.False(t, c.Premium())
	require.NoError(t, c.CheckReadiness(context.Background()))

	hc, ok := c.httpClient.(*http.Client)
	require.True(t, ok)
	assert.Equal(t, defaultTimeout, hc.Timeout)
}

func TestClient_MissingInputSendsNothing(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		jsonHandler(amphitheatreBody)(w, r)
	}))
	defer srv.Close()
	c := newClient(t, serverOptions(srv))

	_, err := c.Geocode(context.Background(), domain.NewGeocodeQuery("  "))
	require.ErrorIs(t, err, domain.ErrQuery)
	_, err = c.Reverse(context.Background(), domain.NewReverseQuery(nil))
	require.ErrorIs(t, err, domain.ErrQuery)
	_, err = c.Reverse(context.Background(), domain.NewReverseQuery((*domain.Coordinate)(nil)))
	require.ErrorIs(t, err, domain.ErrQuery)
	_, err = c.Reverse(context.Background(), domain.NewReverseQuery(domain.Coordinate{Lat: math.NaN(), Lng: 2}))
	require.ErrorIs(t, err, domain.ErrQuery)
	_, err = c.Reverse(context.Background(), domain.NewReverseQuery(domain.Pair{1, math.Inf(1)}))
	require.ErrorIs(t, err, domain.ErrQuery)

	assert.Zero(t, hits.Load())
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		jsonHandler(amphitheatreBody)(w, r)
	}))
	defer srv.Close()

	opts := serverOptions(srv)
	opts.QPS = 0.01
	c := newClient(t, opts)

	_, err := c.Geocode(context.Background(), domain.NewGeocodeQuery(amphitheatre))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Geocode(ctx, domain.NewGeocodeQuery(amphitheatre))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")

	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_RecordsMetrics(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(amphitheatreBody))
	defer srv.Close()

	m := observability.NewMetricsForTesting()
	opts := serverOptions(srv)
	opts.Clock = clockwork.NewFakeClock()
	c, err := NewClient(opts, discardLogger(), m)
	require.NoError(t, err)

	_, err = c.Geocode(context.Background(), domain.NewGeocodeQuery(amphitheatre))
	require.NoError(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeRequests.WithLabelValues("geocode", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.GeocodeStatus.WithLabelValues("OK")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.GeocodeAPIDuration))
}
