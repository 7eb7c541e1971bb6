package googlev3

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/geocoder-service/internal/domain"
	"github.com/couchcryptid/geocoder-service/internal/observability"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	// DefaultDomain is the global Google Maps API host.
	DefaultDomain = "maps.googleapis.com"

	defaultProtocol = "https"
	defaultTimeout  = 10 * time.Second

	// maxBodyBytes bounds how much of a response is read.
	maxBodyBytes = 4 << 20
)

// HTTPDoer sends HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Client.
type Options struct {
	// Domain is the API host, e.g. "maps.google.co.uk". Leading and
	// trailing slashes are ignored.
	Domain string
	// Protocol is "http" or "https".
	Protocol string

	// ClientID and SecretKey are premium account credentials. Either both or
	// neither must be set. SecretKey is URL-safe base64; padding is optional.
	ClientID  string
	SecretKey string

	// Timeout and ProxyURL configure the default transport. They are ignored
	// when HTTPClient is set.
	Timeout  time.Duration
	ProxyURL string

	// QPS throttles outgoing requests. Zero disables throttling.
	QPS float64

	HTTPClient HTTPDoer
	Clock      clockwork.Clock
}

// Client implements domain.Geocoder using the Google Maps Geocoding API.
// It holds no per-call state and is safe for concurrent use.
type Client struct {
	domain     string
	protocol   string
	clientID   string
	secret     []byte
	httpClient HTTPDoer
	limiter    *rate.Limiter
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
}

var _ domain.Geocoder = (*Client)(nil)

// NewClient validates opts and creates a Google geocoding client. Invalid
// settings produce a domain.KindConfiguration error.
func NewClient(opts Options, logger *slog.Logger, metrics *observability.Metrics) (*Client, error) {
	host := strings.Trim(opts.Domain, "/")
	if host == "" {
		host = DefaultDomain
	}

	protocol := strings.ToLower(opts.Protocol)
	if protocol == "" {
		protocol = defaultProtocol
	}
	if protocol != "http" && protocol != "https" {
		return nil, domain.ConfigError("supported protocols are http and https")
	}

	if opts.ClientID != "" && opts.SecretKey == "" {
		return nil, domain.ConfigError("must provide secret key with client id")
	}
	if opts.SecretKey != "" && opts.ClientID == "" {
		return nil, domain.ConfigError("must provide client id with secret key")
	}

	var secret []byte
	if opts.SecretKey != "" {
		var err error
		secret, err = decodeSecret(opts.SecretKey)
		if err != nil {
			return nil, &domain.Error{Kind: domain.KindConfiguration, Message: "secret key is not url-safe base64", Err: err}
		}
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		var err error
		httpClient, err = newHTTPClient(opts.Timeout, opts.ProxyURL)
		if err != nil {
			return nil, err
		}
	}

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	var limiter *rate.Limiter
	if opts.QPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.QPS), 1)
	}

	c := &Client{
		domain:     host,
		protocol:   protocol,
		clientID:   opts.ClientID,
		secret:     secret,
		httpClient: httpClient,
		limiter:    limiter,
		clock:      clock,
		logger:     logger,
		metrics:    metrics,
	}
	if c.Premium() {
		metrics.GeocodePremium.Set(1)
	}
	return c, nil
}

func newHTTPClient(timeout time.Duration, proxyURL string) (*http.Client, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil || u.Host == "" {
			return nil, &domain.Error{Kind: domain.KindConfiguration, Message: fmt.Sprintf("invalid proxy url %q", proxyURL), Err: err}
		}
		transport.Proxy = http.ProxyURL(u)
	}
	return &http.Client{Timeout: timeout, Transport: transport}, nil
}

func decodeSecret(key string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(key), "="))
}

// Premium reports whether requests are signed.
func (c *Client) Premium() bool {
	return c.clientID != ""
}

// CheckReadiness reports the client as ready; settings were validated at
// construction and no connection is held.
func (c *Client) CheckReadiness(_ context.Context) error {
	return nil
}

// Geocode converts an address to locations.
func (c *Client) Geocode(ctx context.Context, q domain.GeocodeQuery) (domain.Response, error) {
	if strings.TrimSpace(q.Address) == "" {
		return domain.Response{}, domain.QueryError("address is required")
	}
	return c.lookup(ctx, "geocode", geocodeParams(q), q.ExactlyOne)
}

// Reverse converts a point to addresses.
func (c *Client) Reverse(ctx context.Context, q domain.ReverseQuery) (domain.Response, error) {
	if err := domain.CheckPoint(q.Point); err != nil {
		return domain.Response{}, domain.QueryError(err.Error())
	}
	return c.lookup(ctx, "reverse", reverseParams(q), q.ExactlyOne)
}

// GeocodeURL returns the URL Geocode would request for q.
func (c *Client) GeocodeURL(q domain.GeocodeQuery) string {
	return c.URL(geocodeParams(q))
}

// ReverseURL returns the URL Reverse would request for q.
func (c *Client) ReverseURL(q domain.ReverseQuery) string {
	return c.URL(reverseParams(q))
}

func geocodeParams(q domain.GeocodeQuery) url.Values {
	params := url.Values{
		"address": {q.Address},
		"sensor":  {strconv.FormatBool(q.Sensor)},
	}
	if q.Bounds != nil {
		params.Set("bounds", q.Bounds.String())
	}
	if q.Region != "" {
		params.Set("region", q.Region)
	}
	if q.Language != "" {
		params.Set("language", q.Language)
	}
	return params
}

func reverseParams(q domain.ReverseQuery) url.Values {
	params := url.Values{
		"latlng": {domain.FormatLatLng(q.Point)},
		"sensor": {strconv.FormatBool(q.Sensor)},
	}
	if q.Language != "" {
		params.Set("language", q.Language)
	}
	return params
}

func (c *Client) lookup(ctx context.Context, method string, params url.Values, exactlyOne bool) (domain.Response, error) {
	fullURL := c.URL(params)
	c.logger.Debug("geocode request", "method", method, "url", redactURL(fullURL))

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
			return domain.Response{}, fmt.Errorf("%s rate limit wait: %w", method, err)
		}
	}

	start := c.clock.Now()
	body, contentType, err := c.fetch(ctx, fullURL, method)
	c.metrics.GeocodeAPIDuration.WithLabelValues(method).Observe(c.clock.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		return domain.Response{}, err
	}

	resp, err := parseResponse(body, contentType, exactlyOne)
	if resp.Status != "" {
		c.metrics.GeocodeStatus.WithLabelValues(string(resp.Status)).Inc()
	}
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		c.logger.Debug("geocode failed", "method", method, "status", resp.Status, "error", err)
		return resp, err
	}

	outcome := "success"
	if len(resp.Locations) == 0 {
		outcome = "empty"
	}
	c.metrics.GeocodeRequests.WithLabelValues(method, outcome).Inc()
	return resp, nil
}

func (c *Client) fetch(ctx context.Context, fullURL, method string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%s geocode request: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read %s response: %w", method, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, "", &domain.Error{
			Kind:    domain.KindGenericResult,
			Message: fmt.Sprintf("google API error: status %d: %s", resp.StatusCode, truncate(body, 256)),
		}
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
