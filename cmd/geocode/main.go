// Command geocode resolves one address or coordinate against the Google
// geocoding API and prints the results as a table. Connection settings
// default to the service environment (GOOGLE_* variables or a .env file).
//
// Usage:
//
//	go run ./cmd/geocode -address "1600 Amphitheatre Pkwy, Mountain View, CA"
//	go run ./cmd/geocode -latlng 40.714224,-73.961452 -all
//	go run ./cmd/geocode -address "Winnetka" -bounds "34.17,-118.60|34.23,-118.50" -url-only
//	go run ./cmd/geocode -address "Champ de Mars, Paris" -compare
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	geo "github.com/codingsince1985/geo-golang"
	"github.com/codingsince1985/geo-golang/openstreetmap"
	"github.com/couchcryptid/geocoder-service/internal/adapter/geocompat"
	"github.com/couchcryptid/geocoder-service/internal/adapter/googlev3"
	"github.com/couchcryptid/geocoder-service/internal/config"
	"github.com/couchcryptid/geocoder-service/internal/domain"
	"github.com/couchcryptid/geocoder-service/internal/observability"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/olekukonko/tablewriter"
)

type options struct {
	address  string
	latlng   string
	bounds   string
	region   string
	language string
	sensor   bool
	all      bool
	urlOnly  bool
	compare  bool
	document bool
	logLevel string

	client googlev3.Options
}

func main() {
	err := run(os.Args[1:], os.Stdout)
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return
	}
	fmt.Fprintln(os.Stderr, "geocode:", err)
	os.Exit(exitCode(err))
}

func run(args []string, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	opts, err := parseFlags(args, cfg)
	if err != nil {
		return err
	}

	logger := sharedobs.NewLogger(opts.logLevel, "text")
	client, err := googlev3.NewClient(opts.client, logger, observability.NewMetrics())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.client.Timeout+5*time.Second)
	defer cancel()

	if opts.address != "" {
		return geocode(ctx, client, opts, out)
	}
	return reverse(ctx, client, opts, out)
}

func parseFlags(args []string, cfg *config.Config) (options, error) {
	var opts options
	fs := flag.NewFlagSet("geocode", flag.ContinueOnError)

	fs.StringVar(&opts.address, "address", "", "address to geocode")
	fs.StringVar(&opts.latlng, "latlng", "", "\"lat,lng\" to reverse geocode")
	fs.StringVar(&opts.bounds, "bounds", "", "viewport bias \"swLat,swLng|neLat,neLng\" (forward only)")
	fs.StringVar(&opts.region, "region", "", "region code bias, e.g. \"uk\" (forward only)")
	fs.StringVar(&opts.language, "language", "", "result language, e.g. \"fr\"")
	fs.BoolVar(&opts.sensor, "sensor", false, "request comes from a location sensor")
	fs.BoolVar(&opts.all, "all", false, "print every result instead of the first (default for -latlng)")
	fs.BoolVar(&opts.urlOnly, "url-only", false, "print the request URL without sending it")
	fs.BoolVar(&opts.compare, "compare", false, "cross-check the first result against OpenStreetMap")
	fs.BoolVar(&opts.document, "document", false, "print the raw response document")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "log level")

	fs.StringVar(&opts.client.Domain, "domain", cfg.GoogleDomain, "API host")
	fs.StringVar(&opts.client.Protocol, "protocol", cfg.GoogleProtocol, "http or https")
	fs.StringVar(&opts.client.ClientID, "client-id", cfg.GoogleClientID, "premium client id")
	fs.StringVar(&opts.client.SecretKey, "secret-key", cfg.GoogleSecretKey, "premium signing key")
	fs.DurationVar(&opts.client.Timeout, "timeout", cfg.GoogleTimeout, "request timeout")
	fs.StringVar(&opts.client.ProxyURL, "proxy", cfg.GoogleProxyURL, "HTTP proxy URL")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if (opts.address == "") == (opts.latlng == "") {
		fs.Usage()
		return options{}, errors.New("exactly one of -address or -latlng is required")
	}
	return opts, nil
}

func geocode(ctx context.Context, client *googlev3.Client, opts options, out io.Writer) error {
	q := domain.NewGeocodeQuery(opts.address)
	if opts.bounds != "" {
		b, err := domain.ParseBounds(opts.bounds)
		if err != nil {
			return err
		}
		q.Bounds = &b
	}
	q.Region = opts.region
	q.Language = opts.language
	q.Sensor = opts.sensor
	q.ExactlyOne = !opts.all

	if opts.urlOnly {
		_, err := fmt.Fprintln(out, client.GeocodeURL(q))
		return err
	}

	resp, err := client.Geocode(ctx, q)
	if err != nil {
		return err
	}
	if err := render(out, resp, opts.document); err != nil {
		return err
	}
	if !opts.compare {
		return nil
	}

	first, ok := resp.First()
	if !ok {
		return nil
	}
	return compareForward(out, opts.address, first, client, opts.client.Timeout)
}

func reverse(ctx context.Context, client *googlev3.Client, opts options, out io.Writer) error {
	point, err := domain.ParseCoordinate(opts.latlng)
	if err != nil {
		return err
	}
	q := domain.NewReverseQuery(point)
	q.Language = opts.language
	q.Sensor = opts.sensor
	q.ExactlyOne = false

	if opts.urlOnly {
		_, err := fmt.Fprintln(out, client.ReverseURL(q))
		return err
	}

	resp, err := client.Reverse(ctx, q)
	if err != nil {
		return err
	}
	if err := render(out, resp, opts.document); err != nil {
		return err
	}
	if !opts.compare {
		return nil
	}
	return compareReverse(out, point, client, opts.client.Timeout)
}

func render(out io.Writer, resp domain.Response, document bool) error {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"#", "Address", "Lat", "Lng"})
	for i, loc := range resp.Locations {
		table.Append([]string{
			strconv.Itoa(i + 1),
			loc.Address,
			formatCoord(loc.Lat),
			formatCoord(loc.Lng),
		})
	}
	table.SetCaption(true, fmt.Sprintf("status %s, %d result(s)", resp.Status, len(resp.Locations)))
	table.Render()

	if document {
		_, err := fmt.Fprintf(out, "%s\n", resp.Document)
		return err
	}
	return nil
}

// compareForward geocodes address with OpenStreetMap and reports how far its
// answer is from Google's.
func compareForward(out io.Writer, address string, google domain.Location, client *googlev3.Client, timeout time.Duration) error {
	providers := map[string]geo.Geocoder{
		"google":        geocompat.New(client, timeout),
		"openstreetmap": openstreetmap.Geocoder(),
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Provider", "Lat", "Lng", "Distance (km)"})
	for _, name := range []string{"google", "openstreetmap"} {
		loc, err := providers[name].Geocode(address)
		switch {
		case err != nil:
			table.Append([]string{name, "error", err.Error(), ""})
		case loc == nil:
			table.Append([]string{name, "no result", "", ""})
		default:
			km := distanceKm(google.Coordinate(), geocompat.Location(*loc))
			table.Append([]string{name, formatCoord(loc.Lat), formatCoord(loc.Lng), strconv.FormatFloat(km, 'f', 2, 64)})
		}
	}
	table.Render()
	return nil
}

// compareReverse prints the address both providers give for point.
func compareReverse(out io.Writer, point domain.Coordinate, client *googlev3.Client, timeout time.Duration) error {
	providers := map[string]geo.Geocoder{
		"google":        geocompat.New(client, timeout),
		"openstreetmap": openstreetmap.Geocoder(),
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Provider", "Address"})
	for _, name := range []string{"google", "openstreetmap"} {
		addr, err := providers[name].ReverseGeocode(point.Lat, point.Lng)
		switch {
		case err != nil:
			table.Append([]string{name, "error: " + err.Error()})
		case addr == nil:
			table.Append([]string{name, "no result"})
		default:
			table.Append([]string{name, addr.FormattedAddress})
		}
	}
	table.Render()
	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 7, 64)
}

// distanceKm is the haversine distance between two points.
func distanceKm(pa, pb domain.Coordinate) float64 {
	const earthRadiusKm = 6371.0

	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(pb.Lat - pa.Lat)
	dLng := rad(pb.Lng - pa.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(pa.Lat))*math.Cos(rad(pb.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// exitCode distinguishes usage and configuration problems from lookup
// failures.
func exitCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrConfiguration):
		return 2
	case errors.Is(err, domain.ErrQuery):
		return 3
	default:
		return 1
	}
}
