// Package geocompat exposes a domain.Geocoder through the geo-golang
// geo.Geocoder interface so it can be used next to the providers that library
// ships, such as OpenStreetMap.
package geocompat

import (
	"context"
	"errors"
	"time"

	geo "github.com/codingsince1985/geo-golang"
	"github.com/couchcryptid/geocoder-service/internal/domain"
)

// Geocoder adapts a domain.Geocoder to geo.Geocoder. Lookups that find
// nothing return nil, nil as geo-golang providers do.
type Geocoder struct {
	inner   domain.Geocoder
	timeout time.Duration
}

var _ geo.Geocoder = (*Geocoder)(nil)

// New wraps inner. A zero timeout leaves calls unbounded.
func New(inner domain.Geocoder, timeout time.Duration) *Geocoder {
	return &Geocoder{inner: inner, timeout: timeout}
}

// Geocode returns the first location for address.
func (g *Geocoder) Geocode(address string) (*geo.Location, error) {
	ctx, cancel := g.context()
	defer cancel()

	resp, err := g.inner.Geocode(ctx, domain.NewGeocodeQuery(address))
	if err != nil {
		return nil, notFound(err)
	}
	loc, ok := resp.First()
	if !ok {
		return nil, nil
	}
	return &geo.Location{Lat: loc.Lat, Lng: loc.Lng}, nil
}

// ReverseGeocode returns the first address for lat, lng. Only
// FormattedAddress is populated.
func (g *Geocoder) ReverseGeocode(lat, lng float64) (*geo.Address, error) {
	ctx, cancel := g.context()
	defer cancel()

	q := domain.NewReverseQuery(domain.Coordinate{Lat: lat, Lng: lng})
	q.ExactlyOne = true
	resp, err := g.inner.Reverse(ctx, q)
	if err != nil {
		return nil, notFound(err)
	}
	loc, ok := resp.First()
	if !ok {
		return nil, nil
	}
	return &geo.Address{FormattedAddress: loc.Address}, nil
}

func (g *Geocoder) context() (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), g.timeout)
}

// notFound maps ZERO_RESULTS to a nil error and passes anything else through.
func notFound(err error) error {
	var gerr *domain.Error
	if errors.As(err, &gerr) && gerr.Status == domain.StatusZeroResults {
		return nil
	}
	return err
}

// Location converts a geo-golang location into a domain coordinate.
func Location(l geo.Location) domain.Coordinate {
	return domain.Coordinate{Lat: l.Lat, Lng: l.Lng}
}
