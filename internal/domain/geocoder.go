package domain

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
)

// Location is a single geocoding result.
type Location struct {
	Address string  `json:"formatted_address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// Coordinate returns the location's position as a Point.
func (l Location) Coordinate() Coordinate {
	return Coordinate{Lat: l.Lat, Lng: l.Lng}
}

// Response is the parsed outcome of one API call.
type Response struct {
	Status    Status
	Locations []Location

	// Document is the raw JSON body the locations were parsed from. It is
	// returned for debugging only and owned by the caller. Caching decorators
	// hand out copies of both slices.
	Document json.RawMessage
}

// First returns the first location, if any.
func (r Response) First() (Location, bool) {
	if len(r.Locations) == 0 {
		return Location{}, false
	}
	return r.Locations[0], true
}

// Bounds is a viewport used to bias ambiguous results.
type Bounds struct {
	SouthWest Coordinate `json:"southwest"`
	NorthEast Coordinate `json:"northeast"`
}

// String renders bounds in the API's "swLat,swLng|neLat,neLng" form.
func (b Bounds) String() string {
	return FormatLatLng(b.SouthWest) + "|" + FormatLatLng(b.NorthEast)
}

// GeocodeQuery describes a forward (address → coordinates) lookup.
type GeocodeQuery struct {
	Address  string
	Bounds   *Bounds
	Region   string
	Language string
	Sensor   bool

	// ExactlyOne keeps only the first result.
	ExactlyOne bool
}

// NewGeocodeQuery returns a query for address with ExactlyOne set.
func NewGeocodeQuery(address string) GeocodeQuery {
	return GeocodeQuery{Address: address, ExactlyOne: true}
}

// CacheKey identifies the query's parameters for response caching.
func (q GeocodeQuery) CacheKey() string {
	key := url.Values{
		"address":  {q.Address},
		"region":   {q.Region},
		"language": {q.Language},
		"sensor":   {strconv.FormatBool(q.Sensor)},
		"one":      {strconv.FormatBool(q.ExactlyOne)},
	}
	if q.Bounds != nil {
		key.Set("bounds", q.Bounds.String())
	}
	return "fwd:" + key.Encode()
}

// ReverseQuery describes a reverse (coordinates → addresses) lookup.
type ReverseQuery struct {
	Point    Point
	Language string
	Sensor   bool

	// ExactlyOne keeps only the first result. Reverse lookups default to
	// returning every address the API knows for the point.
	ExactlyOne bool
}

// NewReverseQuery returns a query for p returning all results.
func NewReverseQuery(p Point) ReverseQuery {
	return ReverseQuery{Point: p}
}

// CacheKey identifies the query's parameters for response caching. Points
// that format to the same latlng share a key.
func (q ReverseQuery) CacheKey() string {
	key := url.Values{
		"latlng":   {FormatLatLng(q.Point)},
		"language": {q.Language},
		"sensor":   {strconv.FormatBool(q.Sensor)},
		"one":      {strconv.FormatBool(q.ExactlyOne)},
	}
	return "rev:" + key.Encode()
}

// Geocoder resolves addresses and coordinates.
type Geocoder interface {
	// Geocode converts an address to one or more locations.
	Geocode(ctx context.Context, q GeocodeQuery) (Response, error)

	// Reverse converts a point to one or more addresses.
	Reverse(ctx context.Context, q ReverseQuery) (Response, error)
}
