package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Point is a position accepted by reverse geocoding. The set of
// implementations is closed: Coordinate, Pair and LatLngString.
type Point interface {
	latLng() string
}

// Coordinate is a structured WGS-84 position.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (c Coordinate) latLng() string {
	return formatFloat(c.Lat) + "," + formatFloat(c.Lng)
}

// Pair is a (latitude, longitude) pair.
type Pair [2]float64

func (p Pair) latLng() string {
	return Coordinate{Lat: p[0], Lng: p[1]}.latLng()
}

// LatLngString is a pre-formatted "lat,lng" value. It is sent as is.
type LatLngString string

func (s LatLngString) latLng() string {
	return string(s)
}

// FormatLatLng renders p as the API's "lat,lng" parameter. It returns an
// empty string for a nil point, including a nil *Coordinate or *Pair.
func FormatLatLng(p Point) string {
	if isNilPoint(p) {
		return ""
	}
	return p.latLng()
}

// CheckPoint reports whether p can be sent to the API: it must be non-nil,
// and structured points must hold finite numbers.
func CheckPoint(p Point) error {
	if isNilPoint(p) {
		return errors.New("point is required")
	}
	var c Coordinate
	switch v := p.(type) {
	case Coordinate:
		c = v
	case *Coordinate:
		c = *v
	case Pair:
		c = Coordinate{Lat: v[0], Lng: v[1]}
	case *Pair:
		c = Coordinate{Lat: v[0], Lng: v[1]}
	default:
		if FormatLatLng(p) == "" {
			return errors.New("point is required")
		}
		return nil
	}
	if !isFinite(c.Lat) || !isFinite(c.Lng) {
		return fmt.Errorf("point %v,%v is not a finite coordinate", c.Lat, c.Lng)
	}
	return nil
}

func isNilPoint(p Point) bool {
	switch v := p.(type) {
	case nil:
		return true
	case *Coordinate:
		return v == nil
	case *Pair:
		return v == nil
	}
	return false
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ParseCoordinate parses "lat,lng" into a Coordinate, checking ranges.
func ParseCoordinate(s string) (Coordinate, error) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return Coordinate{}, fmt.Errorf("parse coordinate %q: expected \"lat,lng\"", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("parse latitude %q: %w", latStr, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("parse longitude %q: %w", lngStr, err)
	}
	if !isFinite(lat) || !isFinite(lng) {
		return Coordinate{}, fmt.Errorf("parse coordinate %q: not a finite value", s)
	}
	if lat < -90 || lat > 90 {
		return Coordinate{}, fmt.Errorf("latitude %v out of range", lat)
	}
	if lng < -180 || lng > 180 {
		return Coordinate{}, fmt.Errorf("longitude %v out of range", lng)
	}
	return Coordinate{Lat: lat, Lng: lng}, nil
}

// ParseBounds parses "swLat,swLng|neLat,neLng".
func ParseBounds(s string) (Bounds, error) {
	sw, ne, ok := strings.Cut(s, "|")
	if !ok {
		return Bounds{}, fmt.Errorf("parse bounds %q: expected \"swLat,swLng|neLat,neLng\"", s)
	}
	southWest, err := ParseCoordinate(sw)
	if err != nil {
		return Bounds{}, fmt.Errorf("parse bounds: %w", err)
	}
	northEast, err := ParseCoordinate(ne)
	if err != nil {
		return Bounds{}, fmt.Errorf("parse bounds: %w", err)
	}
	return Bounds{SouthWest: southWest, NorthEast: northEast}, nil
}

// formatFloat uses the shortest representation that round-trips, so
// 40.714224 is written as "40.714224" and not "40.714224000".
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
