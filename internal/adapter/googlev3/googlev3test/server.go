// Package googlev3test provides a canned Google geocoding server for tests
// that exercise the client over real HTTP.
package googlev3test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"

	"github.com/couchcryptid/geocoder-service/internal/adapter/googlev3"
)

// Place is one canned result.
type Place struct {
	Address string
	Lat     float64
	Lng     float64
}

var (
	amphitheatre = Place{"1600 Amphitheatre Parkway, Mountain View, CA 94043, USA", 37.4224764, -122.0842499}
	bedford      = []Place{
		{"277 Bedford Avenue, Brooklyn, NY 11211, USA", 40.714232, -73.9612889},
		{"Grand St/Bedford Av, Brooklyn, NY 11211, USA", 40.7143528, -73.961452},
	}
	eiffel = Place{"Champ de Mars, 5 Av. Anatole France, 75007 Paris, France", 48.8583701, 2.2944813}
)

// forward maps a lowercase address fragment to its results.
var forward = []struct {
	fragment string
	places   []Place
}{
	{"amphitheatre", []Place{amphitheatre}},
	{"winnetka", []Place{{"Winnetka, Los Angeles, CA, USA", 34.2133, -118.5714}}},
	{"downing", []Place{{"10 Downing St, London SW1A 2AA, UK", 51.5033635, -0.1276248}}},
	{"champ de mars", []Place{eiffel}},
	{"bedford", bedford},
}

// reverse maps an exact latlng parameter to its results.
var reverse = map[string][]Place{
	"40.714224,-73.961452":    bedford,
	"37.4224764,-122.0842499": {amphitheatre},
	"48.8583701,2.2944813":    {eiffel},
}

// Server is a running stub of the geocoding endpoint.
type Server struct {
	*httptest.Server
	requests atomic.Int64
}

// NewServer starts a stub. Addresses containing "quota" answer
// OVER_QUERY_LIMIT; unknown queries answer ZERO_RESULTS. Callers must Close it.
func NewServer() *Server {
	s := &Server{}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Requests returns how many geocode requests were served.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// Options returns client options that point at the stub over plain http.
func (s *Server) Options() googlev3.Options {
	return googlev3.Options{
		Domain:     strings.TrimPrefix(s.URL, "http://"),
		Protocol:   "http",
		HTTPClient: s.Client(),
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/maps/api/geocode/json" {
		http.NotFound(w, r)
		return
	}
	s.requests.Add(1)

	q := r.URL.Query()
	status, places := "ZERO_RESULTS", []Place(nil)
	switch {
	case q.Has("address"):
		address := strings.ToLower(q.Get("address"))
		if strings.Contains(address, "quota") {
			status = "OVER_QUERY_LIMIT"
			break
		}
		for _, f := range forward {
			if strings.Contains(address, f.fragment) {
				status, places = "OK", f.places
				break
			}
		}
	case q.Has("latlng"):
		if p, ok := reverse[q.Get("latlng")]; ok {
			status, places = "OK", p
		}
	default:
		status = "INVALID_REQUEST"
	}

	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	json.NewEncoder(w).Encode(body(status, places)) //nolint:errcheck // test server
}

type result struct {
	FormattedAddress string `json:"formatted_address"`
	Geometry         struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}

func body(status string, places []Place) map[string]any {
	results := make([]result, len(places))
	for i, p := range places {
		results[i].FormattedAddress = p.Address
		results[i].Geometry.Location.Lat = p.Lat
		results[i].Geometry.Location.Lng = p.Lng
	}
	return map[string]any{"status": status, "results": results}
}
