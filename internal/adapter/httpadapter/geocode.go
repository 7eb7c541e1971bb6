package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/geocoder-service/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

type geocodeResponse struct {
	Status    domain.Status     `json:"status"`
	Locations []domain.Location `json:"locations"`
	Document  json.RawMessage   `json:"document,omitempty"`
}

type errorResponse struct {
	Error  string        `json:"error"`
	Kind   string        `json:"kind,omitempty"`
	Status domain.Status `json:"status,omitempty"`
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	q := domain.NewGeocodeQuery(strings.TrimSpace(params.Get("address")))
	if q.Address == "" {
		writeBadRequest(w, "address is required")
		return
	}
	if raw := params.Get("bounds"); raw != "" {
		b, err := domain.ParseBounds(raw)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		q.Bounds = &b
	}
	q.Region = params.Get("region")
	q.Language = params.Get("language")

	var err error
	if q.Sensor, err = boolParam(params, "sensor", false); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if q.ExactlyOne, err = boolParam(params, "exactly_one", true); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	resp, err := s.geocoder.Geocode(r.Context(), q)
	s.respond(w, r, "geocode", resp, err)
}

func (s *Server) handleReverse(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	raw := strings.TrimSpace(params.Get("latlng"))
	if raw == "" {
		writeBadRequest(w, "latlng is required")
		return
	}
	point, err := domain.ParseCoordinate(raw)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	q := domain.NewReverseQuery(point)
	q.Language = params.Get("language")
	if q.Sensor, err = boolParam(params, "sensor", false); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if q.ExactlyOne, err = boolParam(params, "exactly_one", false); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	resp, err := s.geocoder.Reverse(r.Context(), q)
	s.respond(w, r, "reverse", resp, err)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, method string, resp domain.Response, err error) {
	if err != nil {
		code := statusCode(err)
		s.logger.Info("geocode request failed", "method", method, "code", code, "error", err)

		body := errorResponse{Error: err.Error()}
		if kind := domain.KindOf(err); kind != domain.KindUnknown {
			body.Kind = kind.String()
		}
		var gerr *domain.Error
		if errors.As(err, &gerr) {
			body.Status = gerr.Status
		}
		sharedobs.WriteJSON(w, code, body)
		return
	}

	out := geocodeResponse{Status: resp.Status, Locations: resp.Locations}
	if out.Status == "" {
		out.Status = domain.StatusOK
	}
	if out.Locations == nil {
		out.Locations = []domain.Location{}
	}
	if debug, _ := strconv.ParseBool(r.URL.Query().Get("debug")); debug {
		out.Document = resp.Document
	}
	sharedobs.WriteJSON(w, http.StatusOK, out)
}

// statusCode maps a geocoding error onto an HTTP status.
func statusCode(err error) int {
	var gerr *domain.Error
	if errors.As(err, &gerr) && gerr.Status == domain.StatusZeroResults {
		return http.StatusNotFound
	}
	switch domain.KindOf(err) {
	case domain.KindTooManyQueries:
		return http.StatusTooManyRequests
	case domain.KindQuery:
		return http.StatusUnprocessableEntity
	case domain.KindConfiguration:
		return http.StatusInternalServerError
	case domain.KindGenericResult, domain.KindParse:
		return http.StatusBadGateway
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func boolParam(params url.Values, name string, def bool) (bool, error) {
	raw := params.Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	sharedobs.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}
