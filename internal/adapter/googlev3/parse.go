package googlev3

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/couchcryptid/geocoder-service/internal/domain"
	"golang.org/x/net/html/charset"
)

// Google API response types.

type response struct {
	Status       domain.Status `json:"status"`
	Results      []result      `json:"results"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

type result struct {
	FormattedAddress string    `json:"formatted_address"`
	Geometry         *geometry `json:"geometry"`
}

type geometry struct {
	Location *latLng `json:"location"`
}

type latLng struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// parseResponse decodes a response body into a domain.Response. When
// exactlyOne is set only the first result is kept.
func parseResponse(body []byte, contentType string, exactlyOne bool) (domain.Response, error) {
	text, err := decodeBody(body, contentType)
	if err != nil {
		return domain.Response{}, domain.ParseError("decode response charset", err)
	}

	var doc response
	if err := json.Unmarshal(text, &doc); err != nil {
		return domain.Response{}, domain.ParseError("decode response", err)
	}

	out := domain.Response{
		Status:    doc.Status,
		Locations: []domain.Location{},
		Document:  json.RawMessage(text),
	}

	if len(doc.Results) == 0 {
		if doc.Status == domain.StatusOK {
			return out, nil
		}
		serr := domain.StatusError(doc.Status)
		if doc.ErrorMessage != "" {
			serr.Message += " (" + doc.ErrorMessage + ")"
		}
		return out, serr
	}

	if out.Status == "" {
		out.Status = domain.StatusOK
	}

	places := doc.Results
	if exactlyOne {
		places = places[:1]
	}
	out.Locations = make([]domain.Location, 0, len(places))
	for i, place := range places {
		loc, err := parsePlace(place)
		if err != nil {
			return domain.Response{Status: out.Status, Document: out.Document}, domain.ParseError(fmt.Sprintf("result %d", i), err)
		}
		out.Locations = append(out.Locations, loc)
	}
	return out, nil
}

func parsePlace(place result) (domain.Location, error) {
	if place.Geometry == nil || place.Geometry.Location == nil {
		return domain.Location{}, errors.New("missing geometry.location")
	}
	if place.Geometry.Location.Lat == nil {
		return domain.Location{}, errors.New("missing geometry.location.lat")
	}
	if place.Geometry.Location.Lng == nil {
		return domain.Location{}, errors.New("missing geometry.location.lng")
	}
	return domain.Location{
		Address: place.FormattedAddress,
		Lat:     *place.Geometry.Location.Lat,
		Lng:     *place.Geometry.Location.Lng,
	}, nil
}

// decodeBody converts body to UTF-8 using the charset declared in
// contentType. Undeclared bodies that are already valid UTF-8 are returned
// as is.
func decodeBody(body []byte, contentType string) ([]byte, error) {
	enc, name, certain := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || (!certain && utf8.Valid(body)) {
		return body, nil
	}
	return enc.NewDecoder().Bytes(body)
}
