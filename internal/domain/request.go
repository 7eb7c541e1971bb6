package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RawEvent is an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// RequestKind selects forward or reverse geocoding for a queued request.
type RequestKind string

const (
	RequestForward RequestKind = "forward"
	RequestReverse RequestKind = "reverse"
)

// GeocodeRequest is the JSON payload of a source-topic message.
type GeocodeRequest struct {
	ID       string      `json:"id"`
	Kind     RequestKind `json:"kind,omitempty"`
	Address  string      `json:"address,omitempty"`
	LatLng   string      `json:"latlng,omitempty"`
	Bounds   string      `json:"bounds,omitempty"`
	Region   string      `json:"region,omitempty"`
	Language string      `json:"language,omitempty"`
	Sensor   bool        `json:"sensor,omitempty"`

	// ExactlyOne overrides the per-kind default when set.
	ExactlyOne *bool `json:"exactly_one,omitempty"`
}

// ParseRequest decodes a RawEvent into a GeocodeRequest. The message key is
// used as the ID when the payload has none, falling back to a random UUID, and
// the kind is inferred from which of address/latlng is present when not given.
func ParseRequest(raw RawEvent) (GeocodeRequest, error) {
	var req GeocodeRequest
	if err := json.Unmarshal(raw.Value, &req); err != nil {
		return GeocodeRequest{}, fmt.Errorf("parse geocode request: %w", err)
	}
	if req.ID == "" {
		req.ID = string(raw.Key)
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Address = strings.TrimSpace(req.Address)
	req.LatLng = strings.TrimSpace(req.LatLng)

	if req.Kind == "" {
		switch {
		case req.Address != "":
			req.Kind = RequestForward
		case req.LatLng != "":
			req.Kind = RequestReverse
		}
	}

	switch req.Kind {
	case RequestForward:
		if req.Address == "" {
			return GeocodeRequest{}, errors.New("parse geocode request: forward request without address")
		}
		if req.Bounds != "" {
			if _, err := ParseBounds(req.Bounds); err != nil {
				return GeocodeRequest{}, fmt.Errorf("parse geocode request: %w", err)
			}
		}
	case RequestReverse:
		if req.LatLng == "" {
			return GeocodeRequest{}, errors.New("parse geocode request: reverse request without latlng")
		}
	case "":
		return GeocodeRequest{}, errors.New("parse geocode request: neither address nor latlng set")
	default:
		return GeocodeRequest{}, fmt.Errorf("parse geocode request: unknown kind %q", req.Kind)
	}
	return req, nil
}

// GeocodeQuery converts a forward request into a query.
func (r GeocodeRequest) GeocodeQuery() GeocodeQuery {
	q := NewGeocodeQuery(r.Address)
	if r.Bounds != "" {
		if b, err := ParseBounds(r.Bounds); err == nil {
			q.Bounds = &b
		}
	}
	q.Region = r.Region
	q.Language = r.Language
	q.Sensor = r.Sensor
	if r.ExactlyOne != nil {
		q.ExactlyOne = *r.ExactlyOne
	}
	return q
}

// ReverseQuery converts a reverse request into a query. The latlng string is
// passed through unchanged.
func (r GeocodeRequest) ReverseQuery() ReverseQuery {
	q := NewReverseQuery(LatLngString(r.LatLng))
	q.Language = r.Language
	q.Sensor = r.Sensor
	if r.ExactlyOne != nil {
		q.ExactlyOne = *r.ExactlyOne
	}
	return q
}
