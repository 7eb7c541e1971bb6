package domain

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// StatusFailed marks replies whose lookup failed before the API produced a
// status (transport errors, unparseable bodies, no geocoder configured).
const StatusFailed Status = "FAILED"

// GeocodeReply is the JSON payload written to the sink topic.
type GeocodeReply struct {
	ID          string      `json:"id"`
	Kind        RequestKind `json:"kind"`
	Status      Status      `json:"status"`
	Locations   []Location  `json:"locations"`
	Error       string      `json:"error,omitempty"`
	ErrorKind   string      `json:"error_kind,omitempty"`
	ProcessedAt time.Time   `json:"processed_at"`
}

// Resolve runs req against geocoder and always returns a reply. Lookup
// failures are recorded on the reply instead of being returned, so one bad
// address never stalls the topic.
func Resolve(ctx context.Context, req GeocodeRequest, geocoder Geocoder, logger *slog.Logger) GeocodeReply {
	reply := resolve(ctx, req, geocoder, logger)
	reply.ProcessedAt = clock.Now().UTC()
	return reply
}

func resolve(ctx context.Context, req GeocodeRequest, geocoder Geocoder, logger *slog.Logger) GeocodeReply {
	reply := GeocodeReply{
		ID:        req.ID,
		Kind:      req.Kind,
		Locations: []Location{},
	}

	if geocoder == nil {
		reply.Status = StatusFailed
		reply.Error = "geocoding disabled"
		return reply
	}

	var (
		resp Response
		err  error
	)
	switch req.Kind {
	case RequestForward:
		resp, err = geocoder.Geocode(ctx, req.GeocodeQuery())
	case RequestReverse:
		resp, err = geocoder.Reverse(ctx, req.ReverseQuery())
	default:
		err = QueryError("unknown request kind " + string(req.Kind))
	}

	if err != nil {
		logger.Warn("geocoding failed",
			"request_id", req.ID,
			"kind", req.Kind,
			"error", err,
		)
		reply.Status = StatusFailed
		var gerr *Error
		if errors.As(err, &gerr) && gerr.Status != "" {
			reply.Status = gerr.Status
		}
		reply.Error = err.Error()
		reply.ErrorKind = KindOf(err).String()
		return reply
	}

	reply.Status = resp.Status
	if reply.Status == "" {
		reply.Status = StatusOK
	}
	if resp.Locations != nil {
		reply.Locations = resp.Locations
	}
	return reply
}
