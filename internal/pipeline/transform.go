package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/geocoder-service/internal/domain"
)

// GeocodeTransformer implements Transformer by parsing the request and
// running it against a geocoder.
type GeocodeTransformer struct {
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// NewTransformer creates a GeocodeTransformer. A nil geocoder produces
// FAILED replies for every request.
func NewTransformer(geocoder domain.Geocoder, logger *slog.Logger) *GeocodeTransformer {
	return &GeocodeTransformer{
		geocoder: geocoder,
		logger:   logger,
	}
}

// Transform returns an error only for messages that are not valid requests.
// Lookup failures are carried on the reply.
func (t *GeocodeTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.GeocodeReply, error) {
	req, err := domain.ParseRequest(raw)
	if err != nil {
		return domain.GeocodeReply{}, err
	}
	return domain.Resolve(ctx, req, t.geocoder, t.logger), nil
}
