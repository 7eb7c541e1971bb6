package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawEvent(key, value string) RawEvent {
	return RawEvent{Key: []byte(key), Value: []byte(value)}
}

func TestParseRequest_Forward(t *testing.T) {
	req, err := ParseRequest(rawEvent("k-1", `{
		"id": "req-1",
		"address": "  1600 Amphitheatre Parkway, Mountain View, CA ",
		"bounds": "34.172684,-118.604794|34.236144,-118.500938",
		"region": "us",
		"language": "en"
	}`))
	require.NoError(t, err)

	assert.Equal(t, "req-1", req.ID)
	assert.Equal(t, RequestForward, req.Kind)
	assert.Equal(t, "1600 Amphitheatre Parkway, Mountain View, CA", req.Address)

	q := req.GeocodeQuery()
	assert.Equal(t, req.Address, q.Address)
	assert.True(t, q.ExactlyOne)
	require.NotNil(t, q.Bounds)
	assert.Equal(t, 34.172684, q.Bounds.SouthWest.Lat)
	assert.Equal(t, "us", q.Region)
	assert.Equal(t, "en", q.Language)
}

func TestParseRequest_ReverseInferredFromLatLng(t *testing.T) {
	req, err := ParseRequest(rawEvent("k-2", `{"latlng":"40.714224,-73.961452","sensor":true}`))
	require.NoError(t, err)

	assert.Equal(t, "k-2", req.ID, "message key is the fallback id")
	assert.Equal(t, RequestReverse, req.Kind)

	q := req.ReverseQuery()
	assert.Equal(t, "40.714224,-73.961452", FormatLatLng(q.Point))
	assert.True(t, q.Sensor)
	assert.False(t, q.ExactlyOne)
}

func TestParseRequest_AnonymousGetsUUID(t *testing.T) {
	req, err := ParseRequest(RawEvent{Value: []byte(`{"address":"Paris"}`)})
	require.NoError(t, err)

	_, err = uuid.Parse(req.ID)
	require.NoError(t, err, "id %q", req.ID)

	other, err := ParseRequest(RawEvent{Value: []byte(`{"address":"Paris"}`)})
	require.NoError(t, err)
	assert.NotEqual(t, req.ID, other.ID)
}

func TestParseRequest_ExactlyOneOverride(t *testing.T) {
	req, err := ParseRequest(rawEvent("k", `{"kind":"reverse","latlng":"1,2","exactly_one":true}`))
	require.NoError(t, err)
	assert.True(t, req.ReverseQuery().ExactlyOne)

	req, err = ParseRequest(rawEvent("k", `{"address":"Paris","exactly_one":false}`))
	require.NoError(t, err)
	assert.False(t, req.GeocodeQuery().ExactlyOne)
}

func TestParseRequest_Invalid(t *testing.T) {
	tests := map[string]string{
		"not json":        `not json`,
		"empty":           `{}`,
		"forward no addr": `{"kind":"forward","latlng":"1,2"}`,
		"reverse no ll":   `{"kind":"reverse","address":"x"}`,
		"unknown kind":    `{"kind":"sideways","address":"x"}`,
		"bad bounds":      `{"address":"x","bounds":"nope"}`,
	}
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRequest(rawEvent("k", payload))
			assert.Error(t, err)
		})
	}
}
