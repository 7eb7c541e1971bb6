package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusError_Table(t *testing.T) {
	tests := []struct {
		status Status
		kind   Kind
	}{
		{StatusZeroResults, KindQuery},
		{StatusOverQueryLimit, KindTooManyQueries},
		{StatusRequestDenied, KindQuery},
		{StatusInvalidRequest, KindQuery},
		{StatusUnknownError, KindGenericResult},
		{"SOMETHING_NEW", KindGenericResult},
		{"", KindGenericResult},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			err := StatusError(tt.status)
			assert.Equal(t, tt.kind, err.Kind)
			assert.Equal(t, tt.status, err.Status)
		})
	}
}

func TestError_IsSentinels(t *testing.T) {
	zero := StatusError(StatusZeroResults)
	assert.ErrorIs(t, zero, ErrQuery)
	assert.NotErrorIs(t, zero, ErrTooManyQueries)
	assert.NotErrorIs(t, zero, ErrGenericResult)

	limited := StatusError(StatusOverQueryLimit)
	assert.ErrorIs(t, limited, ErrTooManyQueries)
	assert.ErrorIs(t, limited, ErrQuery, "rate limiting is a kind of query error")

	unknown := StatusError("BOOM")
	assert.ErrorIs(t, unknown, ErrGenericResult)
	assert.NotErrorIs(t, unknown, ErrQuery)
}

func TestError_WrappedKeepsKind(t *testing.T) {
	err := fmt.Errorf("geocode: %w", StatusError(StatusOverQueryLimit))
	assert.ErrorIs(t, err, ErrTooManyQueries)
	assert.Equal(t, KindTooManyQueries, KindOf(err))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestError_Message(t *testing.T) {
	err := StatusError(StatusInvalidRequest)
	assert.Contains(t, err.Error(), "INVALID_REQUEST")
	assert.Contains(t, err.Error(), "missing address or latlng")

	cause := errors.New("unexpected EOF")
	perr := ParseError("decode response", cause)
	assert.Equal(t, "decode response: unexpected EOF", perr.Error())
	assert.ErrorIs(t, perr, cause)
	assert.ErrorIs(t, perr, ErrParse)

	assert.Equal(t, "configuration error", ErrConfiguration.Error())
}
