package protocol

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseErrorMapsStatusText(t *testing.T) {
	for _, want := range []*Error{
		ErrMalformedStream, ErrFormat, ErrOversizedKey, ErrOversizedValue, ErrKeyNotFound, ErrStoreIO,
	} {
		got := ResponseError(ErrorResponse(want))
		assert.ErrorIs(t, got, want, want.Msg)
	}

	assert.NoError(t, ResponseError(NewStatusResponse(Success)))
	assert.NoError(t, ResponseError(NewValueResponse("k", "v")))
	assert.ErrorIs(t, ResponseError(NewGet("k")), ErrFormat)

	err := ResponseError(NewStatusResponse("Network Error: Could not send data"))
	assert.ErrorIs(t, err, ErrTransport)
}

func TestUnknownErrorsKeepTheirText(t *testing.T) {
	resp := ErrorResponse(errors.New("disk on fire"))
	assert.Equal(t, "Unknown Error: disk on fire", resp.Text)

	err := ResponseError(resp)
	var pe *Error
	assert.True(t, errors.As(err, &pe))
	assert.Equal(t, KindUnknown, pe.Kind)
	assert.Equal(t, "disk on fire", err.Error())
}

func TestWrappedErrorsKeepKind(t *testing.T) {
	cause := errors.New("bolt: database not open")
	err := fmt.Errorf("put k: %w", StoreIOError(cause))
	assert.ErrorIs(t, err, ErrStoreIO)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrKeyNotFound)
	assert.Equal(t, "I/O Error", StatusText(err))
}

func TestMsgTypeNames(t *testing.T) {
	for _, typ := range []MsgType{GetRequest, PutRequest, DelRequest, Response} {
		got, ok := ParseMsgType(typ.String())
		assert.True(t, ok)
		assert.Equal(t, typ, got)
	}
	_, ok := ParseMsgType("GETREQ")
	assert.False(t, ok)
	assert.True(t, NewPut("a", "b").IsRequest())
	assert.False(t, NewStatusResponse(Success).IsRequest())
}
