package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies every failure that can be reported back to a client.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindMalformedStream
	KindUnrecognizedType
	KindFormat
	KindTransport
	KindOversizedKey
	KindOversizedValue
	KindKeyNotFound
	KindStoreIO
)

func (k ErrorKind) String() string {
	switch k {
	case KindMalformedStream:
		return "malformed stream"
	case KindUnrecognizedType:
		return "unrecognized type"
	case KindFormat:
		return "format error"
	case KindTransport:
		return "transport error"
	case KindOversizedKey:
		return "oversized key"
	case KindOversizedValue:
		return "oversized value"
	case KindKeyNotFound:
		return "key not found"
	case KindStoreIO:
		return "store i/o error"
	default:
		return "unknown error"
	}
}

// Status texts carried in error responses.
const (
	textUnparseable   = "XML Error: Received unparseable message"
	textFormat        = "Message format incorrect"
	textReceive       = "Network Error: Could not receive data"
	textSend          = "Network Error: Could not send data"
	textConnect       = "Network Error: Could not connect"
	textOversizedKey  = "Oversized key"
	textOversizedVal  = "Oversized value"
	textDoesNotExist  = "Does not exist"
	textIOError       = "I/O Error"
	textUnknownPrefix = "Unknown Error: "
)

// Error is a failure that has a status text suitable for a response message.
// Errors compare equal under errors.Is when their kinds match.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrMalformedStream  = &Error{Kind: KindMalformedStream, Msg: textUnparseable}
	ErrUnrecognizedType = &Error{Kind: KindUnrecognizedType, Msg: textFormat}
	ErrFormat           = &Error{Kind: KindFormat, Msg: textFormat}
	ErrTransport        = &Error{Kind: KindTransport, Msg: textReceive}
	ErrOversizedKey     = &Error{Kind: KindOversizedKey, Msg: textOversizedKey}
	ErrOversizedValue   = &Error{Kind: KindOversizedValue, Msg: textOversizedVal}
	ErrKeyNotFound      = &Error{Kind: KindKeyNotFound, Msg: textDoesNotExist}
	ErrStoreIO          = &Error{Kind: KindStoreIO, Msg: textIOError}
)

func formatError(err error) *Error { return &Error{Kind: KindFormat, Msg: textFormat, Err: err} }

// ReceiveError wraps a failed read.
func ReceiveError(err error) *Error { return &Error{Kind: KindTransport, Msg: textReceive, Err: err} }

// SendError wraps a failed write.
func SendError(err error) *Error { return &Error{Kind: KindTransport, Msg: textSend, Err: err} }

// ConnectError wraps a failed dial.
func ConnectError(err error) *Error { return &Error{Kind: KindTransport, Msg: textConnect, Err: err} }

// StoreIOError wraps a backing store failure.
func StoreIOError(err error) *Error { return &Error{Kind: KindStoreIO, Msg: textIOError, Err: err} }

// StatusText returns the text a response should carry for err.
func StatusText(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Msg
	}
	return textUnknownPrefix + err.Error()
}

// ErrorResponse converts err into a status response.
func ErrorResponse(err error) Message { return NewStatusResponse(StatusText(err)) }

// ResponseError maps a status response back to the error it reports. It
// returns nil for the success status and for key/value responses.
func ResponseError(m Message) error {
	if m.Type != Response {
		return formatError(fmt.Errorf("expected resp, got %s", m.Type))
	}
	if m.HasKeyValue() || m.Text == Success {
		return nil
	}
	switch m.Text {
	case textUnparseable:
		return ErrMalformedStream
	case textFormat:
		return ErrFormat
	case textReceive, textSend, textConnect:
		return &Error{Kind: KindTransport, Msg: m.Text}
	case textOversizedKey:
		return ErrOversizedKey
	case textOversizedVal:
		return ErrOversizedValue
	case textDoesNotExist:
		return ErrKeyNotFound
	case textIOError:
		return ErrStoreIO
	}
	return &Error{Kind: KindUnknown, Msg: strings.TrimPrefix(m.Text, textUnknownPrefix)}
}
