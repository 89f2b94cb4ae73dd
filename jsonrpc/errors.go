package jsonrpc

import (
	"errors"
	"fmt"
)

// JSON-RPC error codes used on the wire. The -32000..-32099 band is reserved
// for errors the host reports back to the plugin.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeHostErrorStart = -32099
	CodeHostErrorEnd   = -32000
)

// Error is a structured protocol error. It doubles as the wire shape for the
// "error" member of a reply and as a Go error value, so decode failures and
// host-reported failures travel through normal error returns.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc: %s (code %d)", e.Message, e.Code)
}

// NewError builds an Error. data may be nil.
func NewError(code int, message string, data any) *Error {
	return &Error{Code: code, Message: message, Data: data}
}

// Convenience constructors for the standard codes.

func ParseError(message string, data any) *Error {
	return NewError(CodeParseError, message, data)
}

func InvalidRequest(message string, data any) *Error {
	return NewError(CodeInvalidRequest, message, data)
}

func MethodNotFound(method string) *Error {
	return NewError(CodeMethodNotFound, fmt.Sprintf("method %q not found", method), nil)
}

func InvalidParams(message string, data any) *Error {
	return NewError(CodeInvalidParams, message, data)
}

func InternalError(message string, data any) *Error {
	return NewError(CodeInternalError, message, data)
}

// IsHostError reports whether the error carries a code in the band the host
// uses for its own failures.
func (e *Error) IsHostError() bool {
	return e.Code >= CodeHostErrorStart && e.Code <= CodeHostErrorEnd
}

// ErrConnectionClosed fails every pending outbound call when the stream is
// torn down. Callers blocked in Request observe it instead of hanging.
var ErrConnectionClosed = errors.New("jsonrpc: connection closed")

// AsError extracts a protocol *Error from an error chain, if present.
func AsError(err error) (*Error, bool) {
	var perr *Error
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}
