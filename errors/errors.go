package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType int

const (
	ErrorNone ErrorType = iota
	ErrorTransport
	ErrorRequest
	ErrorResolve
	ErrorIo
)

func (t ErrorType) String() string {
	switch t {
	case ErrorNone:
		return "none"
	case ErrorTransport:
		return "transport"
	case ErrorRequest:
		return "request"
	case ErrorResolve:
		return "resolve"
	case ErrorIo:
		return "io"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// TransportError represents connection-level failures
type TransportError int

const (
	TransportErrorNone TransportError = iota
	TransportErrorListenFailure
	TransportErrorAcceptFailure
	TransportErrorSocketReadFailure
	TransportErrorSocketWriteFailure
	TransportErrorConnectionClosed
	TransportErrorSocketCloseFailure
	TransportErrorIoUringInit
	TransportErrorIoUringSubmit
)

func (e TransportError) String() string {
	switch e {
	case TransportErrorNone:
		return "none"
	case TransportErrorListenFailure:
		return "listen failed"
	case TransportErrorAcceptFailure:
		return "accept failed"
	case TransportErrorSocketReadFailure:
		return "socket read failed"
	case TransportErrorSocketWriteFailure:
		return "socket write failed"
	case TransportErrorConnectionClosed:
		return "connection closed"
	case TransportErrorSocketCloseFailure:
		return "socket close failed"
	case TransportErrorIoUringInit:
		return "io_uring init failed"
	case TransportErrorIoUringSubmit:
		return "io_uring submit failed"
	default:
		return fmt.Sprintf("unknown transport error %d", int(e))
	}
}

// RequestError represents violations of the accepted request line grammar
type RequestError int

const (
	RequestErrorNone RequestError = iota
	RequestErrorEmpty
	RequestErrorInvalidLength
	RequestErrorInvalidHeader
	RequestErrorLineTooLong
)

func (e RequestError) String() string {
	switch e {
	case RequestErrorNone:
		return "none"
	case RequestErrorEmpty:
		return "request was empty"
	case RequestErrorInvalidLength:
		return "invalid number of request line parts"
	case RequestErrorInvalidHeader:
		return "request line is not a valid request"
	case RequestErrorLineTooLong:
		return "request line too long"
	default:
		return fmt.Sprintf("unknown request error %d", int(e))
	}
}

// ResolveError represents failures to map a request path onto a servable file.
// Confinement violations are reported as ResolveErrorNotFound on purpose.
type ResolveError int

const (
	ResolveErrorNone ResolveError = iota
	ResolveErrorNotFound
	ResolveErrorBaseDirUnavailable
	ResolveErrorFallbackMissing
)

func (e ResolveError) String() string {
	switch e {
	case ResolveErrorNone:
		return "none"
	case ResolveErrorNotFound:
		return "not found"
	case ResolveErrorBaseDirUnavailable:
		return "base directory unavailable"
	case ResolveErrorFallbackMissing:
		return "fallback page missing"
	default:
		return fmt.Sprintf("unknown resolve error %d", int(e))
	}
}

// ServerError is the main error type of the server
type ServerError struct {
	Type          ErrorType
	TransportErr  TransportError
	RequestErr    RequestError
	ResolveErr    ResolveError
	Message       string
	UnderlyingErr error
}

// Error implements the error interface
func (e *ServerError) Error() string {
	if e == nil {
		return "no error"
	}

	var typeStr string
	switch e.Type {
	case ErrorTransport:
		typeStr = fmt.Sprintf("transport error: %s", e.TransportErr)
	case ErrorRequest:
		typeStr = fmt.Sprintf("request error: %s", e.RequestErr)
	case ErrorResolve:
		typeStr = fmt.Sprintf("resolve error: %s", e.ResolveErr)
	case ErrorIo:
		typeStr = "io error"
	default:
		typeStr = "unknown error"
	}

	if e.Message != "" {
		typeStr = fmt.Sprintf("%s: %s", typeStr, e.Message)
	}

	if e.UnderlyingErr != nil {
		return fmt.Sprintf("%s (caused by: %v)", typeStr, e.UnderlyingErr)
	}

	return typeStr
}

// Unwrap returns the underlying error for error chain support
func (e *ServerError) Unwrap() error {
	return e.UnderlyingErr
}

// NewTransportError creates a new transport error
func NewTransportError(err TransportError, message string, underlying error) *ServerError {
	return &ServerError{
		Type:          ErrorTransport,
		TransportErr:  err,
		Message:       message,
		UnderlyingErr: underlying,
	}
}

// NewRequestError creates a new request grammar error
func NewRequestError(err RequestError, message string) *ServerError {
	return &ServerError{
		Type:       ErrorRequest,
		RequestErr: err,
		Message:    message,
	}
}

// NewResolveError creates a new resolution error
func NewResolveError(err ResolveError, message string, underlying error) *ServerError {
	return &ServerError{
		Type:          ErrorResolve,
		ResolveErr:    err,
		Message:       message,
		UnderlyingErr: underlying,
	}
}

// NewIoError creates a new filesystem or stream error
func NewIoError(message string, underlying error) *ServerError {
	return &ServerError{
		Type:          ErrorIo,
		Message:       message,
		UnderlyingErr: underlying,
	}
}

func asServerError(err error) (*ServerError, bool) {
	var se *ServerError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsTransportError reports whether err carries the given transport error kind
func IsTransportError(err error, kind TransportError) bool {
	se, ok := asServerError(err)
	return ok && se.Type == ErrorTransport && se.TransportErr == kind
}

// IsRequestError reports whether err carries the given request error kind
func IsRequestError(err error, kind RequestError) bool {
	se, ok := asServerError(err)
	return ok && se.Type == ErrorRequest && se.RequestErr == kind
}

// IsResolveError reports whether err carries the given resolve error kind
func IsResolveError(err error, kind ResolveError) bool {
	se, ok := asServerError(err)
	return ok && se.Type == ErrorResolve && se.ResolveErr == kind
}

// IsIoError reports whether err is an io error
func IsIoError(err error) bool {
	se, ok := asServerError(err)
	return ok && se.Type == ErrorIo
}

// TypeOf returns the category of err, or ErrorNone if err is not a ServerError
func TypeOf(err error) ErrorType {
	if se, ok := asServerError(err); ok {
		return se.Type
	}
	return ErrorNone
}
