// Package domainerrors carries coded errors across service boundaries.
//
// Services return these errors (or wrap lower-level errors with them) so the
// transport layer can translate a failure into a status code without string
// matching:
//
//	if dErrors.HasCode(err, dErrors.CodeInvalidDomain) { ... }
package domainerrors

import (
	"errors"
	"net/http"
)

// Code classifies a failure. Codes double as the "error" field of JSON
// error envelopes, so they stay snake_case.
type Code string

const (
	CodeBadRequest          Code = "bad_request"
	CodeInvalidInput        Code = "invalid_input"
	CodeInvalidDomain       Code = "invalid_domain"
	CodeInvalidJSON         Code = "invalid_json"
	CodeInvalidPayload      Code = "invalid_payload"
	CodeDomainMismatch      Code = "domain_mismatch"
	CodeUnauthorized        Code = "unauthorized"
	CodeLengthRequired      Code = "length_required"
	CodePayloadTooLarge     Code = "payload_too_large"
	CodeRateLimited         Code = "rate_limit_exceeded"
	CodeLockTimeout         Code = "lock_timeout"
	CodeInsufficientStorage Code = "insufficient_storage"
	CodeTimeout             Code = "timeout"
	CodeInternal            Code = "internal_error"
)

// Error is a coded error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// New creates a coded error without a cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to err. A nil err still yields an error so
// callers can use Wrap unconditionally on failure paths.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the outermost coded error in err's chain has the given code.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// HasCode reports whether any coded error in err's chain has the given code.
func HasCode(err error, code Code) bool {
	for err != nil {
		if de, ok := err.(*Error); ok && de.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// CodeOf returns the outermost code in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the message of the outermost coded error, or "".
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}

// ToHTTPStatus maps a code to the status the transport layer should send.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidInput, CodeInvalidDomain, CodeInvalidJSON,
		CodeInvalidPayload, CodeDomainMismatch:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeLengthRequired:
		return http.StatusLengthRequired
	case CodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeLockTimeout:
		return http.StatusServiceUnavailable
	case CodeInsufficientStorage:
		return http.StatusInsufficientStorage
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
