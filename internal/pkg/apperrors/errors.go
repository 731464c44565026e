// Package apperrors defines the error taxonomy shared by the access, checkout
// and webhook paths. Every error carries a Kind that maps to exactly one HTTP
// status, so controllers never have to inspect messages.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type Kind string

const (
	KindValidation    Kind = "validation"
	KindConfiguration Kind = "configuration"
	KindUpstream      Kind = "upstream"
	KindSignature     Kind = "signature"
	KindStore         Kind = "store"
	KindConflict      Kind = "conflict"
)

// UpstreamCategory subdivides processor failures.
type UpstreamCategory string

const (
	UpstreamInvalidRequest UpstreamCategory = "invalid_request"
	UpstreamAuthentication UpstreamCategory = "authentication"
	UpstreamPermission     UpstreamCategory = "permission"
	UpstreamRateLimit      UpstreamCategory = "rate_limit"
	UpstreamAPI            UpstreamCategory = "api"
)

// Error represents an application error
type Error struct {
	Kind     Kind
	Code     string
	Message  string
	Category UpstreamCategory
	// RetryAfter is only set for rate limited upstream calls.
	RetryAfter time.Duration
	Err        error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the status code a handler should answer with.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindSignature:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindUpstream:
		switch e.Category {
		case UpstreamInvalidRequest:
			return http.StatusBadRequest
		case UpstreamRateLimit:
			return http.StatusTooManyRequests
		default:
			return http.StatusInternalServerError
		}
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is safe to show to end users. Operator-facing kinds get a
// generic text; the detail stays in the logs.
func (e *Error) PublicMessage() string {
	switch e.Kind {
	case KindValidation, KindConflict:
		return e.Message
	case KindSignature:
		return "invalid signature"
	case KindUpstream:
		switch e.Category {
		case UpstreamInvalidRequest:
			return "payment provider rejected the request"
		case UpstreamRateLimit:
			return "too many requests, retry later"
		}
		return "payment provider unavailable"
	default:
		return "internal server error"
	}
}

func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// Configuration reports missing configuration keys by name only.
func Configuration(missingKeys ...string) *Error {
	return &Error{
		Kind:    KindConfiguration,
		Code:    "configuration_error",
		Message: "missing required configuration: " + strings.Join(missingKeys, ", "),
	}
}

func Upstream(category UpstreamCategory, err error) *Error {
	return &Error{Kind: KindUpstream, Code: "upstream_" + string(category), Message: "payment processor call failed", Category: category, Err: err}
}

func Signature(err error) *Error {
	return &Error{Kind: KindSignature, Code: "invalid_signature", Message: "webhook signature verification failed", Err: err}
}

func Store(op string, err error) *Error {
	return &Error{Kind: KindStore, Code: "store_error", Message: op, Err: err}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}

// StatusCode maps any error to a status; unknown errors are internal.
func StatusCode(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}
