// Package errors carries the typed error codes every service returns and the
// HTTP metadata the responses package renders them with.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation  Code = "VALIDATION_ERROR"
	CodeNotFound    Code = "NOT_FOUND"
	CodeConflict    Code = "CONFLICT"
	CodeIdempotency Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit   Code = "RATE_LIMITED"
	CodeInternal    Code = "INTERNAL_ERROR"
	CodeDependency  Code = "DEPENDENCY_ERROR"

	CodeComponentNotFound   Code = "COMPONENT_NOT_FOUND"
	CodeInvalidScaleReading Code = "INVALID_SCALE_READING"
	CodeNoScaleData         Code = "NO_SCALE_DATA_AVAILABLE"
	CodeWorkOrderNotFound   Code = "WORK_ORDER_NOT_FOUND"
	CodeBomNotFound         Code = "BOM_NOT_FOUND"
	CodeIllegalTransition   Code = "ILLEGAL_TRANSITION"
)

// Metadata is how a code is rendered to API clients. Retryable also drives
// the outbox publisher and the label consumer's nack decision.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

const (
	final     = false
	retryable = true
	opaque    = false
	detailed  = true
)

var metadataByCode = map[Code]Metadata{
	CodeValidation:  {http.StatusBadRequest, final, "validation failed", detailed},
	CodeNotFound:    {http.StatusNotFound, final, "resource not found", opaque},
	CodeConflict:    {http.StatusConflict, final, "conflict detected", opaque},
	CodeIdempotency: {http.StatusConflict, final, "idempotency key reused", detailed},
	CodeRateLimit:   {http.StatusTooManyRequests, retryable, "too many requests", opaque},
	CodeInternal:    {http.StatusInternalServerError, retryable, "internal server error", opaque},
	CodeDependency:  {http.StatusServiceUnavailable, retryable, "dependency unavailable", detailed},

	CodeComponentNotFound:   {http.StatusNotFound, final, "component not found", detailed},
	CodeInvalidScaleReading: {http.StatusUnprocessableEntity, final, "invalid scale reading", detailed},
	CodeNoScaleData:         {http.StatusServiceUnavailable, retryable, "no scale data available", detailed},
	CodeWorkOrderNotFound:   {http.StatusNotFound, final, "work order not found", detailed},
	CodeBomNotFound:         {http.StatusNotFound, final, "bill of materials not found", detailed},
	CodeIllegalTransition:   {http.StatusUnprocessableEntity, final, "state transition disallowed", detailed},
}

// MetadataFor treats unknown codes as internal errors.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded failure with an optional cause and client-safe details.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches err as the cause. A nil err yields a plain New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return string(e.code) + ": " + e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches any *Error with the same code, so errors.Is(err, New(CodeX, ""))
// works as a code check.
func (e *Error) Is(target error) bool {
	var other *Error
	if e == nil || !stdErrors.As(target, &other) || other == nil {
		return false
	}
	return e.code == other.code
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf is CodeInternal for untyped errors.
func CodeOf(err error) Code {
	return As(err).Code()
}

// IsCode reports whether err carries the given typed code anywhere in its chain.
func IsCode(err error, code Code) bool {
	return err != nil && stdErrors.Is(err, &Error{code: code})
}
