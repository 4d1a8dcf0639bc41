// Package errors provides the structured error system used by upenwrtd.
// Errors carry a domain, a code, an HTTP status and optional details, and
// keep their cause reachable through errors.Is and errors.As.
package errors

import (
	"errors"
	"fmt"
	"maps"
)

// Code represents a unique error code within a domain
type Code string

// Domain represents an error domain (e.g. "request", "integrity", "subprocess")
type Domain string

// Error domains
const (
	// DomainRequest covers caller mistakes: bad or missing arguments, unknown boards
	DomainRequest Domain = "request"
	// DomainIntegrity covers inconsistencies in upstream artifacts or build output
	DomainIntegrity Domain = "integrity"
	// DomainSubprocess covers external tools exiting non-zero
	DomainSubprocess Domain = "subprocess"
	// DomainDownload covers upstream network failures
	DomainDownload Domain = "download"
	DomainStorage  Domain = "storage"
	DomainDatabase Domain = "database"
	DomainInternal Domain = "internal"
)

// Error represents a structured error with domain, code, and HTTP status
type Error struct {
	// Domain categorizes the error
	Domain Domain `json:"domain"`

	// Code is a unique identifier within the domain (e.g. "not_found")
	Code Code `json:"code"`

	// Message is a human-readable error message
	Message string `json:"message"`

	// Details carries machine-readable context (command line, exit code, captured output)
	Details map[string]interface{} `json:"details,omitempty"`

	// HTTPStatus is the corresponding HTTP status code
	HTTPStatus int `json:"-"`

	cause error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is and errors.As support
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches on domain and code, so sentinel values compare equal to their derivatives.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Domain == t.Domain && e.Code == t.Code
}

// Cause returns the wrapped error, if any
func (e *Error) Cause() error {
	return e.cause
}

func (e *Error) clone() *Error {
	return &Error{
		Domain:     e.Domain,
		Code:       e.Code,
		Message:    e.Message,
		Details:    maps.Clone(e.Details),
		HTTPStatus: e.HTTPStatus,
		cause:      e.cause,
	}
}

// WithCause returns a new error with the underlying cause attached
func (e *Error) WithCause(cause error) *Error {
	c := e.clone()
	c.cause = cause
	return c
}

// WithMessage returns a new error with a custom message
func (e *Error) WithMessage(message string) *Error {
	c := e.clone()
	c.Message = message
	return c
}

// WithMessagef returns a new error with a formatted custom message
func (e *Error) WithMessagef(format string, args ...interface{}) *Error {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// WithDetail returns a new error with one more detail entry
func (e *Error) WithDetail(key string, value interface{}) *Error {
	c := e.clone()
	if c.Details == nil {
		c.Details = make(map[string]interface{})
	}
	c.Details[key] = value
	return c
}

// New creates a new Error with the given parameters
func New(domain Domain, code Code, httpStatus int, message string) *Error {
	return &Error{
		Domain:     domain,
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an existing error with an Error
func Wrap(err error, domain Domain, code Code, httpStatus int, message string) *Error {
	return &Error{
		Domain:     domain,
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		cause:      err,
	}
}

// GetHTTPStatus returns the HTTP status code for an error.
// Errors that are not an *Error map to 500.
func GetHTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus
	}
	return 500
}

// GetCode returns the error code if the error is an *Error, otherwise empty string
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// GetDomain returns the error domain if the error is an *Error, otherwise empty string
func GetDomain(err error) Domain {
	var e *Error
	if errors.As(err, &e) {
		return e.Domain
	}
	return ""
}

// IsUserError reports whether err is the caller's fault (4xx)
func IsUserError(err error) bool {
	status := GetHTTPStatus(err)
	return status >= 400 && status < 500
}

// Is checks if an error matches a target error (delegates to errors.Is)
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target (delegates to errors.As)
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join delegates to errors.Join
func Join(errs ...error) error {
	return errors.Join(errs...)
}
