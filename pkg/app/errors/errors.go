// Package errors defines the categorised service errors returned by the check-in
// API and maps them onto HTTP status codes.
package errors

import (
	"errors"
	"net/http"
)

// Category classifies a ServiceError. Categories below CategoryGeneralError
// are caused by the client.
type Category int

const (
	CategoryNoError Category = iota
	// CategoryDataError covers malformed or missing request data.
	CategoryDataError
	CategoryResourceNotFound
	// CategoryDataConflict covers requests that collide with work in progress,
	// such as a rollup cycle holding the lease.
	CategoryDataConflict
	CategoryGeneralError
	// CategoryUnavailable means a backing store or broker is unreachable.
	CategoryUnavailable
)

type categoryInfo struct {
	name   string
	status int
	prefix string
}

var categories = map[Category]categoryInfo{
	CategoryNoError:          {"CategoryNoError", http.StatusOK, ""},
	CategoryDataError:        {"CategoryDataError", http.StatusBadRequest, "bad request: "},
	CategoryResourceNotFound: {"CategoryResourceNotFound", http.StatusNotFound, "resource not found: "},
	CategoryDataConflict:     {"CategoryDataConflict", http.StatusConflict, "conflict: "},
	CategoryGeneralError:     {"CategoryGeneralError", http.StatusInternalServerError, "internal error: "},
	CategoryUnavailable:      {"CategoryUnavailable", http.StatusServiceUnavailable, "unavailable: "},
}

func (c Category) info() categoryInfo {
	if info, ok := categories[c]; ok {
		return info
	}
	return categories[CategoryGeneralError]
}

func (c Category) String() string { return c.info().name }

// ServiceError pairs a client-facing Message with the underlying cause,
// which is only logged.
type ServiceError struct {
	Category Category
	Message  string
	Err      error
}

func (err ServiceError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	return err.Message
}

func (err ServiceError) Unwrap() error { return err.Err }

// StatusCode returns the HTTP status of the error's category.
func (err ServiceError) StatusCode() int { return err.Category.info().status }

// Is reports whether err wraps a ServiceError of category cat.
func Is(err error, cat Category) bool {
	var svcErr *ServiceError
	return errors.As(err, &svcErr) && svcErr.Category == cat
}

// IsInternalError reports whether err is a server-side failure. Errors that
// are not ServiceErrors count as internal.
func IsInternalError(err error) bool {
	var svcErr *ServiceError
	return !errors.As(err, &svcErr) || svcErr.Category >= CategoryGeneralError
}

func newError(cat Category, err error, message string) error {
	if err == nil {
		err = errors.New(cat.info().prefix + message)
	}
	return &ServiceError{Category: cat, Message: message, Err: err}
}

// GeneralError hides err behind "Internal Server Error".
func GeneralError(err error) error {
	return newError(CategoryGeneralError, err, "Internal Server Error")
}

// BadRequestError returns a CategoryDataError; message is shown to the client.
func BadRequestError(err error, message string) error {
	return newError(CategoryDataError, err, message)
}

// ResourceNotFoundError returns a CategoryResourceNotFound; message is shown to the client.
func ResourceNotFoundError(err error, message string) error {
	return newError(CategoryResourceNotFound, err, message)
}

// ConflictError returns a CategoryDataConflict; message is shown to the client.
func ConflictError(err error, message string) error {
	return newError(CategoryDataConflict, err, message)
}

// UnavailableError returns a CategoryUnavailable; message is shown to the client.
func UnavailableError(err error, message string) error {
	return newError(CategoryUnavailable, err, message)
}
