package core

import (
	"errors"
	"net/http"
)

// Error is a boundary-mappable failure carrying an HTTP status code.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string { return e.Message }

// ErrUnauthorized is returned when the caller identity is absent or empty.
var ErrUnauthorized = &Error{StatusCode: http.StatusUnauthorized, Message: "Unauthorized"}

// ErrPaRequestNotFound is returned by submit-document when the PA request
// external id does not resolve.
var ErrPaRequestNotFound = &Error{StatusCode: http.StatusNotFound, Message: "PA request not found"}

// ErrPaRequestUnknown is returned by the fetch endpoint for an unresolved
// external id; that endpoint reports 400 rather than 404.
var ErrPaRequestUnknown = &Error{StatusCode: http.StatusBadRequest, Message: "PA request not found"}

// StatusCode maps an error to its HTTP status, defaulting to 500 for
// anything that does not carry one.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}
