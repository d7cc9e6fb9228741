// Package apperr defines the error taxonomy shared by the REST and realtime
// surfaces. Every error that crosses a package boundary belongs to one of
// these classes, so the HTTP edge can map it to a status code.
package apperr

import (
	"net/http"

	"github.com/zeebo/errs"
)

var (
	// Unauthorized is a missing, invalid or expired credential.
	Unauthorized = errs.Class("unauthorized")
	// Forbidden is a valid credential without the required role.
	Forbidden = errs.Class("forbidden")
	// InvalidArgument is a malformed identifier or an empty payload.
	InvalidArgument = errs.Class("invalid argument")
	// NotFound is a referenced record that does not exist.
	NotFound = errs.Class("not found")
	// StoreFailure is an unavailable or failing persistence layer.
	StoreFailure = errs.Class("store failure")
)

// HTTPStatus maps err to the status code returned by the REST surface.
// Errors outside the taxonomy are reported as internal errors.
func HTTPStatus(err error) int {
	switch {
	case Unauthorized.Has(err):
		return http.StatusUnauthorized
	case Forbidden.Has(err):
		return http.StatusForbidden
	case InvalidArgument.Has(err):
		return http.StatusBadRequest
	case NotFound.Has(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show to a client. Store failures
// and unclassified errors never leak their cause.
func PublicMessage(err error) string {
	if HTTPStatus(err) == http.StatusInternalServerError {
		return "Server error"
	}
	return err.Error()
}
