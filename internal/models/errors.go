package models

import (
	"errors"
	"fmt"
	"net/http"
)

// TransportError is a failed call to the remote API: the request never got
// a response, or the response was not a success.
type TransportError struct {
	Op         string
	Method     string
	Path       string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%s: %s %s: status %d: %s", e.Op, e.Method, e.Path, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s %s: status %d", e.Op, e.Method, e.Path, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s %s: %v", e.Op, e.Method, e.Path, e.Err)
	default:
		return fmt.Sprintf("%s: %s %s failed", e.Op, e.Method, e.Path)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// Temporary reports failures worth waiting out: no response at all, or a
// server-side status.
func (e *TransportError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode >= http.StatusInternalServerError
}

// NotFoundError reports a group or message the server does not know.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsValidation reports whether err is a local validation failure.
func IsValidation(err error) bool {
	var list *ValidationErrors
	if errors.As(err, &list) {
		return true
	}
	var single ValidationError
	return errors.As(err, &single)
}
