package slskd

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is matched by a StatusError carrying 404, e.g. an unknown search id.
var ErrNotFound = errors.New("not found")

// ErrEmptyBaseURL is returned by NewClient when no slskd URL is configured.
var ErrEmptyBaseURL = errors.New("slskd base URL is empty")

// StatusError is returned when slskd answers with an unexpected HTTP status.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}

// Is lets errors.Is(err, ErrNotFound) match a 404.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// IsUnauthorized reports whether err is a rejected API key.
func IsUnauthorized(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden
	}
	return false
}
