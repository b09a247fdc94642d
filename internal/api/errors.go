package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error classes for backend calls. Match with errors.Is.
var (
	// ErrNetwork covers transport failures where no response was received
	ErrNetwork = errors.New("network unavailable")
	// ErrUnauthorized is a 401; the session has already been cleared when it is returned
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation covers the remaining 4xx statuses
	ErrValidation = errors.New("request rejected")
	// ErrNotFound is a 404, also an ErrValidation
	ErrNotFound = errors.New("resource not found")
	// ErrServer covers 5xx statuses and failures the backend reports in a 200 body
	ErrServer = errors.New("server error")
)

// HTTPError is a non-2xx response from the backend
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	// Detail is the backend's "detail" field, or the raw body when absent
	Detail string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is lets errors.Is classify the response by status
func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrValidation:
		return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusUnauthorized
	case ErrServer:
		return e.StatusCode >= 500
	}
	return false
}

// IsRetryableError reports whether a user-initiated retry may succeed
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrServer)
}

// IsPermanentError reports whether repeating the same request cannot succeed
func IsPermanentError(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrValidation)
}
