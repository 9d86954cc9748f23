package adapter

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy shared by every adapter. Adapters wrap these with
// fmt.Errorf("...: %w") so callers classify failures with errors.Is.
var (
	// ErrAuth means credentials are missing or rejected. Fatal for a run.
	ErrAuth = errors.New("authentication failed")
	// ErrNetwork covers transport failures and server-side errors. Retryable.
	ErrNetwork = errors.New("network error")
	// ErrRateLimited means the service asked the client to slow down. Retryable.
	ErrRateLimited = errors.New("rate limited")
	// ErrNotFound means the referenced item does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalid means the service rejected the request content.
	ErrInvalid = errors.New("invalid request")
)

// IsRetryable reports whether err is worth retrying after a backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrRateLimited)
}

// IsFatal reports whether err must abort a run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAuth)
}

// StatusError is an HTTP error response classified into the taxonomy.
type StatusError struct {
	Status int
	Body   string
	Kind   error
}

func (e *StatusError) Error() string {
	body := e.Body
	if body == "" {
		body = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%v: http %d: %s", e.Kind, e.Status, body)
}

// Unwrap exposes the taxonomy sentinel.
func (e *StatusError) Unwrap() error {
	return e.Kind
}

// KindForStatus maps an HTTP status code to a taxonomy sentinel, or nil for
// success codes.
func KindForStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ErrAuth
	case status == http.StatusNotFound, status == http.StatusGone:
		return ErrNotFound
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status == http.StatusRequestTimeout, status >= 500:
		return ErrNetwork
	default:
		return ErrInvalid
	}
}
