package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

var (
	// ErrRejected is returned when the broker refuses a deal.
	ErrRejected = errors.New("deal rejected")
	// ErrNotFound is returned when an epic or deal does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnconfirmed is returned when an order was sent but its outcome
	// could not be read. The deal may be open.
	ErrUnconfirmed = errors.New("deal not confirmed")
)

// APIError is a non-2xx response from the broker.
type APIError struct {
	Method string
	Path   string
	Status int
	Code   string
	Body   string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Temporary reports whether repeating the call may succeed.
func (e *APIError) Temporary() bool {
	switch {
	case e.Status == http.StatusUnauthorized,
		e.Status == http.StatusRequestTimeout,
		e.Status == http.StatusTooManyRequests,
		e.Status >= 500:
		return true
	}
	return false
}

// Is matches ErrNotFound for 404s and for IG "not found" error codes.
func (e *APIError) Is(target error) bool {
	if target != ErrNotFound {
		return false
	}
	code := strings.ToLower(e.Code)
	return e.Status == http.StatusNotFound || strings.Contains(code, "notfound") || strings.Contains(code, "not-found")
}

// IsTransient reports whether err is worth retrying: temporary API errors,
// timeouts and dropped connections. Cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
