package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// ErrNoValidImages is returned when every input was rejected locally.
var ErrNoValidImages = errors.New("no valid images")

// ErrorKind groups transport failures into the categories users see.
type ErrorKind string

const (
	KindTooLarge   ErrorKind = "too_large"
	KindConnection ErrorKind = "connection"
	KindTimeout    ErrorKind = "timeout"
	KindGeneric    ErrorKind = "generic"
)

// MessageKey is the translation key for the user-facing message.
func (k ErrorKind) MessageKey() string {
	return "errors." + string(k)
}

// Error is a failed backend exchange.
type Error struct {
	Kind     ErrorKind
	Endpoint string
	Status   int
	Message  string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Endpoint, e.Kind)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	} else if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the category of err, KindGeneric for foreign errors.
func KindOf(err error) ErrorKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindGeneric
}

// transportError wraps a failure that happened before any response arrived.
func transportError(endpoint string, err error) *Error {
	return &Error{Kind: classifyTransport(err), Endpoint: endpoint, Err: err}
}

// statusError builds the error for a non-2xx response.
func statusError(endpoint string, status int, message string) *Error {
	return &Error{Kind: classifyStatus(status, message), Endpoint: endpoint, Status: status, Message: message}
}

func classifyTransport(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return KindTimeout
	}
	var urlErr *url.Error
	var opErr *net.OpError
	if errors.As(err, &urlErr) || errors.As(err, &opErr) {
		return KindConnection
	}
	return KindGeneric
}

func classifyStatus(status int, message string) ErrorKind {
	lower := strings.ToLower(message)
	switch {
	case status == http.StatusRequestEntityTooLarge || strings.Contains(lower, "entity too large"):
		return KindTooLarge
	case status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout || strings.Contains(lower, "timeout"):
		return KindTimeout
	default:
		return KindGeneric
	}
}
