package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Kind classifies why a Send failed.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInvalidRequest: the request could not be built (bad URL, bad method).
	KindInvalidRequest
	// KindHTTPStatus: the server answered with a non-2xx status.
	KindHTTPStatus
	// KindTimeout: name resolution, connect, or an internal deadline failed.
	KindTimeout
	// KindCancelled: the caller's context was cancelled.
	KindCancelled
	// KindTooManyRedirects: the redirect bound was exceeded.
	KindTooManyRedirects
	// KindTransport: any other network failure.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid request"
	case KindHTTPStatus:
		return "http status"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	case KindTooManyRedirects:
		return "too many redirects"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error is returned by Send for every failure.
type Error struct {
	Kind       Kind
	Method     string
	URL        string
	StatusCode int
	// Body holds a best-effort prefix of the response body for KindHTTPStatus.
	Body string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		if e.Body != "" {
			return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
		}
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s %s: %s: %v", e.Method, e.URL, e.Kind, e.Err)
		}
		return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or KindUnknown when err did not come from Send.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}

// IsStatus reports whether err is an HTTP status failure with the given code.
func IsStatus(err error, code int) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == KindHTTPStatus && te.StatusCode == code
}

// IsNotFound reports whether err is a 404 from the remote server.
func IsNotFound(err error) bool { return IsStatus(err, 404) }

// classify maps a client error to a Kind. caller is the context the caller
// passed to Send; its cancellation is the only source of KindCancelled.
func classify(caller context.Context, err error) Kind {
	if caller.Err() != nil {
		return KindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && (opErr.Op == "dial" || opErr.Op == "proxyconnect") {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, errProxyDial) {
		return KindTimeout
	}
	return KindTransport
}
