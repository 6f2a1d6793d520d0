package exchanges

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// APIError is an error the exchange itself reported: the request arrived and
// was rejected. Never retried.
type APIError struct {
	Exchange string
	Code     int
	Message  string
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s error %d: %s", e.Exchange, e.Code, e.Message)
}

// TransportError is a network-level failure: the request may never have
// reached the exchange. Retried a bounded number of times.
type TransportError struct {
	Exchange string
	Err      error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport error: %v", e.Exchange, e.Err)
}

// Unwrap returns the underlying error
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is (or wraps) a transport-level failure.
func IsTransport(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsRetryable reports whether a dispatch error is worth another attempt.
// Exchange-rejected orders and cancelled contexts never are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ae *APIError
	if errors.As(err, &ae) {
		return false
	}
	return IsTransport(err)
}
