package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotSupported is returned by clients for operations their exchange cannot serve.
var ErrNotSupported = errors.New("operation not supported by exchange")

// AccessError means the API key lacks a permission or was rejected by the exchange.
// Callers should mark the key invalid and stop retrying until re-enrollment.
type AccessError struct {
	Exchange   string
	Permission Permission
	Message    string
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s: access denied (%s): %s", e.Exchange, e.Permission, e.Message)
}

// ClientError is a transient infrastructure failure. Callers may retry with backoff.
type ClientError struct {
	Exchange string
	Message  string
	Err      error
}

func (e *ClientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Exchange, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Exchange, e.Message)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// ArgumentError is a violated caller precondition. It is never retried.
type ArgumentError struct {
	Argument string
	Message  string
}

func (e *ArgumentError) Error() string {
	if e.Argument == "" {
		return "invalid argument: " + e.Message
	}
	return fmt.Sprintf("invalid argument %q: %s", e.Argument, e.Message)
}

// ValidationError is a schema failure of a manifest or results document.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// KeyAuthorizationError is returned on enrollment when a key misses permissions.
type KeyAuthorizationError struct {
	Exchange string
	Missing  []Permission
}

func (e *KeyAuthorizationError) Error() string {
	missing := make([]string, 0, len(e.Missing))
	for _, p := range e.Missing {
		missing = append(missing, string(p))
	}
	return fmt.Sprintf("%s: api key is missing permissions: %s", e.Exchange, strings.Join(missing, ", "))
}

// IsAccessError reports whether err is or wraps an AccessError.
func IsAccessError(err error) bool {
	var accessErr *AccessError
	return errors.As(err, &accessErr)
}

// IsClientError reports whether err is or wraps a ClientError.
func IsClientError(err error) bool {
	var clientErr *ClientError
	return errors.As(err, &clientErr)
}
