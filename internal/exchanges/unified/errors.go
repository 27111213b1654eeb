package unified

import (
	"errors"
	"fmt"
)

// Kind classifies a failure reported by a driver.
type Kind string

// Access kinds.
const (
	KindAuthentication    Kind = "Authentication"
	KindPermissionDenied  Kind = "PermissionDenied"
	KindAccountSuspended  Kind = "AccountSuspended"
	KindAccountNotEnabled Kind = "AccountNotEnabled"
	KindBadSymbol         Kind = "BadSymbol"
)

// Network kinds.
const (
	KindNetwork              Kind = "Network"
	KindRequestTimeout       Kind = "RequestTimeout"
	KindRateLimitExceeded    Kind = "RateLimitExceeded"
	KindExchangeNotAvailable Kind = "ExchangeNotAvailable"
)

// Other kinds.
const (
	KindInvalidAddress Kind = "InvalidAddress"
	KindBadRequest     Kind = "BadRequest"
	KindNotSupported   Kind = "NotSupported"
	KindExchangeError  Kind = "ExchangeError"
)

// Error is a classified driver failure.
type Error struct {
	Kind     Kind
	Exchange string
	Message  string
	Status   int // HTTP status, 0 when no response was received
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Exchange, e.Kind, e.Message)
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrAuthentication)
// works for errors from every driver.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// ErrUnknownExchange is returned by New for ids without a driver.
var ErrUnknownExchange = errors.New("exchange not supported")

// Sentinels for errors.Is.
var (
	ErrAuthentication       = &Error{Kind: KindAuthentication}
	ErrPermissionDenied     = &Error{Kind: KindPermissionDenied}
	ErrAccountSuspended     = &Error{Kind: KindAccountSuspended}
	ErrAccountNotEnabled    = &Error{Kind: KindAccountNotEnabled}
	ErrBadSymbol            = &Error{Kind: KindBadSymbol}
	ErrNetwork              = &Error{Kind: KindNetwork}
	ErrRequestTimeout       = &Error{Kind: KindRequestTimeout}
	ErrRateLimitExceeded    = &Error{Kind: KindRateLimitExceeded}
	ErrExchangeNotAvailable = &Error{Kind: KindExchangeNotAvailable}
	ErrInvalidAddress       = &Error{Kind: KindInvalidAddress}
	ErrNotSupported         = &Error{Kind: KindNotSupported}
)

func newError(exchange string, kind Kind, status int, format string, args ...interface{}) *Error {
	return &Error{
		Kind:     kind,
		Exchange: exchange,
		Message:  fmt.Sprintf(format, args...),
		Status:   status,
	}
}

// KindOf returns the kind of err, or "" when err is not a driver error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsAccessKind reports whether err says the credentials cannot perform the call.
func IsAccessKind(err error) bool {
	switch KindOf(err) {
	case KindAuthentication, KindPermissionDenied, KindAccountSuspended, KindAccountNotEnabled, KindBadSymbol:
		return true
	}
	return false
}

// IsNetworkKind reports whether err is a transport-level failure.
func IsNetworkKind(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindRequestTimeout, KindRateLimitExceeded, KindExchangeNotAvailable:
		return true
	}
	return false
}

// statusKind maps HTTP status codes to a kind when the body carries nothing better.
func statusKind(status int) Kind {
	switch {
	case status == 401:
		return KindAuthentication
	case status == 403:
		return KindPermissionDenied
	case status == 408:
		return KindRequestTimeout
	case status == 418 || status == 429:
		return KindRateLimitExceeded
	case status >= 500:
		return KindExchangeNotAvailable
	case status >= 400:
		return KindBadRequest
	}
	return KindExchangeError
}
