package exchanges

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mselser95/mm-oracle/pkg/types"
)

// DefaultMaxLookback bounds how far back trade windows may start.
const DefaultMaxLookback = 365 * 24 * time.Hour

//nolint:gochecknoglobals // compiled once
var pairPattern = regexp.MustCompile(`^[A-Z0-9]{2,20}/[A-Z0-9]{2,20}$`)

// IsAcceptableTimestamp reports whether ts (ms) is not in the future and
// not older than maxLookback.
func IsAcceptableTimestamp(ts int64, maxLookback time.Duration) bool {
	return isAcceptableTimestampAt(ts, maxLookback, time.Now())
}

func isAcceptableTimestampAt(ts int64, maxLookback time.Duration, now time.Time) bool {
	nowMs := now.UnixMilli()
	if ts > nowMs {
		return false
	}
	return ts >= nowMs-maxLookback.Milliseconds()
}

// ValidateWindow checks a since/until trade window.
func ValidateWindow(since, until int64, maxLookback time.Duration) error {
	if !IsAcceptableTimestamp(since, maxLookback) {
		return &types.ArgumentError{Argument: "since", Message: "must be a ms timestamp in acceptable range"}
	}
	if !IsAcceptableTimestamp(until, maxLookback) {
		return &types.ArgumentError{Argument: "until", Message: "must be a ms timestamp in acceptable range"}
	}
	if until < since {
		return &types.ArgumentError{Argument: "until", Message: "must be greater than or equal to since"}
	}
	return nil
}

// SplitSymbol splits BASE/QUOTE into its parts.
func SplitSymbol(symbol string) (base string, quote string, err error) {
	if !pairPattern.MatchString(symbol) {
		return "", "", &types.ArgumentError{
			Argument: "symbol",
			Message:  fmt.Sprintf("%q is not a BASE/QUOTE pair", symbol),
		}
	}
	parts := strings.SplitN(symbol, "/", 2)
	return parts[0], parts[1], nil
}
