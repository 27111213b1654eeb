package exchanges

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/mselser95/mm-oracle/pkg/types"
	"go.uber.org/zap"
)

// AccessClassifier reports whether err means the key lacks access.
type AccessClassifier func(err error) bool

// AccessGuard holds what CatchAccessErrors needs to reclassify failures
// of one client instance.
type AccessGuard struct {
	Exchange            string
	Classify            AccessClassifier
	Logger              *zap.Logger
	LogPermissionErrors bool
}

// CatchAccessErrors calls fn and turns failures recognized by the guard's
// classifier into *types.AccessError for permission. Other errors pass
// through untouched.
func CatchAccessErrors[T any](
	guard AccessGuard,
	method string,
	permission types.Permission,
	fn func() (T, error),
) (T, error) {
	result, err := fn()
	if err == nil {
		return result, nil
	}

	if types.IsAccessError(err) || guard.Classify == nil || !guard.Classify(err) {
		return result, err
	}

	AccessErrorsTotal.WithLabelValues(guard.Exchange, string(permission)).Inc()

	if guard.LogPermissionErrors && guard.Logger != nil {
		guard.Logger.Info("exchange-api-access-failed",
			zap.String("method", method),
			zap.String("permission", string(permission)),
			zap.Error(err))
	}

	var zero T
	return zero, &types.AccessError{
		Exchange:   guard.Exchange,
		Permission: permission,
		Message:    err.Error(),
	}
}

// KeyFingerprint identifies an API key in logs without revealing it.
func KeyFingerprint(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:8])
}
