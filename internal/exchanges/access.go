package exchanges

import (
	"context"
	"errors"
	"fmt"

	"github.com/mselser95/mm-oracle/pkg/types"
	"golang.org/x/sync/errgroup"
)

// Probe exercises one permission. It returns nil when the permission is
// granted and an *types.AccessError when it is not.
type Probe func(ctx context.Context) error

// CheckRequiredAccess runs the probe of every requested permission
// concurrently and waits for all of them before looking at any result.
//
// Access errors mark permissions missing. Any other probe failure aborts the
// check: a ClientError is returned as a single ClientError for the whole
// check, anything else is returned unchanged.
func CheckRequiredAccess(
	ctx context.Context,
	exchange string,
	permissions []types.Permission,
	probes map[types.Permission]Probe,
) (types.AccessCheckResult, error) {
	toCheck, err := uniquePermissions(permissions)
	if err != nil {
		return types.AccessCheckResult{}, err
	}

	for _, permission := range toCheck {
		if probes[permission] == nil {
			return types.AccessCheckResult{}, &types.ArgumentError{
				Argument: "permissions",
				Message:  fmt.Sprintf("no access probe for %s on %s", permission, exchange),
			}
		}
	}

	granted := make([]bool, len(toCheck))

	var g errgroup.Group
	for i, permission := range toCheck {
		probe := probes[permission]
		g.Go(func() error {
			probeErr := probe(ctx)
			if probeErr == nil {
				granted[i] = true
				return nil
			}
			if types.IsAccessError(probeErr) {
				return nil
			}
			return probeErr
		})
	}

	// Wait returns only after every probe finished.
	err = g.Wait()
	if err != nil {
		AccessChecksTotal.WithLabelValues(exchange, "error").Inc()

		var clientErr *types.ClientError
		if errors.As(err, &clientErr) {
			return types.AccessCheckResult{}, &types.ClientError{
				Exchange: exchange,
				Message:  "error while checking exchange access",
				Err:      err,
			}
		}
		return types.AccessCheckResult{}, err
	}

	var missing []types.Permission
	for i, permission := range toCheck {
		if !granted[i] {
			missing = append(missing, permission)
		}
	}

	if len(missing) > 0 {
		AccessChecksTotal.WithLabelValues(exchange, "missing").Inc()
		return types.AccessCheckResult{Success: false, Missing: missing}, nil
	}

	AccessChecksTotal.WithLabelValues(exchange, "success").Inc()
	return types.AccessCheckResult{Success: true}, nil
}

func uniquePermissions(permissions []types.Permission) ([]types.Permission, error) {
	if len(permissions) == 0 {
		return nil, &types.ArgumentError{
			Argument: "permissions",
			Message:  "at least one exchange permission must be provided for check",
		}
	}

	seen := make(map[types.Permission]bool, len(permissions))
	unique := make([]types.Permission, 0, len(permissions))
	for _, p := range permissions {
		if !p.Valid() {
			return nil, &types.ArgumentError{
				Argument: "permissions",
				Message:  fmt.Sprintf("unknown permission %q", p),
			}
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		unique = append(unique, p)
	}
	return unique, nil
}
