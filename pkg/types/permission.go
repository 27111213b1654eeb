package types

// Permission is a scoped capability an exchange API key may grant.
type Permission string

const (
	PermissionViewAccountBalance     Permission = "VIEW_ACCOUNT_BALANCE"
	PermissionViewDepositAddress     Permission = "VIEW_DEPOSIT_ADDRESS"
	PermissionViewSpotTradingHistory Permission = "VIEW_SPOT_TRADING_HISTORY"
)

// AllPermissions lists every permission in a stable order.
func AllPermissions() []Permission {
	return []Permission{
		PermissionViewAccountBalance,
		PermissionViewDepositAddress,
		PermissionViewSpotTradingHistory,
	}
}

// Valid reports whether p is a known permission.
func (p Permission) Valid() bool {
	switch p {
	case PermissionViewAccountBalance, PermissionViewDepositAddress, PermissionViewSpotTradingHistory:
		return true
	}
	return false
}

// AccessCheckResult is the outcome of probing an API key for a set of permissions.
// Missing is empty when Success is true.
type AccessCheckResult struct {
	Success bool         `json:"success"`
	Missing []Permission `json:"missing,omitempty"`
}

// UnionPermissions merges b into a, preserving the order of AllPermissions
// and dropping duplicates and unknown values.
func UnionPermissions(a, b []Permission) []Permission {
	seen := make(map[Permission]bool, len(a)+len(b))
	for _, p := range a {
		seen[p] = true
	}
	for _, p := range b {
		seen[p] = true
	}

	result := make([]Permission, 0, len(seen))
	for _, p := range AllPermissions() {
		if seen[p] {
			result = append(result, p)
		}
	}
	return result
}
