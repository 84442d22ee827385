package shared

import "fmt"

// Role is the capability profile attached to a request. Authentication itself
// happens upstream; the fronting gateway forwards the resolved role.
type Role string

const (
	// RoleManager sees pricing, manages field definitions, deletes batches.
	RoleManager Role = "manager"
	// RoleWarehouse moves stock but never sees pricing.
	RoleWarehouse Role = "warehouse"
)

// ParseRole validates a role string from the request.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleManager, RoleWarehouse:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// CanViewPricing reports whether prices, values and costs may be exposed.
func (r Role) CanViewPricing() bool { return r == RoleManager }

// CanManageFields reports whether custom field definitions may be mutated.
func (r Role) CanManageFields() bool { return r == RoleManager }

// CanDeleteBatches reports whether batches may be removed from history.
func (r Role) CanDeleteBatches() bool { return r == RoleManager }

// Tag returns the role marker embedded in export filenames.
func (r Role) Tag() string {
	if r.CanViewPricing() {
		return "full"
	}
	return "redacted"
}
