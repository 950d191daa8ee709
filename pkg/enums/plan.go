package enums

import "fmt"

// PlanStatus tracks whether a plan can be assigned to users.
type PlanStatus string

const (
	PlanStatusActive  PlanStatus = "active"
	PlanStatusHidden  PlanStatus = "hidden"
	PlanStatusRetired PlanStatus = "retired"
)

var validPlanStatuses = []PlanStatus{
	PlanStatusActive,
	PlanStatusHidden,
	PlanStatusRetired,
}

// String implements fmt.Stringer.
func (p PlanStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PlanStatus.
func (p PlanStatus) IsValid() bool {
	for _, candidate := range validPlanStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePlanStatus converts raw input into a PlanStatus.
func ParsePlanStatus(value string) (PlanStatus, error) {
	for _, candidate := range validPlanStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan status %q", value)
}

// Seeded plan and role identifiers.
const (
	PlanFree       = "free"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"

	RoleFree  = "free"
	RolePro   = "pro"
	RoleAdmin = "admin"
)
