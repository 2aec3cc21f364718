package domain

import "fmt"

// Role is the access level of a user for freeze operations.
type Role string

const (
	// RoleAdmin has full access to all freeze operations regardless of flags.
	RoleAdmin Role = "admin"
	// RoleMaintainer can perform the operations its capability flags allow.
	RoleMaintainer Role = "maintainer"
	// RoleContributor has read-only access (status and help).
	RoleContributor Role = "contributor"
)

// ParseRole converts a configuration string into a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "admin":
		return RoleAdmin, nil
	case "maintainer":
		return RoleMaintainer, nil
	case "contributor":
		return RoleContributor, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// EffectivePermission is the authorization resolved for an actor in a scope.
// Resolution is total: when no configuration layer matches, Configured is
// false and every capability is denied.
type EffectivePermission struct {
	Role                 Role
	CanFreeze            bool
	CanUnfreeze          bool
	CanEmergencyOverride bool
	Configured           bool
}

// PermissionDeniedError explains why a command was rejected: the resolved
// role and the capability it lacked.
type PermissionDeniedError struct {
	Actor             string
	Role              Role
	MissingCapability string
}

func (e *PermissionDeniedError) Error() string {
	if e.Role == "" {
		return fmt.Sprintf("user %q has no permissions configured", e.Actor)
	}
	return fmt.Sprintf("user %q with role %q does not have %s permissions", e.Actor, e.Role, e.MissingCapability)
}
