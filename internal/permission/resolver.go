// Package permission resolves whether an actor may execute a freeze command.
//
// Resolution walks a fixed priority chain over the loaded configuration
// snapshot: repository-specific entry, installation-wide entry, installation
// default, then a hard-coded deny-all. The resolver is a pure function of
// the snapshot; it never throws and never partially applies a permission.
package permission

import (
	"repo-freeze-service/internal/config"
	"repo-freeze-service/internal/domain"
)

// Resolver computes effective permissions from an immutable configuration
// snapshot.
type Resolver struct {
	cfg *config.PermissionsConfig
}

// NewResolver creates a Resolver over the given snapshot.
func NewResolver(cfg *config.PermissionsConfig) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve returns the effective permission for an actor in a scope. It is
// total: when no configuration layer matches, the returned permission has
// Configured false and every capability denied.
func (r *Resolver) Resolve(installationID int64, repository, actor string) domain.EffectivePermission {
	if r.cfg == nil {
		return domain.EffectivePermission{}
	}

	entry := r.cfg.Lookup(installationID, repository, actor)
	if entry == nil {
		return domain.EffectivePermission{}
	}

	role, err := entry.ToRole()
	if err != nil {
		// Validated at load time; an unknown role here means the snapshot
		// was constructed by hand, so fall back to deny-all.
		return domain.EffectivePermission{}
	}

	return domain.EffectivePermission{
		Role:                 role,
		CanFreeze:            entry.CanFreeze,
		CanUnfreeze:          entry.CanUnfreeze,
		CanEmergencyOverride: entry.CanEmergencyOverride,
		Configured:           true,
	}
}

// Authorize checks a resolved permission against a command. Read-only
// commands are permitted for every resolved role. Mutating commands require
// the matching capability flag, except for admins who bypass flag checks.
// Returns nil when allowed, or a PermissionDeniedError naming the role and
// missing capability.
func Authorize(actor string, perm domain.EffectivePermission, cmd domain.Command) *domain.PermissionDeniedError {
	if !cmd.Mutating() {
		return nil
	}

	if !perm.Configured {
		return &domain.PermissionDeniedError{Actor: actor}
	}

	if perm.Role == domain.RoleAdmin {
		return nil
	}

	capability, allowed := requiredCapability(perm, cmd)
	if allowed {
		return nil
	}
	return &domain.PermissionDeniedError{
		Actor:             actor,
		Role:              perm.Role,
		MissingCapability: capability,
	}
}

// requiredCapability maps a mutating command to the capability flag that
// gates it: can_freeze for the freeze family, can_unfreeze for the unfreeze
// family and unlock-pr.
func requiredCapability(perm domain.EffectivePermission, cmd domain.Command) (string, bool) {
	switch cmd.(type) {
	case domain.FreezeCommand, domain.FreezeAllCommand, domain.ScheduleFreezeCommand:
		return "freeze", perm.Role == domain.RoleMaintainer && perm.CanFreeze
	case domain.UnfreezeCommand, domain.UnfreezeAllCommand, domain.UnlockPrCommand:
		return "unfreeze", perm.Role == domain.RoleMaintainer && perm.CanUnfreeze
	default:
		return cmd.Name(), false
	}
}
