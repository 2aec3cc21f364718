package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repo-freeze-service/internal/config"
	"repo-freeze-service/internal/domain"
)

const testPermissions = `
installations:
  "12345":
    installation_id: "12345"
    default_permissions:
      role: contributor
    global_users:
      admin_user:
        role: admin
      global_maintainer:
        role: maintainer
        can_freeze: true
        can_unfreeze: false
    repositories:
      "owner/repo":
        repository: "owner/repo"
        users:
          repo_maintainer:
            role: maintainer
            can_freeze: true
            can_unfreeze: true
          global_maintainer:
            role: contributor
`

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	cfg, err := config.ParsePermissions([]byte(testPermissions))
	require.NoError(t, err)
	return NewResolver(cfg)
}

func TestResolve_PriorityChain(t *testing.T) {
	r := newTestResolver(t)

	// Repository-specific entry strictly dominates a conflicting global one.
	perm := r.Resolve(12345, "owner/repo", "global_maintainer")
	assert.Equal(t, domain.RoleContributor, perm.Role)
	assert.True(t, perm.Configured)

	// In other repositories the global entry applies.
	perm = r.Resolve(12345, "owner/other", "global_maintainer")
	assert.Equal(t, domain.RoleMaintainer, perm.Role)
	assert.True(t, perm.CanFreeze)
	assert.False(t, perm.CanUnfreeze)

	// Unknown actor falls back to the installation default.
	perm = r.Resolve(12345, "owner/repo", "stranger")
	assert.Equal(t, domain.RoleContributor, perm.Role)
	assert.True(t, perm.Configured)

	// Unknown installation yields deny-all.
	perm = r.Resolve(404, "owner/repo", "admin_user")
	assert.False(t, perm.Configured)
	assert.False(t, perm.CanFreeze)
}

func TestResolve_TotalAndDeterministic(t *testing.T) {
	r := newTestResolver(t)

	first := r.Resolve(12345, "owner/repo", "repo_maintainer")
	second := r.Resolve(12345, "owner/repo", "repo_maintainer")
	assert.Equal(t, first, second)

	// A nil snapshot still resolves (deny-all).
	empty := NewResolver(nil)
	perm := empty.Resolve(1, "a/b", "anyone")
	assert.False(t, perm.Configured)
}

func TestAuthorize_ReadOnlyAlwaysAllowed(t *testing.T) {
	r := newTestResolver(t)

	for _, actor := range []string{"admin_user", "repo_maintainer", "stranger"} {
		perm := r.Resolve(12345, "owner/repo", actor)
		assert.Nil(t, Authorize(actor, perm, domain.StatusCommand{}), "actor %s", actor)
		assert.Nil(t, Authorize(actor, perm, domain.HelpCommand{}), "actor %s", actor)
	}

	// Even a fully unconfigured actor can ask for status.
	assert.Nil(t, Authorize("ghost", domain.EffectivePermission{}, domain.StatusCommand{}))
}

func TestAuthorize_AdminBypassesFlags(t *testing.T) {
	r := newTestResolver(t)
	perm := r.Resolve(12345, "owner/repo", "admin_user")

	// admin_user has no capability flags set, but the role suffices.
	assert.Nil(t, Authorize("admin_user", perm, domain.FreezeCommand{}))
	assert.Nil(t, Authorize("admin_user", perm, domain.UnfreezeAllCommand{}))
	assert.Nil(t, Authorize("admin_user", perm, domain.UnlockPrCommand{}))
}

func TestAuthorize_MaintainerCapabilityFlags(t *testing.T) {
	r := newTestResolver(t)

	// can_freeze only: freeze family allowed, unfreeze family denied.
	perm := r.Resolve(12345, "owner/other", "global_maintainer")
	assert.Nil(t, Authorize("global_maintainer", perm, domain.FreezeCommand{}))
	assert.Nil(t, Authorize("global_maintainer", perm, domain.ScheduleFreezeCommand{}))

	denied := Authorize("global_maintainer", perm, domain.UnfreezeCommand{})
	require.NotNil(t, denied)
	assert.Equal(t, domain.RoleMaintainer, denied.Role)
	assert.Equal(t, "unfreeze", denied.MissingCapability)

	denied = Authorize("global_maintainer", perm, domain.UnlockPrCommand{})
	require.NotNil(t, denied)
	assert.Equal(t, "unfreeze", denied.MissingCapability)
}

func TestAuthorize_ContributorDeniedMutations(t *testing.T) {
	r := newTestResolver(t)
	perm := r.Resolve(12345, "owner/repo", "stranger")

	denied := Authorize("stranger", perm, domain.FreezeCommand{})
	require.NotNil(t, denied)
	assert.Equal(t, domain.RoleContributor, denied.Role)
	assert.Equal(t, "freeze", denied.MissingCapability)
}

func TestAuthorize_UnconfiguredDenied(t *testing.T) {
	denied := Authorize("ghost", domain.EffectivePermission{}, domain.FreezeCommand{})
	require.NotNil(t, denied)
	assert.Contains(t, denied.Error(), "no permissions configured")
}
