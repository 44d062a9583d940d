package permissions

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
)

func TestTable_RoleGrants(t *testing.T) {
	table, err := NewTable()
	require.NoError(t, err)

	admin := []user.Role{user.RoleAdmin}
	require.True(t, table.Has(admin, SeeAllInOrg))
	require.True(t, table.Has(admin, ManageHierarchy))
	require.True(t, table.Has(admin, ManageAssignments))
	require.True(t, table.Has(admin, AuthorTestCases))
	require.False(t, table.Has(admin, Execute))

	for _, r := range []user.Role{user.RoleQA, user.RoleBA} {
		roles := []user.Role{r}
		require.True(t, table.Has(roles, AuthorTestCases), r)
		require.True(t, table.Has(roles, Execute), r)
		require.False(t, table.Has(roles, SeeAllInOrg), r)
		require.False(t, table.Has(roles, ManageAssignments), r)
	}

	tester := []user.Role{user.RoleTester}
	require.True(t, table.Has(tester, Execute))
	require.False(t, table.Has(tester, AuthorTestCases))
	require.False(t, table.Has(tester, ManageHierarchy))
}

func TestTable_AdminDenyWinsOverOtherRoles(t *testing.T) {
	table, err := NewTable()
	require.NoError(t, err)

	roles := []user.Role{user.RoleAdmin, user.RoleTester}
	require.True(t, table.Has(roles, SeeAllInOrg))
	require.False(t, table.Has(roles, Execute))
}

func TestTable_NoRolesGrantsNothing(t *testing.T) {
	table, err := NewTable()
	require.NoError(t, err)

	for _, c := range AllCapabilities {
		require.False(t, table.Has(nil, c), c)
	}
}

func TestTable_CapabilitiesForUser(t *testing.T) {
	u := user.Hydrate(uuid.New(), uuid.New(), "qa@example.com", "QA", []user.Role{user.RoleQA}, time.Time{})
	require.Equal(t, []Capability{AuthorTestCases, Execute}, Use().Capabilities(u))
}
