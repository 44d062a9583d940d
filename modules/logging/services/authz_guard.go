package services

import (
	"context"

	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
	"github.com/iota-uz/testbench/modules/core/permissions"
	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/serrors"
)

var (
	errUnauthenticated = serrors.Unauthenticated("UNAUTHENTICATED", "authentication required")
	errNotAccessible   = serrors.AccessDenied("NOT_ACCESSIBLE", "not accessible")
)

var authorizeActivityFn = defaultAuthorizeActivity

// authorizeActivity returns the caller and a ctx scoped to the caller's organization.
func authorizeActivity(ctx context.Context) (user.User, context.Context, error) {
	return authorizeActivityFn(ctx)
}

// The activity feed spans every user of the organization, so reading it needs the
// same capability as seeing everything in it.
func defaultAuthorizeActivity(ctx context.Context) (user.User, context.Context, error) {
	u, err := composables.UseUser(ctx)
	if err != nil {
		return user.User{}, ctx, errUnauthenticated
	}
	if !permissions.Use().Can(u, permissions.SeeAllInOrg) {
		return user.User{}, ctx, errNotAccessible
	}
	return u, composables.WithTenantID(ctx, u.OrganizationID()), nil
}
