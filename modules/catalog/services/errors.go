package services

import (
	"context"

	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/serrors"
)

var (
	ErrNotAccessible = serrors.AccessDenied("NOT_ACCESSIBLE", "not accessible")

	errUnauthenticated   = serrors.Unauthenticated("UNAUTHENTICATED", "authentication required")
	errProjectNotFound   = serrors.NotFound("PROJECT_NOT_FOUND", "project not found")
	errModuleNotFound    = serrors.NotFound("MODULE_NOT_FOUND", "module not found")
	errSubmoduleNotFound = serrors.NotFound("SUBMODULE_NOT_FOUND", "submodule not found")
	errTestCaseNotFound  = serrors.NotFound("TEST_CASE_NOT_FOUND", "test case not found")
	errUserNotFound      = serrors.NotFound("USER_NOT_FOUND", "user not found")
	errDuplicateName     = serrors.Conflict("DUPLICATE_NAME", "name already used at this level")
	errAlreadyAssigned   = serrors.Conflict("ALREADY_ASSIGNED", "already assigned")
	errNotAssigned       = serrors.NotFound("ASSIGNMENT_NOT_FOUND", "assignment not found")
)

// principal returns the caller and a ctx scoped to the caller's organization.
func principal(ctx context.Context) (user.User, context.Context, error) {
	u, err := composables.UseUser(ctx)
	if err != nil {
		return user.User{}, ctx, errUnauthenticated
	}
	return u, composables.WithTenantID(ctx, u.OrganizationID()), nil
}
