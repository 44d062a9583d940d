package services

import (
	"context"

	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/serrors"
)

const (
	codeInvalidCompletion = "INVALID_COMPLETION"
	codeInvalidStepUpdate = "INVALID_STEP_UPDATE"
)

var (
	errUnauthenticated   = serrors.Unauthenticated("UNAUTHENTICATED", "authentication required")
	errExecutionNotFound = serrors.NotFound("EXECUTION_NOT_FOUND", "execution not found")
	errStepNotFound      = serrors.NotFound("STEP_NOT_FOUND", "step not found in execution")
	errUserNotFound      = serrors.NotFound("USER_NOT_FOUND", "user not found")
	errNotExecutionOwner = serrors.AccessDenied("NOT_EXECUTION_OWNER", "only the assigned tester may record results")
)

func principal(ctx context.Context) (user.User, context.Context, error) {
	u, err := composables.UseUser(ctx)
	if err != nil {
		return user.User{}, ctx, errUnauthenticated
	}
	return u, composables.WithTenantID(ctx, u.OrganizationID()), nil
}
