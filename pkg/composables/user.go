package composables

import (
	"context"
	"errors"

	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
	"github.com/iota-uz/testbench/pkg/constants"
)

var ErrUnauthorized = errors.New("unauthorized")

func WithUser(ctx context.Context, u user.User) context.Context {
	return context.WithValue(ctx, constants.UserKey, u)
}

// UseUser returns the authenticated user of the request.
func UseUser(ctx context.Context) (user.User, error) {
	u, ok := ctx.Value(constants.UserKey).(user.User)
	if !ok || u.IsZero() {
		return user.User{}, ErrUnauthorized
	}
	return u, nil
}
