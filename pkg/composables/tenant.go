package composables

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/iota-uz/testbench/pkg/constants"
)

var ErrNoTenantIDFound = errors.New("no tenant id found in context")

// WithTenantID scopes ctx to one organization. Repositories never read or write
// rows of any other organization.
func WithTenantID(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, constants.TenantIDKey, tenantID)
}

func UseTenantID(ctx context.Context) (uuid.UUID, error) {
	tenantID, ok := ctx.Value(constants.TenantIDKey).(uuid.UUID)
	if !ok || tenantID == uuid.Nil {
		return uuid.Nil, ErrNoTenantIDFound
	}
	return tenantID, nil
}
