package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/configuration"
	"github.com/iota-uz/testbench/pkg/constants"
	"github.com/iota-uz/testbench/pkg/httpapi"
	"github.com/iota-uz/testbench/pkg/serrors"
)

var (
	errInvalidIdentity = serrors.Unauthenticated("UNAUTHENTICATED", "invalid identity header")
	errCSRFMissingUser = serrors.Unauthenticated("UNAUTHENTICATED", "authentication required")
	errCSRFInvalid     = serrors.AccessDenied("CSRF_TOKEN_INVALID", "csrf token is missing, stale or invalid")
)

type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, id uuid.UUID) (user.User, error)
}

type CSRFValidator interface {
	Validate(token string, userID uuid.UUID) error
}

// ProvidePrincipal trusts the identity header set by the upstream proxy and loads
// the user behind it. Requests without the header continue anonymously.
func ProvidePrincipal(resolver PrincipalResolver) mux.MiddlewareFunc {
	header := configuration.Use().Auth.UserIDHeader
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(header))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				httpapi.WriteServiceError(w, r, errInvalidIdentity)
				return
			}
			u, err := resolver.ResolvePrincipal(r.Context(), id)
			if err != nil {
				httpapi.WriteServiceError(w, r, err)
				return
			}
			ctx := composables.WithUser(r.Context(), u)
			ctx = composables.WithTenantID(ctx, u.OrganizationID())
			ctx = composables.WithLogger(ctx, composables.UseLogger(ctx).WithField("user-id", u.ID()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// RequireCSRF rejects mutating requests whose X-CSRF-Token was not issued to the
// current user or has expired. Requests that matched no route fall through so the
// router can answer 404 or 405.
func RequireCSRF(tokens CSRFValidator) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isMutating(r.Method) || mux.CurrentRoute(r) == nil {
				next.ServeHTTP(w, r)
				return
			}
			u, err := composables.UseUser(r.Context())
			if err != nil {
				httpapi.WriteServiceError(w, r, errCSRFMissingUser)
				return
			}
			if err := tokens.Validate(r.Header.Get(constants.CSRFTokenHeader), u.ID()); err != nil {
				composables.UseLogger(r.Context()).WithError(err).Debug("csrf token rejected")
				httpapi.WriteServiceError(w, r, errCSRFInvalid)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
