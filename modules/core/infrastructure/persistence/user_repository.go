package persistence

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/repo"
)

const (
	selectUserQuery = `SELECT id, organization_id, email, display_name, roles, created_at FROM users`

	insertUserQuery = `
		INSERT INTO users (organization_id, email, display_name, roles)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
)

type PgUserRepository struct{}

func NewUserRepository() user.Repository {
	return &PgUserRepository{}
}

func (r *PgUserRepository) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	return r.queryOne(ctx, selectUserQuery+" WHERE id = $1", id)
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.queryOne(ctx, selectUserQuery+" WHERE email = lower($1)", email)
}

func (r *PgUserRepository) List(ctx context.Context) ([]user.User, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	return r.queryUsers(ctx, selectUserQuery+" WHERE organization_id = $1 ORDER BY email", tenantID)
}

func (r *PgUserRepository) Create(ctx context.Context, u user.User) (user.User, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return user.User{}, errors.Wrap(err, "failed to get transaction")
	}

	var (
		id        uuid.UUID
		createdAt = u.CreatedAt()
	)
	if err := tx.QueryRow(
		ctx,
		insertUserQuery,
		u.OrganizationID(),
		u.Email(),
		u.DisplayName(),
		rolesToStrings(u.Roles()),
	).Scan(&id, &createdAt); err != nil {
		if constraint, ok := repo.UniqueViolation(err); ok && constraint == "users_email_key" {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, errors.Wrap(err, "failed to insert user")
	}
	return u.WithID(id, createdAt), nil
}

func (r *PgUserRepository) queryOne(ctx context.Context, query string, args ...any) (user.User, error) {
	users, err := r.queryUsers(ctx, query, args...)
	if err != nil {
		return user.User{}, err
	}
	if len(users) == 0 {
		return user.User{}, user.ErrUserNotFound
	}
	return users[0], nil
}

func (r *PgUserRepository) queryUsers(ctx context.Context, query string, args ...any) ([]user.User, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	users := make([]user.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}
	return users, nil
}

func scanUser(row pgx.Row) (user.User, error) {
	var (
		id, orgID          uuid.UUID
		email, displayName string
		roleValues         []string
		createdAt          time.Time
	)
	if err := row.Scan(&id, &orgID, &email, &displayName, &roleValues, &createdAt); err != nil {
		return user.User{}, errors.Wrap(err, "failed to scan user row")
	}
	roles, err := user.ParseRoles(roleValues)
	if err != nil {
		return user.User{}, errors.Wrapf(err, "user %s", id)
	}
	return user.Hydrate(id, orgID, email, displayName, roles, createdAt), nil
}

func rolesToStrings(roles []user.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
