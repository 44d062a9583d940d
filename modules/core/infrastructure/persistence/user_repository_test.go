package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
	"github.com/iota-uz/testbench/modules/core/domain/entities/organization"
	"github.com/iota-uz/testbench/modules/core/infrastructure/persistence"
	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/constants"
	"github.com/iota-uz/testbench/pkg/memdb"
	"github.com/iota-uz/testbench/pkg/repo/repotest"
)

func TestPgUserRepository_List_FiltersByTenant(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()
	now := time.Now()

	tx := &repotest.Tx{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			require.Contains(t, sql, "FROM users WHERE organization_id = $1")
			require.Equal(t, tenantID, args[0])
			return &repotest.Rows{Data: [][]any{
				{userID, tenantID, "qa@acme.test", "Quinn", []string{"QA", "BA"}, now},
			}}, nil
		},
	}
	ctx := context.WithValue(composables.WithTenantID(context.Background(), tenantID), constants.TxKey, tx)

	users, err := persistence.NewUserRepository().List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, userID, users[0].ID())
	require.Equal(t, []user.Role{user.RoleBA, user.RoleQA}, users[0].Roles())
}

func TestPgUserRepository_GetByID_NotFound(t *testing.T) {
	tx := &repotest.Tx{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			return &repotest.Rows{}, nil
		},
	}
	ctx := context.WithValue(context.Background(), constants.TxKey, tx)

	_, err := persistence.NewUserRepository().GetByID(ctx, uuid.New())
	require.ErrorIs(t, err, user.ErrUserNotFound)
}

func TestPgUserRepository_Create_MapsEmailConflict(t *testing.T) {
	tx := &repotest.Tx{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Contains(t, sql, "INSERT INTO users")
			require.Equal(t, []string{"TESTER"}, args[3])
			return repotest.Row{ScanFunc: func(dest ...any) error {
				return &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
			}}
		},
	}
	ctx := context.WithValue(context.Background(), constants.TxKey, tx)

	_, err := persistence.NewUserRepository().Create(ctx, user.New(uuid.New(), "t@acme.test", "T", user.RoleTester))
	require.ErrorIs(t, err, user.ErrEmailTaken)
}

func TestMemoryUserRepository_EmailIsUniqueAcrossOrganizations(t *testing.T) {
	db := memdb.New()
	users := persistence.NewMemoryUserRepository(db)
	ctx := context.Background()

	created, err := users.Create(ctx, user.New(uuid.New(), " Ada@Acme.test ", "Ada", user.RoleQA))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID())

	_, err = users.Create(ctx, user.New(uuid.New(), "ada@acme.test", "Other", user.RoleBA))
	require.ErrorIs(t, err, user.ErrEmailTaken)

	found, err := users.GetByEmail(ctx, "ADA@acme.test")
	require.NoError(t, err)
	require.Equal(t, created.ID(), found.ID())
}

func TestMemoryUserRepository_ListIsTenantScoped(t *testing.T) {
	db := memdb.New()
	users := persistence.NewMemoryUserRepository(db)
	orgA, orgB := uuid.New(), uuid.New()

	_, err := users.Create(context.Background(), user.New(orgA, "a@acme.test", "A", user.RoleQA))
	require.NoError(t, err)
	_, err = users.Create(context.Background(), user.New(orgB, "b@globex.test", "B", user.RoleQA))
	require.NoError(t, err)

	listed, err := users.List(composables.WithTenantID(context.Background(), orgA))
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, "a@acme.test", listed[0].Email())

	_, err = users.List(context.Background())
	require.ErrorIs(t, err, composables.ErrNoTenantIDFound)
}

func TestMemoryOrganizationRepository_RejectsDuplicateName(t *testing.T) {
	orgs := persistence.NewMemoryOrganizationRepository(memdb.New())
	ctx := context.Background()

	_, err := orgs.Create(ctx, organization.New("Acme"))
	require.NoError(t, err)
	_, err = orgs.Create(ctx, organization.New("Acme"))
	require.ErrorIs(t, err, organization.ErrNameTaken)

	listed, err := orgs.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
}
