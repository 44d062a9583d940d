package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
	"github.com/iota-uz/testbench/modules/logging/domain/entities/activitylog"
	"github.com/iota-uz/testbench/modules/logging/infrastructure/persistence"
	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/memdb"
	"github.com/iota-uz/testbench/pkg/serrors"
)

type mockActivityRepo struct {
	lastParams *activitylog.FindParams
}

func (m *mockActivityRepo) List(ctx context.Context, params *activitylog.FindParams) ([]*activitylog.ActivityLog, error) {
	m.lastParams = params
	return []*activitylog.ActivityLog{}, nil
}

func (m *mockActivityRepo) Count(ctx context.Context, params *activitylog.FindParams) (int64, error) {
	return 0, nil
}

func (m *mockActivityRepo) Create(ctx context.Context, log *activitylog.ActivityLog) error {
	return nil
}

func member(orgID uuid.UUID, roles ...user.Role) user.User {
	return user.Hydrate(uuid.New(), orgID, "member@acme.test", "Member", roles, time.Now())
}

func TestActivityService_List_RequiresSeeAllInOrg(t *testing.T) {
	db := memdb.New()
	svc := NewActivityService(persistence.NewMemoryActivityLogRepository(db), db)
	orgID := uuid.New()

	_, _, err := svc.List(context.Background(), nil)
	require.True(t, serrors.Is(err, serrors.KindUnauthenticated))

	_, _, err = svc.List(composables.WithUser(context.Background(), member(orgID, user.RoleQA)), nil)
	require.True(t, serrors.Is(err, serrors.KindAccessDenied))

	admin := member(orgID, user.RoleAdmin)
	actor := admin.ID()
	require.NoError(t, svc.Record(composables.WithTenantID(context.Background(), orgID), &activitylog.ActivityLog{
		ActorID:   &actor,
		Action:    activitylog.ActionProjectAssigned,
		SubjectID: uuid.New(),
	}))
	require.NoError(t, svc.Record(composables.WithTenantID(context.Background(), uuid.New()), &activitylog.ActivityLog{
		Action:    activitylog.ActionProjectAssigned,
		SubjectID: uuid.New(),
	}))

	logs, total, err := svc.List(composables.WithUser(context.Background(), admin), nil)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, int64(1), total)
	require.Equal(t, orgID, logs[0].OrganizationID)
}

func TestActivityService_List_ClampsPaging(t *testing.T) {
	t.Cleanup(func() { authorizeActivityFn = defaultAuthorizeActivity })
	authorizeActivityFn = func(ctx context.Context) (user.User, context.Context, error) {
		return user.User{}, ctx, nil
	}

	repo := &mockActivityRepo{}
	svc := NewActivityService(repo, memdb.New())

	_, _, err := svc.List(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, defaultPageSize, repo.lastParams.Limit)

	_, _, err = svc.List(context.Background(), &activitylog.FindParams{Limit: 10_000, Offset: -3})
	require.NoError(t, err)
	require.Equal(t, maxPageSize, repo.lastParams.Limit)
	require.Zero(t, repo.lastParams.Offset)
}

func TestActivityService_Record_RejectsNil(t *testing.T) {
	svc := NewActivityService(&mockActivityRepo{}, memdb.New())
	require.Error(t, svc.Record(context.Background(), nil))
}

type unitOfWorkRepo struct {
	mockActivityRepo
	db      *memdb.DB
	outside int
}

func (r *unitOfWorkRepo) List(ctx context.Context, params *activitylog.FindParams) ([]*activitylog.ActivityLog, error) {
	if !r.db.InTx(ctx) {
		r.outside++
	}
	return r.mockActivityRepo.List(ctx, params)
}

func (r *unitOfWorkRepo) Count(ctx context.Context, params *activitylog.FindParams) (int64, error) {
	if !r.db.InTx(ctx) {
		r.outside++
	}
	return r.mockActivityRepo.Count(ctx, params)
}

func TestActivityService_List_ReadsInTenantUnitOfWork(t *testing.T) {
	db := memdb.New()
	repo := &unitOfWorkRepo{db: db}
	svc := NewActivityService(repo, db)

	_, _, err := svc.List(composables.WithUser(context.Background(), member(uuid.New(), user.RoleAdmin)), nil)
	require.NoError(t, err)
	require.Zero(t, repo.outside)
	require.NotNil(t, repo.lastParams)
}
