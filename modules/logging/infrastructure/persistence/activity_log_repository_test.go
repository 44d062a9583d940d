package persistence_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/testbench/modules/logging/domain/entities/activitylog"
	"github.com/iota-uz/testbench/modules/logging/infrastructure/persistence"
	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/constants"
	"github.com/iota-uz/testbench/pkg/memdb"
	"github.com/iota-uz/testbench/pkg/repo/repotest"
)

func txContext(tenantID uuid.UUID, tx *repotest.Tx) context.Context {
	return context.WithValue(composables.WithTenantID(context.Background(), tenantID), constants.TxKey, tx)
}

func TestActivityLogRepository_List_UsesTenantAndMapsRows(t *testing.T) {
	tenantID := uuid.New()
	actorID := uuid.New()
	subjectID := uuid.New()
	now := time.Now()

	tx := &repotest.Tx{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			require.Contains(t, sql, "FROM activity_logs")
			require.Contains(t, sql, "action = $3")
			require.Contains(t, sql, "LIMIT 10 OFFSET 5")
			require.Equal(t, []any{tenantID, actorID, activitylog.ActionModuleAssigned}, args)
			return &repotest.Rows{Data: [][]any{
				{int64(7), tenantID, uuid.NullUUID{UUID: actorID, Valid: true}, activitylog.ActionModuleAssigned, subjectID, []byte(`{"user_id":"u"}`), now},
				{int64(6), tenantID, uuid.NullUUID{}, activitylog.ActionModuleAssigned, subjectID, []byte(nil), now},
			}}, nil
		},
	}

	logs, err := persistence.NewActivityLogRepository().List(txContext(tenantID, tx), &activitylog.FindParams{
		ActorID: &actorID,
		Action:  activitylog.ActionModuleAssigned,
		Limit:   10,
		Offset:  5,
	})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Equal(t, int64(7), logs[0].ID)
	require.Equal(t, actorID, *logs[0].ActorID)
	require.JSONEq(t, `{"user_id":"u"}`, string(logs[0].Details))
	require.Nil(t, logs[1].ActorID)
	require.Nil(t, logs[1].Details)
}

func TestActivityLogRepository_Count_UsesTenantFilter(t *testing.T) {
	tenantID := uuid.New()
	tx := &repotest.Tx{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Contains(t, sql, "SELECT COUNT(*) FROM activity_logs")
			require.Equal(t, []any{tenantID}, args)
			return repotest.Row{Values: []any{int64(3)}}
		},
	}

	count, err := persistence.NewActivityLogRepository().Count(txContext(tenantID, tx), nil)
	require.NoError(t, err)
	require.Equal(t, int64(3), count)
}

func TestActivityLogRepository_Create_FillsTenantAndTimestamp(t *testing.T) {
	tenantID := uuid.New()
	tx := &repotest.Tx{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Contains(t, sql, "INSERT INTO activity_logs")
			require.Equal(t, tenantID, args[0])
			require.Equal(t, uuid.NullUUID{}, args[1])
			require.Equal(t, activitylog.ActionUserCreated, args[2])
			createdAt := args[5].(time.Time)
			require.False(t, createdAt.IsZero())
			return repotest.Row{Values: []any{int64(11), createdAt}}
		},
	}

	entry := &activitylog.ActivityLog{Action: activitylog.ActionUserCreated, SubjectID: uuid.New()}
	require.NoError(t, persistence.NewActivityLogRepository().Create(txContext(tenantID, tx), entry))
	require.Equal(t, int64(11), entry.ID)
	require.Equal(t, tenantID, entry.OrganizationID)
}

func TestMemoryActivityLogRepository_FiltersAndPages(t *testing.T) {
	db := memdb.New()
	r := persistence.NewMemoryActivityLogRepository(db)
	acme := composables.WithTenantID(context.Background(), uuid.New())
	globex := composables.WithTenantID(context.Background(), uuid.New())
	actor := uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := range 4 {
		require.NoError(t, r.Create(acme, &activitylog.ActivityLog{
			ActorID:   &actor,
			Action:    activitylog.ActionTestCaseCreated,
			SubjectID: uuid.New(),
			Details:   json.RawMessage(`{}`),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, r.Create(acme, &activitylog.ActivityLog{Action: activitylog.ActionUserCreated, SubjectID: uuid.New(), CreatedAt: base}))
	require.NoError(t, r.Create(globex, &activitylog.ActivityLog{ActorID: &actor, Action: activitylog.ActionTestCaseCreated, SubjectID: uuid.New()}))

	params := &activitylog.FindParams{ActorID: &actor, Limit: 2, Offset: 1}
	logs, err := r.List(acme, params)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Equal(t, base.Add(2*time.Minute), logs[0].CreatedAt)
	require.Equal(t, base.Add(time.Minute), logs[1].CreatedAt)

	count, err := r.Count(acme, params)
	require.NoError(t, err)
	require.Equal(t, int64(4), count)

	count, err = r.Count(acme, &activitylog.FindParams{Action: activitylog.ActionUserCreated})
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	count, err = r.Count(globex, nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}
