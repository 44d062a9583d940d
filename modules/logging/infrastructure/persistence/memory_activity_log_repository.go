package persistence

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/testbench/modules/logging/domain/entities/activitylog"
	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/memdb"
)

type MemoryActivityLogRepository struct {
	db   *memdb.DB
	logs *memdb.Table[int64, activitylog.ActivityLog]
}

func NewMemoryActivityLogRepository(db *memdb.DB) *MemoryActivityLogRepository {
	return &MemoryActivityLogRepository{db: db, logs: memdb.NewTable[int64, activitylog.ActivityLog](db)}
}

func (r *MemoryActivityLogRepository) matching(ctx context.Context, params *activitylog.FindParams) ([]activitylog.ActivityLog, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	if params == nil {
		params = &activitylog.FindParams{}
	}
	action := strings.TrimSpace(params.Action)
	logs := r.logs.Select(func(l activitylog.ActivityLog) bool {
		switch {
		case l.OrganizationID != tenantID:
			return false
		case params.ActorID != nil && (l.ActorID == nil || *l.ActorID != *params.ActorID):
			return false
		case params.SubjectID != nil && l.SubjectID != *params.SubjectID:
			return false
		case action != "" && l.Action != action:
			return false
		case params.From != nil && l.CreatedAt.Before(*params.From):
			return false
		case params.To != nil && l.CreatedAt.After(*params.To):
			return false
		}
		return true
	})
	slices.SortFunc(logs, func(a, b activitylog.ActivityLog) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})
	return logs, nil
}

func (r *MemoryActivityLogRepository) List(ctx context.Context, params *activitylog.FindParams) ([]*activitylog.ActivityLog, error) {
	logs, err := r.matching(ctx, params)
	if err != nil {
		return nil, err
	}
	if params != nil && params.Offset > 0 {
		logs = logs[min(params.Offset, len(logs)):]
	}
	if params != nil && params.Limit > 0 {
		logs = logs[:min(params.Limit, len(logs))]
	}
	out := make([]*activitylog.ActivityLog, len(logs))
	for i := range logs {
		out[i] = &logs[i]
	}
	return out, nil
}

func (r *MemoryActivityLogRepository) Count(ctx context.Context, params *activitylog.FindParams) (int64, error) {
	logs, err := r.matching(ctx, params)
	if err != nil {
		return 0, err
	}
	return int64(len(logs)), nil
}

func (r *MemoryActivityLogRepository) Create(ctx context.Context, log *activitylog.ActivityLog) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	if log.OrganizationID == uuid.Nil {
		log.OrganizationID = tenantID
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	log.ID = r.db.NextSeq()
	r.logs.Put(log.ID, *log)
	return nil
}
