package services

import (
	"context"
	"errors"

	"github.com/iota-uz/testbench/modules/logging/domain/entities/activitylog"
	"github.com/iota-uz/testbench/pkg/repo"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type ActivityService struct {
	repo activitylog.Repository
	tx   repo.Transactor
}

func NewActivityService(repo activitylog.Repository, tx repo.Transactor) *ActivityService {
	return &ActivityService{repo: repo, tx: tx}
}

// Record stores one entry in the organization carried by ctx.
func (s *ActivityService) Record(ctx context.Context, log *activitylog.ActivityLog) error {
	if log == nil {
		return errors.New("activity log payload is required")
	}
	return s.tx.InTenantTx(ctx, func(txCtx context.Context) error {
		return s.repo.Create(txCtx, log)
	})
}

// List returns one page of the caller's organization feed, newest first, and the
// total number of matching entries.
func (s *ActivityService) List(ctx context.Context, params *activitylog.FindParams) ([]*activitylog.ActivityLog, int64, error) {
	_, ctx, err := authorizeActivity(ctx)
	if err != nil {
		return nil, 0, err
	}
	if params == nil {
		params = &activitylog.FindParams{}
	}
	if params.Limit <= 0 {
		params.Limit = defaultPageSize
	}
	params.Limit = min(params.Limit, maxPageSize)
	params.Offset = max(params.Offset, 0)

	var (
		logs  []*activitylog.ActivityLog
		count int64
	)
	err = s.tx.InTenantTx(ctx, func(txCtx context.Context) error {
		var err error
		if logs, err = s.repo.List(txCtx, params); err != nil {
			return err
		}
		count, err = s.repo.Count(txCtx, params)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return logs, count, nil
}
