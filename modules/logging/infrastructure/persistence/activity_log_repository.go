package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/testbench/modules/logging/domain/entities/activitylog"
	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/repo"
)

type ActivityLogRepository struct{}

func NewActivityLogRepository() activitylog.Repository {
	return &ActivityLogRepository{}
}

func (r *ActivityLogRepository) List(ctx context.Context, params *activitylog.FindParams) ([]*activitylog.ActivityLog, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	where, args := buildActivityLogFilters(params, tenantID)
	query := `
		SELECT id, organization_id, actor_id, action, subject_id, details, created_at
		FROM activity_logs
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_at DESC, id DESC
	`
	if params != nil {
		query += " " + repo.FormatLimitOffset(params.Limit, params.Offset)
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query activity logs")
	}
	defer rows.Close()

	var results []*activitylog.ActivityLog
	for rows.Next() {
		var (
			row     activitylog.ActivityLog
			actorID uuid.NullUUID
			details []byte
		)
		if err := rows.Scan(
			&row.ID,
			&row.OrganizationID,
			&actorID,
			&row.Action,
			&row.SubjectID,
			&details,
			&row.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan activity log")
		}
		if actorID.Valid {
			row.ActorID = &actorID.UUID
		}
		if len(details) > 0 {
			row.Details = details
		}
		results = append(results, &row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *ActivityLogRepository) Count(ctx context.Context, params *activitylog.FindParams) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return 0, err
	}
	where, args := buildActivityLogFilters(params, tenantID)

	var count int64
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM activity_logs
		WHERE `+strings.Join(where, " AND "),
		args...,
	).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count activity logs")
	}
	return count, nil
}

func (r *ActivityLogRepository) Create(ctx context.Context, log *activitylog.ActivityLog) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
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
	var actorID uuid.NullUUID
	if log.ActorID != nil {
		actorID = uuid.NullUUID{UUID: *log.ActorID, Valid: true}
	}
	var details []byte
	if len(log.Details) > 0 {
		details = log.Details
	}

	if err := tx.QueryRow(
		ctx,
		`INSERT INTO activity_logs (organization_id, actor_id, action, subject_id, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		log.OrganizationID,
		actorID,
		log.Action,
		log.SubjectID,
		details,
		log.CreatedAt,
	).Scan(&log.ID, &log.CreatedAt); err != nil {
		return errors.Wrap(err, "failed to insert activity log")
	}
	return nil
}

func buildActivityLogFilters(params *activitylog.FindParams, tenantID uuid.UUID) ([]string, []any) {
	where := []string{"organization_id = $1"}
	args := []any{tenantID}
	argPos := 2
	if params == nil {
		return where, args
	}

	if params.ActorID != nil {
		where = append(where, fmt.Sprintf("actor_id = $%d", argPos))
		args = append(args, *params.ActorID)
		argPos++
	}
	if params.SubjectID != nil {
		where = append(where, fmt.Sprintf("subject_id = $%d", argPos))
		args = append(args, *params.SubjectID)
		argPos++
	}
	if action := strings.TrimSpace(params.Action); action != "" {
		where = append(where, fmt.Sprintf("action = $%d", argPos))
		args = append(args, action)
		argPos++
	}
	if params.From != nil && !params.From.IsZero() {
		where = append(where, fmt.Sprintf("created_at >= $%d", argPos))
		args = append(args, *params.From)
		argPos++
	}
	if params.To != nil && !params.To.IsZero() {
		where = append(where, fmt.Sprintf("created_at <= $%d", argPos))
		args = append(args, *params.To)
	}
	return where, args
}
