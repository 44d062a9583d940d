package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/testbench/modules/catalog/domain/assignment"
	"github.com/iota-uz/testbench/modules/catalog/domain/hierarchy"
	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
	"github.com/iota-uz/testbench/modules/execution/domain/execution"
	"github.com/iota-uz/testbench/modules/logging/domain/entities/activitylog"
	"github.com/iota-uz/testbench/modules/logging/services"
	"github.com/iota-uz/testbench/pkg/application"
	"github.com/iota-uz/testbench/pkg/composables"
)

type activityRecorder interface {
	Record(ctx context.Context, log *activitylog.ActivityLog) error
}

// ActivityEventsHandler turns committed domain events into activity log entries.
// Failures are logged and never reach the publisher.
type ActivityEventsHandler struct {
	app      application.Application
	recorder activityRecorder
	logger   *logrus.Logger
}

func NewActivityEventsHandler(app application.Application, recorder activityRecorder) *ActivityEventsHandler {
	return &ActivityEventsHandler{app: app, recorder: recorder, logger: app.Logger()}
}

func RegisterActivityEventHandlers(app application.Application) {
	h := NewActivityEventsHandler(app, app.Service(services.ActivityService{}).(*services.ActivityService))
	h.Subscribe()
}

func (h *ActivityEventsHandler) Subscribe() {
	bus := h.app.EventPublisher()
	bus.Subscribe(h.onTestCaseCreated)
	bus.Subscribe(h.onTestCaseDeleted)
	bus.Subscribe(h.onModuleAssignment)
	bus.Subscribe(h.onProjectAssignment)
	bus.Subscribe(h.onExecutionCompleted)
	bus.Subscribe(h.onUserCreated)
}

func (h *ActivityEventsHandler) record(orgID uuid.UUID, actorID uuid.UUID, action string, subjectID uuid.UUID, at time.Time, details any) {
	if h.recorder == nil {
		return
	}
	ctx := context.Background()
	if pool := h.app.DB(); pool != nil {
		ctx = composables.WithPool(ctx, pool)
	}
	ctx = composables.WithTenantID(ctx, orgID)

	entry := &activitylog.ActivityLog{
		OrganizationID: orgID,
		Action:         action,
		SubjectID:      subjectID,
		CreatedAt:      at,
	}
	if actorID != uuid.Nil {
		entry.ActorID = &actorID
	}
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			h.logger.WithError(err).WithField("action", action).Warn("failed to encode activity details")
			return
		}
		entry.Details = raw
	}

	if err := h.recorder.Record(ctx, entry); err != nil {
		h.logger.WithError(err).
			WithField("action", action).
			WithField("subject_id", subjectID).
			Warn("failed to persist activity log")
	}
}

func (h *ActivityEventsHandler) onTestCaseCreated(e *hierarchy.TestCaseCreatedEvent) {
	tc := e.Result
	h.record(tc.OrganizationID, e.ActorID, activitylog.ActionTestCaseCreated, tc.ID, e.OccurredAt, map[string]any{
		"title":     tc.Title,
		"module_id": tc.ModuleID,
		"steps":     len(tc.Steps),
	})
}

func (h *ActivityEventsHandler) onTestCaseDeleted(e *hierarchy.TestCaseDeletedEvent) {
	tc := e.Data
	h.record(tc.OrganizationID, e.ActorID, activitylog.ActionTestCaseDeleted, tc.ID, e.OccurredAt, map[string]any{
		"title":     tc.Title,
		"module_id": tc.ModuleID,
	})
}

func (h *ActivityEventsHandler) onModuleAssignment(e *assignment.ModuleAssignmentEvent) {
	action := activitylog.ActionModuleAssigned
	if !e.Assigned {
		action = activitylog.ActionModuleUnassigned
	}
	h.record(e.OrganizationID, e.ActorID, action, e.ModuleID, e.OccurredAt, map[string]any{"user_id": e.UserID})
}

func (h *ActivityEventsHandler) onProjectAssignment(e *assignment.ProjectAssignmentEvent) {
	action := activitylog.ActionProjectAssigned
	if !e.Assigned {
		action = activitylog.ActionProjectUnassigned
	}
	h.record(e.OrganizationID, e.ActorID, action, e.ProjectID, e.OccurredAt, map[string]any{"user_id": e.UserID})
}

func (h *ActivityEventsHandler) onExecutionCompleted(e *execution.CompletedEvent) {
	ex := e.Result
	h.record(ex.OrganizationID, e.ActorID, activitylog.ActionExecutionComplete, ex.ID, e.OccurredAt, map[string]any{
		"test_case_id": ex.TestCaseID,
		"result":       ex.Overall,
		"previous":     e.Previous,
	})
}

func (h *ActivityEventsHandler) onUserCreated(e *user.CreatedEvent) {
	u := e.Result
	h.record(u.OrganizationID(), uuid.Nil, activitylog.ActionUserCreated, u.ID(), e.OccurredAt, map[string]any{
		"email": u.Email(),
		"roles": u.Roles(),
	})
}
