package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/testbench/modules/catalog/domain/assignment"
	"github.com/iota-uz/testbench/modules/catalog/domain/hierarchy"
	catalogservices "github.com/iota-uz/testbench/modules/catalog/services"
	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
	"github.com/iota-uz/testbench/modules/core/permissions"
	"github.com/iota-uz/testbench/modules/execution/domain/execution"
	"github.com/iota-uz/testbench/pkg/composables"
	"github.com/iota-uz/testbench/pkg/serrors"
)

var _ catalogservices.ExecutionReconciler = (*Reconciler)(nil)

// Reconciler keeps exactly one execution per (user, test case) pair implied by
// module assignments. It never opens a unit of work of its own: every entry point
// runs inside the caller's, so a failure here rolls the triggering write back.
type Reconciler struct {
	executions  execution.Repository
	hierarchy   hierarchy.Repository
	assignments assignment.Repository
	users       user.Repository
	caps        *permissions.Table
}

func NewReconciler(
	executions execution.Repository,
	h hierarchy.Repository,
	assignments assignment.Repository,
	users user.Repository,
	caps *permissions.Table,
) *Reconciler {
	return &Reconciler{
		executions:  executions,
		hierarchy:   h,
		assignments: assignments,
		users:       users,
		caps:        caps,
	}
}

// OnTestCaseCreated provisions the case for every executing assignee of its module.
func (r *Reconciler) OnTestCaseCreated(ctx context.Context, tc hierarchy.TestCase) error {
	assignees, err := r.assignments.ListModuleAssignees(ctx, tc.ModuleID)
	if err != nil {
		return err
	}
	for _, id := range assignees {
		u, err := r.users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !r.caps.Can(u, permissions.Execute) {
			continue
		}
		if err := r.ensure(ctx, u, tc); err != nil {
			return err
		}
	}
	return nil
}

// OnModuleAssigned provisions every case of m for u, restoring retired executions
// with their step results.
func (r *Reconciler) OnModuleAssigned(ctx context.Context, u user.User, m hierarchy.Module) error {
	if !r.caps.Can(u, permissions.Execute) {
		return nil
	}
	cases, err := r.hierarchy.ListTestCasesByModule(ctx, m.ID)
	if err != nil {
		return err
	}
	for _, tc := range cases {
		if err := r.ensure(ctx, u, tc); err != nil {
			return err
		}
	}
	return nil
}

// OnModuleUnassigned retires every execution of u under m.
func (r *Reconciler) OnModuleUnassigned(ctx context.Context, u user.User, m hierarchy.Module) error {
	existing, err := r.executions.ListByUserAndModule(ctx, u.ID(), m.ID)
	if err != nil {
		return err
	}
	now := time.Now()
	retired := 0
	for _, e := range existing {
		if e.Retired {
			continue
		}
		if _, err := r.executions.Update(ctx, e.Retire(now)); err != nil {
			return err
		}
		retired++
	}
	recordReconciled("retired", retired)
	composables.UseLogger(ctx).WithFields(logrus.Fields{
		"user_id":   u.ID(),
		"module_id": m.ID,
		"retired":   retired,
	}).Debug("executions retired")
	return nil
}

func (r *Reconciler) OnTestCaseDeleted(ctx context.Context, tc hierarchy.TestCase) error {
	n, err := r.executions.DeleteByTestCase(ctx, tc.ID)
	if err != nil {
		return err
	}
	recordReconciled("deleted", n)
	return nil
}

// ensure makes the execution of (u, tc) exist, live and aligned with the current steps.
func (r *Reconciler) ensure(ctx context.Context, u user.User, tc hierarchy.TestCase) error {
	e, err := r.executions.GetByUserAndCase(ctx, u.ID(), tc.ID)
	switch {
	case err == nil:
		return r.refresh(ctx, e, tc)
	case !errors.Is(err, execution.ErrExecutionNotFound):
		return err
	}

	_, err = r.executions.Create(ctx, execution.New(u.ID(), tc))
	if err == nil {
		recordReconciled("provisioned", 1)
		return nil
	}
	if !errors.Is(err, execution.ErrExecutionExists) {
		return err
	}

	// Lost to a concurrent insert of the same pair: the stored row wins.
	reconcileRaces.Inc()
	race := serrors.Wrap(serrors.KindReconciliationRace, "RECONCILIATION_RACE", "execution provisioned concurrently", err)
	composables.UseLogger(ctx).WithError(race).WithFields(logrus.Fields{
		"user_id":      u.ID(),
		"test_case_id": tc.ID,
	}).Debug("reconciliation race absorbed")

	e, err = r.executions.GetByUserAndCase(ctx, u.ID(), tc.ID)
	if err != nil {
		return err
	}
	return r.refresh(ctx, e, tc)
}

func (r *Reconciler) refresh(ctx context.Context, e execution.Execution, tc hierarchy.TestCase) error {
	switch {
	case e.Retired:
		if _, err := r.executions.Update(ctx, e.Restore(tc, time.Now())); err != nil {
			return err
		}
		recordReconciled("restored", 1)
	case !e.Aligned(tc):
		e = e.AlignSteps(tc)
		e.UpdatedAt = time.Now()
		if _, err := r.executions.Update(ctx, e); err != nil {
			return err
		}
		recordReconciled("realigned", 1)
	}
	return nil
}
