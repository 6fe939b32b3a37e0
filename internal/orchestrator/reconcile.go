package orchestrator

import (
	"context"
	"fmt"

	"redline/internal/jobs"
	"redline/internal/logging"
	"redline/internal/services"
)

// Reconcile derives a parent's terminal state from its children. It is
// the only path allowed to make a parent terminal and is safe to run
// concurrently or repeatedly: once the parent is terminal every further
// call is a no-op.
func (o *Orchestrator) Reconcile(ctx context.Context, parentID int64) (*jobs.Job, error) {
	parent, err := o.jobs.GetByID(ctx, parentID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "orchestrator", "reconcile", "load parent", err)
	}
	if parent == nil {
		return nil, services.Wrap(services.ErrNotFound, "orchestrator", "reconcile", fmt.Sprintf("job %d not found", parentID), nil)
	}
	if !parent.IsParent() {
		return nil, services.Wrap(services.ErrValidation, "orchestrator", "reconcile", fmt.Sprintf("job %d is not a parent", parentID), nil)
	}
	if parent.Status.IsTerminal() {
		return parent, nil
	}

	children, err := o.jobs.Children(ctx, parentID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "orchestrator", "reconcile", "load children", err)
	}
	target, ready := deriveParentStatus(children)
	if !ready {
		return parent, nil
	}

	changed, err := o.jobs.SetParentTerminal(ctx, parentID, target)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "orchestrator", "reconcile", "set parent terminal", err)
	}
	if changed {
		o.collector.RecordReconcile(target)
		o.logger.Info("parent reconciled",
			logging.Int64(logging.FieldParentID, parentID),
			logging.String("status", string(target)),
			logging.Int("children", len(children)),
		)
	}
	return o.jobs.GetByID(ctx, parentID)
}

// reconcileAfterChild reconciles a child's parent once the child reaches
// a terminal state. Parents still fanning out are skipped so a fast first
// batch cannot terminalize the parent while siblings are still being
// enqueued; the sweep picks such parents up once the milestone is set.
func (o *Orchestrator) reconcileAfterChild(ctx context.Context, parentID int64) error {
	parent, err := o.jobs.GetByID(ctx, parentID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "orchestrator", "reconcile", "load parent", err)
	}
	if parent == nil || !parent.FanoutComplete() {
		return nil
	}
	_, err = o.Reconcile(ctx, parentID)
	return err
}

// deriveParentStatus folds child states into the parent's terminal
// status. An empty child set never makes the parent terminal. Canceled
// children neither block completion nor count as failures.
func deriveParentStatus(children []*jobs.Job) (jobs.Status, bool) {
	if len(children) == 0 {
		return "", false
	}
	anyFailed := false
	for _, child := range children {
		if !child.Status.IsTerminal() {
			return "", false
		}
		if child.Status == jobs.StatusFailed {
			anyFailed = true
		}
	}
	if anyFailed {
		return jobs.StatusFailed, true
	}
	return jobs.StatusCompleted, true
}
