package orchestrator

import (
	"context"
	"fmt"

	"redline/internal/logging"
	"redline/internal/services"
)

// Cancel marks a parent's queued children canceled. Children already
// started run to completion; once every child is terminal the normal
// reconciliation path settles the parent.
func (o *Orchestrator) Cancel(ctx context.Context, parentID int64) (int64, error) {
	parent, err := o.jobs.GetByID(ctx, parentID)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "orchestrator", "cancel", "load parent", err)
	}
	if parent == nil {
		return 0, services.Wrap(services.ErrNotFound, "orchestrator", "cancel", fmt.Sprintf("job %d not found", parentID), nil)
	}
	if !parent.IsParent() {
		return 0, services.Wrap(services.ErrValidation, "orchestrator", "cancel", fmt.Sprintf("job %d is not a parent", parentID), nil)
	}

	canceled, err := o.jobs.CancelQueuedChildren(ctx, parentID)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "orchestrator", "cancel", "cancel queued children", err)
	}
	o.logger.Info("cancellation requested",
		logging.Int64(logging.FieldParentID, parentID),
		logging.Int64("canceled_children", canceled),
	)

	// In-flight children may still be running; reconcile settles the
	// parent now if nothing was left non-terminal.
	if _, err := o.Reconcile(ctx, parentID); err != nil {
		return canceled, err
	}
	return canceled, nil
}
