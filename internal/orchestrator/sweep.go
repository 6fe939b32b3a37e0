package orchestrator

import (
	"context"
	"time"

	"redline/internal/logging"
)

// maxSilentRetries bounds how often an expired-lease job silently returns
// to the queue before it is failed with its last error retained.
const maxSilentRetries = 1

// Sweep reclaims expired worker leases, reconciles parents whose children
// may have all settled, and refreshes the queue-depth gauges.
func (o *Orchestrator) Sweep(ctx context.Context) error {
	requeued, failed, err := o.jobs.ReclaimExpiredLeases(ctx, maxSilentRetries)
	if err != nil {
		return err
	}
	o.collector.RecordLeaseSweep(int(requeued), int(failed))
	if requeued > 0 || failed > 0 {
		o.logger.Warn("expired leases reclaimed",
			logging.Int64("requeued", requeued),
			logging.Int64("failed", failed),
		)
	}

	parents, err := o.jobs.Parents(ctx)
	if err != nil {
		return err
	}
	for _, parent := range parents {
		if parent.Status.IsTerminal() || !parent.FanoutComplete() {
			continue
		}
		if _, err := o.Reconcile(ctx, parent.ID); err != nil {
			o.logger.Error("sweep reconcile",
				logging.Int64(logging.FieldParentID, parent.ID), logging.Error(err))
		}
	}

	health, err := o.jobs.Health(ctx)
	if err != nil {
		return err
	}
	stats, err := o.jobs.Stats(ctx)
	if err != nil {
		return err
	}
	o.collector.UpdateQueueDepth(stats, health.StaleLeases)
	return nil
}

// RunSweeper blocks running Sweep on the configured cadence until the
// context is canceled.
func (o *Orchestrator) RunSweeper(ctx context.Context) {
	interval := time.Duration(o.cfg.Workers.SweepIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.Sweep(ctx); err != nil && ctx.Err() == nil {
				o.logger.Error("sweep failed", logging.Error(err))
			}
		}
	}
}
