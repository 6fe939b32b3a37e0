// Package orchestrator expands revision-comparison jobs into per-pair
// child work, runs the worker pool, and derives parent completion from
// child state.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"redline/internal/align"
	"redline/internal/catalog"
	"redline/internal/config"
	"redline/internal/entity"
	"redline/internal/jobs"
	"redline/internal/logging"
	"redline/internal/metrics"
	"redline/internal/raster"
	"redline/internal/services"
)

// Orchestrator wires the job store, entity catalog, and alignment engine
// into the fan-out / worker / reconcile lifecycle.
type Orchestrator struct {
	cfg        *config.Config
	jobs       *jobs.Store
	catalog    *catalog.Store
	rasterizer raster.Rasterizer
	estimator  *align.Estimator
	collector  *metrics.Collector
	logger     *slog.Logger
}

// New assembles an orchestrator. The collector may be nil when metrics
// exposition is not wanted (one-shot CLI invocations).
func New(cfg *config.Config, jobStore *jobs.Store, catalogStore *catalog.Store, rasterizer raster.Rasterizer, collector *metrics.Collector, logger *slog.Logger) *Orchestrator {
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &Orchestrator{
		cfg:        cfg,
		jobs:       jobStore,
		catalog:    catalogStore,
		rasterizer: rasterizer,
		estimator:  align.NewEstimator(cfg.Alignment, logger),
		collector:  collector,
		logger:     logging.NewComponentLogger(logger, "orchestrator"),
	}
}

// Jobs exposes the underlying job store for inspection commands.
func (o *Orchestrator) Jobs() *jobs.Store { return o.jobs }

// Collector exposes the metrics collector for HTTP exposition.
func (o *Orchestrator) Collector() *metrics.Collector { return o.collector }

// StartCompare creates the parent job for a two-revision comparison.
func (o *Orchestrator) StartCompare(ctx context.Context, kind entity.Kind, leftRevision, rightRevision string) (*jobs.Job, error) {
	if _, ok := entity.ParseKind(string(kind)); !ok {
		return nil, services.Wrap(services.ErrValidation, "orchestrator", "start compare", fmt.Sprintf("unknown entity kind %q", kind), nil)
	}
	if leftRevision == "" || rightRevision == "" {
		return nil, services.Wrap(services.ErrValidation, "orchestrator", "start compare", "both revision ids are required", nil)
	}
	payload := jobs.ParentPayload{Kind: string(kind), LeftRevision: leftRevision, RightRevision: rightRevision}
	targetID := fmt.Sprintf("%s:%s:%s", kind, leftRevision, rightRevision)
	parent, err := o.jobs.NewParent(ctx, jobs.TargetRevisionCompare, targetID, jobs.EncodeJSON(payload))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "orchestrator", "start compare", "create parent job", err)
	}
	o.logger.Info("comparison created",
		logging.Int64(logging.FieldJobID, parent.ID),
		logging.String("kind", string(kind)),
		logging.String("left_revision", leftRevision),
		logging.String("right_revision", rightRevision),
	)
	return parent, nil
}

// PreviewManualAlignment fits a transform from three operator-picked
// points per side without persisting anything.
func (o *Orchestrator) PreviewManualAlignment(pointsA, pointsB []align.Point) (*align.ManualResult, error) {
	return align.PreviewManual(pointsA, pointsB, o.cfg.Alignment.ReprojectionThreshold)
}

// CommitManualAlignment previews the manual fit and persists it as the
// child job's alignment outcome. An already-completed child has its
// result replaced; a queued or started child is completed outright.
func (o *Orchestrator) CommitManualAlignment(ctx context.Context, jobID int64, pointsA, pointsB []align.Point) (*jobs.AlignmentOutcome, error) {
	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "orchestrator", "commit manual alignment", "load job", err)
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "orchestrator", "commit manual alignment", fmt.Sprintf("job %d not found", jobID), nil)
	}
	if job.IsParent() {
		return nil, services.Wrap(services.ErrValidation, "orchestrator", "commit manual alignment", "manual alignment targets a pair job, not a parent", nil)
	}

	preview, err := align.PreviewManual(pointsA, pointsB, o.cfg.Alignment.ReprojectionThreshold)
	if err != nil {
		return nil, err
	}

	pair := jobs.DecodePairPayload(job.PayloadJSON)
	outcome := jobs.AlignmentOutcome{
		PairID:      pair.PairID,
		Scale:       preview.Transform.Scale,
		RotationRad: preview.Transform.Rotation,
		TranslateX:  preview.Transform.TranslateX,
		TranslateY:  preview.Transform.TranslateY,
		MatchCount:  align.ManualPointCount,
		InlierCount: align.ManualPointCount,
		Score:       1,
		Manual:      true,
		Warnings:    preview.Warnings,
	}
	resultJSON := jobs.EncodeJSON(outcome)

	completed, err := o.jobs.CompleteManually(ctx, jobID, resultJSON)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "orchestrator", "commit manual alignment", "complete job", err)
	}
	if !completed {
		if err := o.jobs.AttachResult(ctx, jobID, resultJSON); err != nil {
			return nil, services.Wrap(services.ErrTransient, "orchestrator", "commit manual alignment", "attach result", err)
		}
	} else {
		o.collector.RecordCompletion()
	}
	if job.ParentID != nil {
		if _, err := o.Reconcile(ctx, *job.ParentID); err != nil {
			o.logger.Warn("reconcile after manual alignment failed",
				logging.Int64(logging.FieldParentID, *job.ParentID), logging.Error(err))
		}
	}
	o.logger.Info("manual alignment committed",
		logging.Int64(logging.FieldJobID, jobID),
		logging.String("pair_id", pair.PairID),
	)
	return &outcome, nil
}

func newWorkerID() string {
	return "worker-" + uuid.NewString()
}
