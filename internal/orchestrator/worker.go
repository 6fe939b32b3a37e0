package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"redline/internal/jobs"
	"redline/internal/logging"
)

// Pool runs concurrent workers that claim pair jobs, compute alignments,
// and reconcile parents on terminal transitions.
type Pool struct {
	orc    *Orchestrator
	count  int
	poll   time.Duration
	lease  time.Duration
	beat   time.Duration
	logger *slog.Logger
}

// NewPool sizes a worker pool from the orchestrator's configuration.
func NewPool(orc *Orchestrator) *Pool {
	workers := orc.cfg.Workers
	return &Pool{
		orc:    orc,
		count:  workers.Count,
		poll:   time.Duration(workers.PollIntervalSeconds) * time.Second,
		lease:  time.Duration(workers.LeaseTimeoutSeconds) * time.Second,
		beat:   time.Duration(workers.HeartbeatSeconds) * time.Second,
		logger: logging.NewComponentLogger(orc.logger, "workers"),
	}
}

// Run blocks until the context is canceled, keeping count workers
// claiming and processing jobs.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.count; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.runWorker(ctx, newWorkerID())
		}()
	}
	wg.Wait()
}

func (p *Pool) runWorker(ctx context.Context, workerID string) {
	logger := p.logger.With(logging.String(logging.FieldWorkerID, workerID))
	logger.Debug("worker started")
	for {
		job, err := p.orc.jobs.ClaimNext(ctx, workerID, p.lease)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("claim failed", logging.Error(err))
		}
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.poll):
			}
			continue
		}
		p.orc.collector.RecordClaim()
		p.process(ctx, workerID, job, logger)
		if ctx.Err() != nil {
			return
		}
	}
}

// process runs one claimed job to a terminal state and reconciles its
// parent. A heartbeat goroutine extends the lease while alignment runs.
func (p *Pool) process(ctx context.Context, workerID string, job *jobs.Job, logger *slog.Logger) {
	logger = logger.With(logging.Int64(logging.FieldJobID, job.ID))
	stopBeat := p.startHeartbeat(ctx, job.ID, workerID)
	defer stopBeat()

	outcome, err := p.orc.processPair(ctx, job)
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown mid-job: leave the claim for lease expiry.
			return
		}
		if _, failErr := p.orc.jobs.Fail(ctx, job.ID, err.Error()); failErr != nil {
			logger.Error("mark job failed", logging.Error(failErr))
		} else {
			p.orc.collector.RecordFailure()
		}
		logger.Warn("pair job failed", logging.Error(err))
	} else {
		completed, completeErr := p.orc.jobs.Complete(ctx, job.ID, jobs.EncodeJSON(outcome))
		switch {
		case completeErr != nil:
			logger.Error("mark job completed", logging.Error(completeErr))
		case !completed:
			// Redelivery of an already-terminal job is a no-op.
			logger.Debug("job already terminal; dropping result")
		default:
			p.orc.collector.RecordCompletion()
			if outcome.LowConfidence {
				p.orc.collector.RecordLowConfidence()
			}
			logger.Info("pair aligned",
				logging.Int("matches", outcome.MatchCount),
				logging.Int("inliers", outcome.InlierCount),
				logging.Float64("score", outcome.Score),
				logging.Bool("low_confidence", outcome.LowConfidence),
			)
		}
	}

	if job.ParentID != nil {
		if err := p.orc.reconcileAfterChild(ctx, *job.ParentID); err != nil && ctx.Err() == nil {
			logger.Error("reconcile parent", logging.Int64(logging.FieldParentID, *job.ParentID), logging.Error(err))
		}
	}
}

func (p *Pool) startHeartbeat(ctx context.Context, jobID int64, workerID string) func() {
	if p.beat <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(p.beat)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				extended, err := p.orc.jobs.ExtendLease(ctx, jobID, workerID, p.lease)
				if err != nil && ctx.Err() == nil {
					p.logger.Warn("lease heartbeat failed",
						logging.Int64(logging.FieldJobID, jobID), logging.Error(err))
				} else if err == nil && !extended {
					// Lost the lease; the job belongs to someone else now.
					return
				}
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}

// processPair computes the alignment outcome for one claimed pair job.
func (o *Orchestrator) processPair(ctx context.Context, job *jobs.Job) (*jobs.AlignmentOutcome, error) {
	pair := jobs.DecodePairPayload(job.PayloadJSON)

	leftImg, err := o.rasterizer.Load(ctx, pair.LeftID)
	if err != nil {
		return nil, err
	}
	rightImg, err := o.rasterizer.Load(ctx, pair.RightID)
	if err != nil {
		return nil, err
	}

	result, retried, err := o.estimator.EstimateWithRetry(ctx, leftImg, rightImg)
	if err != nil {
		return nil, err
	}
	return &jobs.AlignmentOutcome{
		PairID:        pair.PairID,
		Scale:         result.Transform.Scale,
		RotationRad:   result.Transform.Rotation,
		TranslateX:    result.Transform.TranslateX,
		TranslateY:    result.Transform.TranslateY,
		MatchCount:    result.MatchCount,
		InlierCount:   result.InlierCount,
		Score:         result.Score,
		LowConfidence: result.LowConfidence,
		Retried:       retried,
		Warnings:      result.Warnings,
	}, nil
}
