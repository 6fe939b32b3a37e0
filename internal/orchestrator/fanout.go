package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"redline/internal/entity"
	"redline/internal/jobs"
	"redline/internal/logging"
	"redline/internal/match"
	"redline/internal/services"
)

// Fanout expands a parent comparison job into one child job per matched
// pair. Duplicate pairs already queued, started, or completed are skipped;
// pairs over the per-parent capacity are dropped by ascending method
// fidelity. The returned stats are also persisted on the parent.
func (o *Orchestrator) Fanout(ctx context.Context, parentID int64) (*jobs.FanoutStats, error) {
	parent, err := o.jobs.GetByID(ctx, parentID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "orchestrator", "fanout", "load parent", err)
	}
	if parent == nil {
		return nil, services.Wrap(services.ErrNotFound, "orchestrator", "fanout", fmt.Sprintf("job %d not found", parentID), nil)
	}
	if !parent.IsParent() {
		return nil, services.Wrap(services.ErrValidation, "orchestrator", "fanout", fmt.Sprintf("job %d is not a parent", parentID), nil)
	}
	payload := jobs.DecodeParentPayload(parent.PayloadJSON)
	kind, ok := entity.ParseKind(payload.Kind)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "orchestrator", "fanout", fmt.Sprintf("parent %d carries unknown kind %q", parentID, payload.Kind), nil)
	}

	if _, err := o.jobs.MarkParentStarted(ctx, parentID); err != nil {
		return nil, services.Wrap(services.ErrTransient, "orchestrator", "fanout", "mark parent started", err)
	}

	left, err := o.catalog.ByRevision(ctx, payload.LeftRevision, kind)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "orchestrator", "fanout", "load left revision", err)
	}
	right, err := o.catalog.ByRevision(ctx, payload.RightRevision, kind)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "orchestrator", "fanout", "load right revision", err)
	}

	result, err := match.Entities(left, right, kind, o.cfg.Matching)
	if err != nil {
		return nil, err
	}
	for _, warning := range result.Warnings {
		o.logger.Warn(warning,
			logging.Int64(logging.FieldParentID, parentID),
			logging.String("kind", string(kind)),
		)
	}

	stats := &jobs.FanoutStats{}
	candidates := o.recheckPairs(result.Pairs, left, right, kind, stats, parentID)
	candidates = o.truncate(candidates, stats)

	if err := o.enqueuePairs(ctx, parent, payload, kind, candidates, stats); err != nil {
		statsJSON := jobs.EncodeJSON(stats)
		if recErr := o.jobs.RecordFanoutFailure(ctx, parentID, statsJSON, err.Error()); recErr != nil {
			o.logger.Error("record fanout failure", logging.Int64(logging.FieldParentID, parentID), logging.Error(recErr))
		}
		return stats, err
	}

	if err := o.jobs.MarkFanoutComplete(ctx, parentID, jobs.EncodeJSON(stats)); err != nil {
		return stats, services.Wrap(services.ErrTransient, "orchestrator", "fanout", "mark fanout complete", err)
	}
	o.logger.Info("fanout complete",
		logging.Int64(logging.FieldParentID, parentID),
		logging.Int("queued", stats.Queued),
		logging.Int("skipped_duplicate", stats.SkippedDuplicate),
		logging.Int("skipped_mismatch", stats.SkippedMismatch),
		logging.Int("truncated", stats.Truncated),
	)
	return stats, nil
}

// recheckPairs re-validates each pair against the loaded entities before
// any job is written. Pairs whose sides disagree on block type or sheet
// discipline are counted as mismatches and dropped.
func (o *Orchestrator) recheckPairs(pairs []match.Pair, left, right []*entity.Entity, kind entity.Kind, stats *jobs.FanoutStats, parentID int64) []match.Pair {
	byID := make(map[string]*entity.Entity, len(left)+len(right))
	for _, rec := range left {
		byID[rec.ID] = rec
	}
	for _, rec := range right {
		byID[rec.ID] = rec
	}

	kept := pairs[:0:0]
	for _, pair := range pairs {
		l, r := byID[pair.LeftID], byID[pair.RightID]
		if l == nil || r == nil || !compatibleSides(l, r, kind) {
			stats.Add(string(pair.Method), "skipped_mismatch")
			o.collector.RecordFanoutOutcome(string(pair.Method), "skipped_mismatch")
			o.logger.Warn("pair dropped by mismatch re-check",
				logging.Int64(logging.FieldParentID, parentID),
				logging.String("left_id", pair.LeftID),
				logging.String("right_id", pair.RightID),
				logging.String(logging.FieldMethod, string(pair.Method)),
			)
			continue
		}
		kept = append(kept, pair)
	}
	return kept
}

func compatibleSides(l, r *entity.Entity, kind entity.Kind) bool {
	switch kind {
	case entity.KindBlock:
		return l.BlockType == "" || r.BlockType == "" || l.BlockType == r.BlockType
	default:
		return l.Discipline == "" || r.Discipline == "" || l.Discipline == r.Discipline
	}
}

// truncate enforces the per-parent child cap, keeping higher-fidelity
// methods and earlier pairs first.
func (o *Orchestrator) truncate(pairs []match.Pair, stats *jobs.FanoutStats) []match.Pair {
	limit := o.cfg.Fanout.MaxChildrenPerJob
	if limit <= 0 || len(pairs) <= limit {
		return pairs
	}
	ranked := make([]match.Pair, len(pairs))
	copy(ranked, pairs)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Method.Rank() != ranked[j].Method.Rank() {
			return ranked[i].Method.Rank() < ranked[j].Method.Rank()
		}
		return ranked[i].LeftIndex < ranked[j].LeftIndex
	})
	for _, dropped := range ranked[limit:] {
		stats.Add(string(dropped.Method), "truncated")
		o.collector.RecordFanoutOutcome(string(dropped.Method), "truncated")
	}
	return ranked[:limit]
}

func (o *Orchestrator) enqueuePairs(ctx context.Context, parent *jobs.Job, payload jobs.ParentPayload, kind entity.Kind, pairs []match.Pair, stats *jobs.FanoutStats) error {
	targetType := jobs.TargetSheetPair
	if kind == entity.KindBlock {
		targetType = jobs.TargetBlockPair
	}
	batchSize := o.cfg.Fanout.BatchSize
	if batchSize <= 0 {
		batchSize = len(pairs)
	}
	pause := time.Duration(o.cfg.Fanout.BatchPauseMillis) * time.Millisecond

	for i, pair := range pairs {
		if i > 0 && batchSize > 0 && i%batchSize == 0 && pause > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pause):
			}
		}

		child := jobs.PairPayload{
			PairID:        uuid.NewString(),
			Kind:          string(kind),
			LeftID:        pair.LeftID,
			RightID:       pair.RightID,
			Method:        string(pair.Method),
			Score:         pair.Score,
			LeftRevision:  payload.LeftRevision,
			RightRevision: payload.RightRevision,
		}
		targetID := pair.LeftID + ":" + pair.RightID
		_, inserted, err := o.enqueueWithRetry(ctx, parent.ID, targetType, targetID, jobs.EncodeJSON(child))
		if err != nil {
			return services.Wrap(services.ErrTransient, "orchestrator", "fanout",
				fmt.Sprintf("enqueue pair %s after %d attempts", targetID, o.cfg.Fanout.QueueRetryAttempts), err)
		}
		reason := "queued"
		if !inserted {
			reason = "skipped_duplicate"
		}
		stats.Add(string(pair.Method), reason)
		o.collector.RecordFanoutOutcome(string(pair.Method), reason)
	}
	return nil
}

// enqueueWithRetry retries transient queue-store errors with fixed
// backoff up to the configured attempt budget.
func (o *Orchestrator) enqueueWithRetry(ctx context.Context, parentID int64, targetType jobs.TargetType, targetID, payloadJSON string) (*jobs.Job, bool, error) {
	attempts := o.cfg.Fanout.QueueRetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := time.Duration(o.cfg.Fanout.QueueRetryBackoff) * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		job, inserted, err := o.jobs.EnqueueChild(ctx, parentID, targetType, targetID, payloadJSON)
		if err == nil {
			return job, inserted, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		o.logger.Warn("enqueue attempt failed",
			logging.Int64(logging.FieldParentID, parentID),
			logging.String(logging.FieldTargetID, targetID),
			logging.Int("attempt", attempt),
			logging.Error(err),
		)
		if backoff > 0 {
			select {
			case <-ctx.Done():
				return nil, false, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return nil, false, lastErr
}
