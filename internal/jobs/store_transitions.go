package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ClaimNext atomically claims the oldest queued child job for a worker,
// moving it to started with a lease. A concurrent claimant losing the
// conditional update simply observes no row and tries the next candidate.
// Returns nil when no queued work exists.
func (s *Store) ClaimNext(ctx context.Context, owner string, lease time.Duration) (*Job, error) {
	ctx = ensureContext(ctx)
	for {
		row := s.db.QueryRowContext(ctx,
			`SELECT id FROM jobs WHERE status = ? AND parent_id IS NOT NULL ORDER BY created_at, id LIMIT 1`,
			StatusQueued,
		)
		var id int64
		if err := row.Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, fmt.Errorf("select claim candidate: %w", err)
		}

		claimed, err := s.claim(ctx, id, owner, lease)
		if err != nil {
			return nil, err
		}
		if claimed {
			return s.GetByID(ctx, id)
		}
		// Lost the race; another worker advanced this job. Try again.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}
}

func (s *Store) claim(ctx context.Context, id int64, owner string, lease time.Duration) (bool, error) {
	now := time.Now().UTC()
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, lease_owner = ?, lease_expires_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusStarted,
		owner,
		now.Add(lease).Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
		StatusQueued,
	)
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ExtendLease refreshes a worker's lease on a started job. Returns false when
// the job is no longer held by the owner, signalling the worker to stop.
func (s *Store) ExtendLease(ctx context.Context, id int64, owner string, lease time.Duration) (bool, error) {
	now := time.Now().UTC()
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET lease_expires_at = ?, updated_at = ?
         WHERE id = ? AND status = ? AND lease_owner = ?`,
		now.Add(lease).Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
		StatusStarted,
		owner,
	)
	if err != nil {
		return false, fmt.Errorf("extend lease: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Complete moves a started job to completed and stores its result. Returns
// false when the job was not in the started state — redelivery of an
// already-terminal job is a no-op.
func (s *Store) Complete(ctx context.Context, id int64, resultJSON string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, result_json = ?, lease_owner = NULL, lease_expires_at = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusCompleted,
		nullableString(resultJSON),
		now,
		id,
		StatusStarted,
	)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// CompleteManually moves a queued or started job straight to completed
// with an operator-supplied result. Unlike Complete it does not require a
// worker claim: a queued child is taken off the queue before any worker
// can pick it up and overwrite the operator's result. Returns false when
// the job is already terminal.
func (s *Store) CompleteManually(ctx context.Context, id int64, resultJSON string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, result_json = ?, lease_owner = NULL, lease_expires_at = NULL, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusCompleted,
		nullableString(resultJSON),
		now,
		id,
		StatusQueued,
		StatusStarted,
	)
	if err != nil {
		return false, fmt.Errorf("complete job manually: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Fail moves a non-terminal job to failed, retaining the error message.
func (s *Store) Fail(ctx context.Context, id int64, message string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, error_message = ?, lease_owner = NULL, lease_expires_at = NULL, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusFailed,
		nullableString(message),
		now,
		id,
		StatusQueued,
		StatusStarted,
	)
	if err != nil {
		return false, fmt.Errorf("fail job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// AttachResult stores result metadata on a job without changing its status.
func (s *Store) AttachResult(ctx context.Context, id int64, resultJSON string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(ctx,
		`UPDATE jobs SET result_json = ?, updated_at = ? WHERE id = ?`,
		nullableString(resultJSON),
		now,
		id,
	); err != nil {
		return fmt.Errorf("attach result: %w", err)
	}
	return nil
}

// CancelQueuedChildren marks all still-queued children of a parent canceled.
// Started children run to completion and are reconciled normally.
func (s *Store) CancelQueuedChildren(ctx context.Context, parentID int64) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE parent_id = ? AND status = ?`,
		StatusCanceled,
		now,
		parentID,
		StatusQueued,
	)
	if err != nil {
		return 0, fmt.Errorf("cancel queued children: %w", err)
	}
	return res.RowsAffected()
}

// ReclaimExpiredLeases handles started jobs whose workers went silent. The
// first expiry re-queues the job for another claim; a second expiry marks it
// failed with the last error retained.
func (s *Store) ReclaimExpiredLeases(ctx context.Context, maxSilentRetries int) (requeued, failed int64, err error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(ctx,
		`UPDATE jobs
         SET status = ?, attempts = attempts + 1, lease_owner = NULL, lease_expires_at = NULL, updated_at = ?
         WHERE status = ? AND lease_expires_at IS NOT NULL AND lease_expires_at < ? AND attempts < ?`,
		StatusQueued,
		now,
		StatusStarted,
		now,
		maxSilentRetries,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("requeue expired leases: %w", err)
	}
	if requeued, err = res.RowsAffected(); err != nil {
		return 0, 0, fmt.Errorf("rows affected: %w", err)
	}

	res, err = s.execWithRetry(ctx,
		`UPDATE jobs
         SET status = ?, error_message = COALESCE(error_message, 'worker lease expired'),
             lease_owner = NULL, lease_expires_at = NULL, updated_at = ?
         WHERE status = ? AND lease_expires_at IS NOT NULL AND lease_expires_at < ? AND attempts >= ?`,
		StatusFailed,
		now,
		StatusStarted,
		now,
		maxSilentRetries,
	)
	if err != nil {
		return requeued, 0, fmt.Errorf("fail expired leases: %w", err)
	}
	if failed, err = res.RowsAffected(); err != nil {
		return requeued, 0, fmt.Errorf("rows affected: %w", err)
	}
	return requeued, failed, nil
}

// MarkParentStarted moves a queued parent to started when fan-out begins.
func (s *Store) MarkParentStarted(ctx context.Context, parentID int64) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND parent_id IS NULL AND status = ?`,
		StatusStarted,
		now,
		parentID,
		StatusQueued,
	)
	if err != nil {
		return false, fmt.Errorf("mark parent started: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// MarkFanoutComplete records the fan-out milestone and aggregated stats on
// the parent. The milestone is set once; re-running fan-out refreshes the
// stats but keeps the original completion time.
func (s *Store) MarkFanoutComplete(ctx context.Context, parentID int64, statsJSON string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(ctx,
		`UPDATE jobs
         SET fanout_stats_json = ?, fanout_done_at = COALESCE(fanout_done_at, ?), updated_at = ?
         WHERE id = ? AND parent_id IS NULL`,
		nullableString(statsJSON),
		now,
		now,
		parentID,
	); err != nil {
		return fmt.Errorf("mark fanout complete: %w", err)
	}
	return nil
}

// RecordFanoutFailure preserves partial stats and the terminal enqueue error
// on the parent. The parent is moved to failed only when it has no children;
// otherwise its terminal state stays derived from reconciliation and the
// error message is retained for operators.
func (s *Store) RecordFanoutFailure(ctx context.Context, parentID int64, statsJSON, message string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(ctx,
		`UPDATE jobs SET fanout_stats_json = ?, error_message = ?, updated_at = ? WHERE id = ? AND parent_id IS NULL`,
		nullableString(statsJSON),
		nullableString(message),
		now,
		parentID,
	); err != nil {
		return fmt.Errorf("record fanout failure: %w", err)
	}

	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, updated_at = ?
         WHERE id = ? AND parent_id IS NULL AND status IN (?, ?)
           AND NOT EXISTS (SELECT 1 FROM jobs c WHERE c.parent_id = jobs.id)`,
		StatusFailed,
		now,
		parentID,
		StatusQueued,
		StatusStarted,
	)
	if err != nil {
		return fmt.Errorf("fail childless parent: %w", err)
	}
	_, _ = res.RowsAffected()
	return nil
}

// SetParentTerminal conditionally moves a parent to a terminal status. Only
// reconciliation calls this; the conditional update keeps concurrent
// reconcilers idempotent.
func (s *Store) SetParentTerminal(ctx context.Context, parentID int64, status Status) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("status %q is not terminal", status)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND parent_id IS NULL AND status IN (?, ?)`,
		status,
		now,
		parentID,
		StatusQueued,
		StatusStarted,
	)
	if err != nil {
		return false, fmt.Errorf("set parent terminal: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}
