package jobs_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"redline/internal/jobs"
	"redline/internal/testsupport"
)

func newStore(t *testing.T) *jobs.Store {
	t.Helper()
	return testsupport.MustOpenStore(t, testsupport.NewConfig(t))
}

func newParent(t *testing.T, store *jobs.Store) *jobs.Job {
	t.Helper()
	parent, err := store.NewParent(context.Background(), jobs.TargetRevisionCompare, "sheet:rev-a:rev-b", "")
	if err != nil {
		t.Fatalf("NewParent: %v", err)
	}
	return parent
}

func TestNewParentStartsQueued(t *testing.T) {
	store := newStore(t)
	parent := newParent(t, store)

	if parent.Status != jobs.StatusQueued {
		t.Fatalf("new parent status = %q, want queued", parent.Status)
	}
	if !parent.IsParent() {
		t.Fatalf("parent should report IsParent")
	}
	if parent.FanoutComplete() {
		t.Fatalf("new parent should not report fan-out complete")
	}
}

func TestEnqueueChildDeduplicates(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	parent := newParent(t, store)

	child, inserted, err := store.EnqueueChild(ctx, parent.ID, jobs.TargetSheetPair, "l1:r1", "{}")
	if err != nil {
		t.Fatalf("EnqueueChild: %v", err)
	}
	if !inserted || child == nil {
		t.Fatalf("first enqueue should insert")
	}

	dup, inserted, err := store.EnqueueChild(ctx, parent.ID, jobs.TargetSheetPair, "l1:r1", "{}")
	if err != nil {
		t.Fatalf("EnqueueChild duplicate: %v", err)
	}
	if inserted || dup != nil {
		t.Fatalf("duplicate key should be skipped, got inserted=%v job=%+v", inserted, dup)
	}

	// A failed child falls outside the active-key index and may be replaced.
	if ok, err := store.Fail(ctx, child.ID, "boom"); err != nil || !ok {
		t.Fatalf("Fail: ok=%v err=%v", ok, err)
	}
	retry, inserted, err := store.EnqueueChild(ctx, parent.ID, jobs.TargetSheetPair, "l1:r1", "{}")
	if err != nil {
		t.Fatalf("EnqueueChild after failure: %v", err)
	}
	if !inserted || retry == nil || retry.ID == child.ID {
		t.Fatalf("failed key should be re-enqueueable, got inserted=%v job=%+v", inserted, retry)
	}
}

func TestClaimNextOrdersOldestFirst(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	parent := newParent(t, store)

	first, _, err := store.EnqueueChild(ctx, parent.ID, jobs.TargetSheetPair, "l1:r1", "")
	if err != nil {
		t.Fatalf("EnqueueChild: %v", err)
	}
	if _, _, err := store.EnqueueChild(ctx, parent.ID, jobs.TargetSheetPair, "l2:r2", ""); err != nil {
		t.Fatalf("EnqueueChild: %v", err)
	}

	claimed, err := store.ClaimNext(ctx, "worker-a", time.Minute)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("expected oldest child %d, got %+v", first.ID, claimed)
	}
	if claimed.Status != jobs.StatusStarted || claimed.LeaseOwner != "worker-a" {
		t.Fatalf("claim did not set lease: %+v", claimed)
	}
	if claimed.LeaseExpiresAt == nil || !claimed.LeaseExpiresAt.After(time.Now().UTC()) {
		t.Fatalf("lease expiry not in the future: %v", claimed.LeaseExpiresAt)
	}
}

func TestClaimNextIgnoresParents(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	newParent(t, store)

	claimed, err := store.ClaimNext(ctx, "worker-a", time.Minute)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if claimed != nil {
		t.Fatalf("parents are never claimable, got %+v", claimed)
	}
}

func TestCompleteIsTerminalOnce(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	parent := newParent(t, store)
	child, _, err := store.EnqueueChild(ctx, parent.ID, jobs.TargetSheetPair, "l1:r1", "")
	if err != nil {
		t.Fatalf("EnqueueChild: %v", err)
	}
	if _, err := store.ClaimNext(ctx, "worker-a", time.Minute); err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}

	ok, err := store.Complete(ctx, child.ID, `{"score":1}`)
	if err != nil || !ok {
		t.Fatalf("Complete: ok=%v err=%v", ok, err)
	}

	// Redelivery of an already-terminal job is a no-op.
	ok, err = store.Complete(ctx, child.ID, `{"score":0}`)
	if err != nil {
		t.Fatalf("Complete redelivery: %v", err)
	}
	if ok {
		t.Fatalf("second completion must report false")
	}

	got, err := store.GetByID(ctx, child.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != jobs.StatusCompleted || got.ResultJSON != `{"score":1}` {
		t.Fatalf("first result must win: %+v", got)
	}
	if got.LeaseOwner != "" || got.LeaseExpiresAt != nil {
		t.Fatalf("completion must clear the lease: %+v", got)
	}
}

func TestCompleteManually(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	parent := newParent(t, store)

	// A queued child completes without ever being claimed and is no
	// longer visible to workers.
	queued, _, err := store.EnqueueChild(ctx, parent.ID, jobs.TargetSheetPair, "l1:r1", "")
	if err != nil {
		t.Fatalf("EnqueueChild: %v", err)
	}
	ok, err := store.CompleteManually(ctx, queued.ID, `{"manual":true}`)
	if err != nil || !ok {
		t.Fatalf("CompleteManually from queued: ok=%v err=%v", ok, err)
	}
	got, _ := store.GetByID(ctx, queued.ID)
	if got.Status != jobs.StatusCompleted || got.ResultJSON != `{"manual":true}` {
		t.Fatalf("queued child after manual completion: %+v", got)
	}
	if claimed, err := store.ClaimNext(ctx, "worker-a", time.Minute); err != nil || claimed != nil {
		t.Fatalf("manually completed child must not be claimable: %+v, %v", claimed, err)
	}

	// A started child completes too, releasing its lease.
	started, _, err := store.EnqueueChild(ctx, parent.ID, jobs.TargetSheetPair, "l2:r2", "")
	if err != nil {
		t.Fatalf("EnqueueChild: %v", err)
	}
	if _, err := store.ClaimNext(ctx, "worker-a", time.Minute); err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	ok, err = store.CompleteManually(ctx, started.ID, `{"manual":true}`)
	if err != nil || !ok {
		t.Fatalf("CompleteManually from started: ok=%v err=%v", ok, err)
	}
	got, _ = store.GetByID(ctx, started.ID)
	if got.LeaseOwner != "" || got.LeaseExpiresAt != nil {
		t.Fatalf("manual completion must clear the lease: %+v", got)
	}

	// Terminal jobs are left alone.
	ok, err = store.CompleteManually(ctx, started.ID, `{"manual":false}`)
	if err != nil {
		t.Fatalf("CompleteManually on terminal: %v", err)
	}
	if ok {
		t.Fatalf("terminal job must not transition again")
	}
	got, _ = store.GetByID(ctx, started.ID)
	if got.ResultJSON != `{"manual":true}` {
		t.Fatalf("terminal result overwritten: %s", got.ResultJSON)
	}
}

func TestExtendLeaseRequiresOwner(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	parent := newParent(t, store)
	child, _, err := store.EnqueueChild(ctx, parent.ID, jobs.TargetSheetPair, "l1:r1", "")
	if err != nil {
		t.Fatalf("EnqueueChild: %v", err)
	}
	if _, err := store.ClaimNext(ctx, "worker-a", time.Minute); err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}

	ok, err := store.ExtendLease(ctx, child.ID, "worker-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("owner extend: ok=%v err=%v", ok, err)
	}
	ok, err = store.ExtendLease(ctx, child.ID, "worker-b", time.Minute)
	if err != nil {
		t.Fatalf("foreign extend: %v", err)
	}
	if ok {
		t.Fatalf("a non-owner must not extend the lease")
	}
}

func TestCancelQueuedChildrenLeavesStartedAlone(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	parent := newParent(t, store)
	started, _, err := store.EnqueueChild(ctx, parent.ID, jobs.TargetSheetPair, "l1:r1", "")
	if err != nil {
		t.Fatalf("EnqueueChild: %v", err)
	}
	queued, _, err := store.EnqueueChild(ctx, parent.ID, jobs.TargetSheetPair, "l2:r2", "")
	if err != nil {
		t.Fatalf("EnqueueChild: %v", err)
	}
	if _, err := store.ClaimNext(ctx, "worker-a", time.Minute); err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}

	canceled, err := store.CancelQueuedChildren(ctx, parent.ID)
	if err != nil {
		t.Fatalf("CancelQueuedChildren: %v", err)
	}
	if canceled != 1 {
		t.Fatalf("expected 1 cancellation, got %d", canceled)
	}

	gotQueued, _ := store.GetByID(ctx, queued.ID)
	if gotQueued.Status != jobs.StatusCanceled {
		t.Fatalf("queued child should be canceled, got %q", gotQueued.Status)
	}
	gotStarted, _ := store.GetByID(ctx, started.ID)
	if gotStarted.Status != jobs.StatusStarted {
		t.Fatalf("started child must run to completion, got %q", gotStarted.Status)
	}
}

func TestReclaimExpiredLeases(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	parent := newParent(t, store)
	child, _, err := store.EnqueueChild(ctx, parent.ID, jobs.TargetSheetPair, "l1:r1", "")
	if err != nil {
		t.Fatalf("EnqueueChild: %v", err)
	}

	// First expiry: silently re-queued with an attempt recorded.
	if _, err := store.ClaimNext(ctx, "worker-a", -time.Second); err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	requeued, failed, err := store.ReclaimExpiredLeases(ctx, 1)
	if err != nil {
		t.Fatalf("ReclaimExpiredLeases: %v", err)
	}
	if requeued != 1 || failed != 0 {
		t.Fatalf("first sweep: requeued=%d failed=%d", requeued, failed)
	}
	got, _ := store.GetByID(ctx, child.ID)
	if got.Status != jobs.StatusQueued || got.Attempts != 1 {
		t.Fatalf("after first sweep: %+v", got)
	}

	// Second expiry: failed with the default message retained.
	if _, err := store.ClaimNext(ctx, "worker-b", -time.Second); err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	requeued, failed, err = store.ReclaimExpiredLeases(ctx, 1)
	if err != nil {
		t.Fatalf("ReclaimExpiredLeases: %v", err)
	}
	if requeued != 0 || failed != 1 {
		t.Fatalf("second sweep: requeued=%d failed=%d", requeued, failed)
	}
	got, _ = store.GetByID(ctx, child.ID)
	if got.Status != jobs.StatusFailed || !strings.Contains(got.ErrorMessage, "worker lease expired") {
		t.Fatalf("after second sweep: %+v", got)
	}
}

func TestMarkFanoutCompleteKeepsFirstTimestamp(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	parent := newParent(t, store)

	if err := store.MarkFanoutComplete(ctx, parent.ID, `{"queued":2}`); err != nil {
		t.Fatalf("MarkFanoutComplete: %v", err)
	}
	first, _ := store.GetByID(ctx, parent.ID)
	if !first.FanoutComplete() {
		t.Fatalf("milestone not recorded: %+v", first)
	}

	time.Sleep(5 * time.Millisecond)
	if err := store.MarkFanoutComplete(ctx, parent.ID, `{"queued":2,"skipped_duplicate":2}`); err != nil {
		t.Fatalf("MarkFanoutComplete rerun: %v", err)
	}
	second, _ := store.GetByID(ctx, parent.ID)
	if !second.FanoutDoneAt.Equal(*first.FanoutDoneAt) {
		t.Fatalf("milestone timestamp moved: %v -> %v", first.FanoutDoneAt, second.FanoutDoneAt)
	}
	if second.FanoutStatsJSON != `{"queued":2,"skipped_duplicate":2}` {
		t.Fatalf("stats should refresh: %s", second.FanoutStatsJSON)
	}
}

func TestRecordFanoutFailure(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	// A childless parent has nothing for reconciliation to derive from,
	// so the enqueue failure is terminal for it directly.
	childless := newParent(t, store)
	if err := store.RecordFanoutFailure(ctx, childless.ID, `{}`, "queue unavailable"); err != nil {
		t.Fatalf("RecordFanoutFailure: %v", err)
	}
	got, _ := store.GetByID(ctx, childless.ID)
	if got.Status != jobs.StatusFailed || got.ErrorMessage != "queue unavailable" {
		t.Fatalf("childless parent: %+v", got)
	}

	// A parent with enqueued children keeps its derived lifecycle.
	partial := newParent(t, store)
	if _, _, err := store.EnqueueChild(ctx, partial.ID, jobs.TargetSheetPair, "l1:r1", ""); err != nil {
		t.Fatalf("EnqueueChild: %v", err)
	}
	if err := store.RecordFanoutFailure(ctx, partial.ID, `{"queued":1}`, "queue unavailable"); err != nil {
		t.Fatalf("RecordFanoutFailure: %v", err)
	}
	got, _ = store.GetByID(ctx, partial.ID)
	if got.Status.IsTerminal() {
		t.Fatalf("parent with children must stay non-terminal, got %q", got.Status)
	}
	if got.FanoutStatsJSON != `{"queued":1}` || got.ErrorMessage != "queue unavailable" {
		t.Fatalf("partial stats not preserved: %+v", got)
	}
}

func TestSetParentTerminalIsConditional(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	parent := newParent(t, store)

	if _, err := store.SetParentTerminal(ctx, parent.ID, jobs.StatusStarted); err == nil {
		t.Fatalf("non-terminal status must be rejected")
	}

	ok, err := store.SetParentTerminal(ctx, parent.ID, jobs.StatusCompleted)
	if err != nil || !ok {
		t.Fatalf("SetParentTerminal: ok=%v err=%v", ok, err)
	}
	// A concurrent reconciler arriving late observes no transition.
	ok, err = store.SetParentTerminal(ctx, parent.ID, jobs.StatusFailed)
	if err != nil {
		t.Fatalf("SetParentTerminal rerun: %v", err)
	}
	if ok {
		t.Fatalf("terminal parents must not transition again")
	}
	got, _ := store.GetByID(ctx, parent.ID)
	if got.Status != jobs.StatusCompleted {
		t.Fatalf("terminal status overwritten: %q", got.Status)
	}
}

func TestStatsAndHealth(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	parent := newParent(t, store)
	if _, _, err := store.EnqueueChild(ctx, parent.ID, jobs.TargetSheetPair, "l1:r1", ""); err != nil {
		t.Fatalf("EnqueueChild: %v", err)
	}
	if _, err := store.ClaimNext(ctx, "worker-a", -time.Second); err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[jobs.StatusQueued] != 1 || stats[jobs.StatusStarted] != 1 {
		t.Fatalf("stats = %v", stats)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 2 || health.Queued != 1 || health.Started != 1 {
		t.Fatalf("health = %+v", health)
	}
	if health.StaleLeases != 1 {
		t.Fatalf("expired lease should count as stale, got %d", health.StaleLeases)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := jobs.ParseStatus(" Queued "); !ok || status != jobs.StatusQueued {
		t.Fatalf("ParseStatus = (%q, %v)", status, ok)
	}
	if _, ok := jobs.ParseStatus("paused"); ok {
		t.Fatalf("unknown status must not parse")
	}
}

func TestFanoutStatsAdd(t *testing.T) {
	var stats jobs.FanoutStats
	stats.Add("sheetNumber", "queued")
	stats.Add("sheetNumber", "queued")
	stats.Add("positional", "truncated")
	stats.Add("title", "skipped_duplicate")
	stats.Add("title", "skipped_mismatch")

	if stats.Queued != 2 || stats.Truncated != 1 || stats.SkippedDuplicate != 1 || stats.SkippedMismatch != 1 {
		t.Fatalf("totals = %+v", stats)
	}
	if stats.ByMethod["sheetNumber"].Queued != 2 {
		t.Fatalf("per-method queued = %+v", stats.ByMethod["sheetNumber"])
	}
	if stats.ByMethod["positional"].Truncated != 1 {
		t.Fatalf("per-method truncated = %+v", stats.ByMethod["positional"])
	}
}
