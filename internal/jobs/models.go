package jobs

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

var allStatuses = []Status{
	StatusQueued,
	StatusStarted,
	StatusCompleted,
	StatusFailed,
	StatusCanceled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status is final.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// TargetType names what a job operates on.
type TargetType string

const (
	TargetRevisionCompare TargetType = "revision_compare"
	TargetSheetPair       TargetType = "sheet_pair"
	TargetBlockPair       TargetType = "block_pair"
)

// Job is one unit of comparison work persisted in SQLite.
type Job struct {
	ID           int64
	ParentID     *int64
	TargetType   TargetType
	TargetID     string
	Status       Status
	PayloadJSON  string
	ResultJSON   string
	ErrorMessage string
	// Attempts counts lease expiries; one silent re-queue is allowed.
	Attempts        int
	LeaseOwner      string
	LeaseExpiresAt  *time.Time
	FanoutStatsJSON string
	FanoutDoneAt    *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsParent reports whether the job is a fan-out root.
func (j *Job) IsParent() bool {
	return j != nil && j.ParentID == nil
}

// FanoutComplete reports whether all children of a parent were enqueued.
// Independent of the parent's terminal state.
func (j *Job) FanoutComplete() bool {
	return j != nil && j.FanoutDoneAt != nil
}

// MethodStats is the per-pairing-method slice of fan-out accounting.
type MethodStats struct {
	Queued           int `json:"queued"`
	SkippedDuplicate int `json:"skipped_duplicate"`
	SkippedMismatch  int `json:"skipped_mismatch"`
	Truncated        int `json:"truncated"`
}

// FanoutStats aggregates the outcome of expanding one parent job.
type FanoutStats struct {
	Queued           int                    `json:"queued"`
	SkippedDuplicate int                    `json:"skipped_duplicate"`
	SkippedMismatch  int                    `json:"skipped_mismatch"`
	Truncated        int                    `json:"truncated"`
	ByMethod         map[string]MethodStats `json:"by_method,omitempty"`
}

// Add records a fan-out outcome for a pairing method. The reason must be
// one of "queued", "skipped_duplicate", "skipped_mismatch", or "truncated".
func (s *FanoutStats) Add(method, reason string) {
	if s.ByMethod == nil {
		s.ByMethod = make(map[string]MethodStats)
	}
	m := s.ByMethod[method]
	switch reason {
	case "queued":
		s.Queued++
		m.Queued++
	case "skipped_duplicate":
		s.SkippedDuplicate++
		m.SkippedDuplicate++
	case "skipped_mismatch":
		s.SkippedMismatch++
		m.SkippedMismatch++
	case "truncated":
		s.Truncated++
		m.Truncated++
	}
	s.ByMethod[method] = m
}

// HealthSummary describes aggregated job counts per lifecycle state.
type HealthSummary struct {
	Total       int
	Queued      int
	Started     int
	Completed   int
	Failed      int
	Canceled    int
	StaleLeases int
}
