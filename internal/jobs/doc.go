// Package jobs persists comparison jobs in SQLite and exposes the
// conditional transitions that implement their lifecycle.
//
// A Job is either a parent (a revision comparison) or a child (one matched
// pair to align). Children advance queued → started → one of completed,
// failed, or canceled. Claims, completions, and cancellations are all
// conditional single-statement updates keyed on the current status, so
// concurrent workers and retried fan-outs cannot double-apply a transition.
// A partial unique index over (parent_id, target_type, target_id) restricted
// to the active statuses makes child enqueueing an atomic
// insert-or-conflict, which is what fan-out deduplication relies on.
//
// The database is treated as transient storage for in-flight work rather
// than a long-term archive. Schema changes bump schemaVersion; users clear
// the database to adopt the new schema.
package jobs
