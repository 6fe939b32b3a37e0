// Package match pairs the entities of two document revisions.
//
// Matching runs an ordered cascade of strategies over a shared arena:
// per-side claimed bitmaps over the original indices. Each pass scans the
// unclaimed left entities in original order; equality passes claim the
// first eligible right candidate, scored passes claim the best-scoring
// candidate with ties broken by the earliest right index. Claims are
// visible to the rest of the same pass, so pairing stays strictly 1:1.
// Entities left unclaimed after the final pass are reported, never
// force-paired.
package match
