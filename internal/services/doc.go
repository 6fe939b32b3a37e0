// Package services defines the error classification markers shared by all
// redline components plus the context annotations used to correlate logs.
//
// Errors produced by components are wrapped with a sentinel marker
// (validation, not found, transient, ...) so callers can classify a failure
// with errors.Is without knowing which component produced it. Non-fatal
// conditions such as missing correspondences or low alignment confidence
// are not errors; they travel as result warnings and flags.
package services
