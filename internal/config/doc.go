// Package config loads, normalizes, and validates redline configuration.
//
// Configuration is TOML with sections per subsystem:
//   - Paths: data/log directories and the daemon API bind address
//   - Matching: entity matcher tolerances and optional passes
//   - Alignment: feature detection and robust-fit parameters
//   - Fanout: batching, pacing, child caps, and queue retry policy
//   - Workers: pool size, polling, leases, and sweep cadence
//   - Logging: log format and level
//
// Load applies defaults, expands ~ in paths, pulls selected values from
// the environment, and validates the result. Callers should treat the
// returned Config as immutable.
package config
