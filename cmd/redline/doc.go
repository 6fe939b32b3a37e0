// Package main hosts the redline CLI entrypoint and command graph.
//
// The Cobra-based command tree surfaces revision imports, comparison
// creation, fan-out and reconciliation, job inspection, manual alignment,
// and configuration scaffolding. It centralizes configuration resolution
// and store wiring so subcommands can focus on user experience.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
