// Package daemon ties the worker pool, lease sweeper, and HTTP API into a
// single lifecycle with flock-based locking to prevent multiple redline
// daemons sharing one data directory.
package daemon
