// Package logging builds the slog loggers used throughout redline and
// defines the standardized structured field names.
//
// Loggers are constructed from config (format, level, log directory) and
// write to stdout plus a rotating-free redline.log in the log directory.
// Components derive their loggers with NewComponentLogger so every record
// carries a "component" attribute, and WithContext folds job identifiers
// from the request context into the logger.
package logging
