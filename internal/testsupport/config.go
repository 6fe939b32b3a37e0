package testsupport

import (
	"path/filepath"
	"testing"

	"redline/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.RasterDir = filepath.Join(base, "rasters")
	cfg.Paths.APIBind = "127.0.0.1:0"
	// Keep tests fast: no pacing, no poll latency.
	cfg.Fanout.BatchPauseMillis = 0
	cfg.Fanout.QueueRetryBackoff = 0
	cfg.Workers.PollIntervalSeconds = 1

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithMaxChildren caps fan-out child counts on the test config.
func WithMaxChildren(limit int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Fanout.MaxChildrenPerJob = limit
	}
}

// WithFuzzyTitles toggles the fuzzy title pass on the test config.
func WithFuzzyTitles(enabled bool) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Matching.FuzzyTitles = enabled
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
