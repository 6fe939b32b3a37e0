package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateAlignment(); err != nil {
		return err
	}
	if err := c.validateFanout(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateMatching() error {
	if c.Matching.SizeRatioTolerance < 1 {
		return errors.New("matching.size_ratio_tolerance must be at least 1")
	}
	if c.Matching.AspectRatioTolerance <= 0 {
		return errors.New("matching.aspect_ratio_tolerance must be positive")
	}
	if c.Matching.MinBoundsScore < 0 || c.Matching.MinBoundsScore > 1 {
		return errors.New("matching.min_bounds_score must be between 0 and 1")
	}
	if c.Matching.MinFuzzyScore < 0 || c.Matching.MinFuzzyScore > 1 {
		return errors.New("matching.min_fuzzy_score must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateAlignment() error {
	if c.Alignment.MinFeatures <= 0 {
		return errors.New("alignment.min_features must be positive")
	}
	if c.Alignment.DistanceRatioThreshold <= 0 || c.Alignment.DistanceRatioThreshold >= 1 {
		return errors.New("alignment.distance_ratio_threshold must be in (0, 1)")
	}
	if c.Alignment.RelaxedDistanceRatio <= 0 || c.Alignment.RelaxedDistanceRatio >= 1 {
		return errors.New("alignment.relaxed_distance_ratio must be in (0, 1)")
	}
	if c.Alignment.ReprojectionThreshold <= 0 {
		return errors.New("alignment.reprojection_threshold must be positive")
	}
	if c.Alignment.MaxIterations <= 0 {
		return errors.New("alignment.max_iterations must be positive")
	}
	if c.Alignment.LowConfidenceThreshold < 0 || c.Alignment.LowConfidenceThreshold > 1 {
		return errors.New("alignment.low_confidence_threshold must be between 0 and 1")
	}
	if c.Alignment.MinViableInliers < 0 {
		return errors.New("alignment.min_viable_inliers must not be negative")
	}
	return nil
}

func (c *Config) validateFanout() error {
	if c.Fanout.BatchSize <= 0 {
		return errors.New("fanout.batch_size must be positive")
	}
	if c.Fanout.BatchPauseMillis < 0 {
		return errors.New("fanout.batch_pause_millis must not be negative")
	}
	if c.Fanout.MaxChildrenPerJob <= 0 {
		return errors.New("fanout.max_children_per_job must be positive")
	}
	if c.Fanout.QueueRetryAttempts <= 0 {
		return errors.New("fanout.queue_retry_attempts must be positive")
	}
	if c.Fanout.QueueRetryBackoff < 0 {
		return errors.New("fanout.queue_retry_backoff_millis must not be negative")
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if c.Workers.Count <= 0 {
		return errors.New("workers.count must be positive")
	}
	if c.Workers.PollIntervalSeconds <= 0 {
		return errors.New("workers.poll_interval must be positive")
	}
	if c.Workers.LeaseTimeoutSeconds <= 0 {
		return errors.New("workers.lease_timeout must be positive")
	}
	if c.Workers.HeartbeatSeconds <= 0 {
		return errors.New("workers.heartbeat_interval must be positive")
	}
	if c.Workers.HeartbeatSeconds >= c.Workers.LeaseTimeoutSeconds {
		return errors.New("workers.heartbeat_interval must be shorter than workers.lease_timeout")
	}
	if c.Workers.SweepIntervalSeconds <= 0 {
		return errors.New("workers.sweep_interval must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
