package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	RasterDir string `toml:"raster_dir"`
	APIBind   string `toml:"api_bind"`
}

// Matching contains entity matcher tolerances.
type Matching struct {
	// SizeRatioTolerance gates bounds-pass candidates: the larger area divided
	// by the smaller must not exceed this ratio.
	SizeRatioTolerance float64 `toml:"size_ratio_tolerance"`
	// AspectRatioTolerance gates bounds-pass candidates by aspect ratio delta.
	AspectRatioTolerance float64 `toml:"aspect_ratio_tolerance"`
	// MinBoundsScore is the smallest geometric score a bounds-pass match may claim.
	MinBoundsScore float64 `toml:"min_bounds_score"`
	// FuzzyTitles enables the appended token-overlap title pass for sheets.
	FuzzyTitles bool `toml:"fuzzy_titles"`
	// MinFuzzyScore is the minimum cosine similarity for a fuzzy title match.
	MinFuzzyScore float64 `toml:"min_fuzzy_score"`
}

// Alignment contains feature detection and robust-fit parameters.
type Alignment struct {
	MinFeatures            int     `toml:"min_features"`
	DistanceRatioThreshold float64 `toml:"distance_ratio_threshold"`
	ReprojectionThreshold  float64 `toml:"reprojection_threshold"`
	MaxIterations          int     `toml:"max_iterations"`
	LowConfidenceThreshold float64 `toml:"low_confidence_threshold"`
	// MinViableInliers triggers the single relaxed retry when unmet.
	MinViableInliers int `toml:"min_viable_inliers"`
	// Relaxed retry parameters.
	RelaxedMinFeatures   int     `toml:"relaxed_min_features"`
	RelaxedDistanceRatio float64 `toml:"relaxed_distance_ratio"`
}

// Fanout contains child-job expansion policy.
type Fanout struct {
	BatchSize          int `toml:"batch_size"`
	BatchPauseMillis   int `toml:"batch_pause_millis"`
	MaxChildrenPerJob  int `toml:"max_children_per_job"`
	QueueRetryAttempts int `toml:"queue_retry_attempts"`
	QueueRetryBackoff  int `toml:"queue_retry_backoff_millis"`
}

// Workers contains worker pool and sweep cadence configuration.
type Workers struct {
	Count                int `toml:"count"`
	PollIntervalSeconds  int `toml:"poll_interval"`
	LeaseTimeoutSeconds  int `toml:"lease_timeout"`
	HeartbeatSeconds     int `toml:"heartbeat_interval"`
	SweepIntervalSeconds int `toml:"sweep_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for redline.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Matching  Matching  `toml:"matching"`
	Alignment Alignment `toml:"alignment"`
	Fanout    Fanout    `toml:"fanout"`
	Workers   Workers   `toml:"workers"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/redline/config.toml")
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

// ExpandPath resolves ~ and relative segments to an absolute path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

// CreateSample writes the embedded sample configuration to the target path.
func CreateSample(path string) error {
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a config file was found; defaults apply otherwise.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, path[2:]), nil
	}
	return filepath.Abs(path)
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.RasterDir) != "" {
		// Best-effort: raster storage may live on external mounts.
		_ = os.MkdirAll(c.Paths.RasterDir, 0o755)
	}
	return nil
}
