package config

const (
	defaultDataDir   = "~/.local/share/redline"
	defaultLogDir    = "~/.local/share/redline/logs"
	defaultRasterDir = "~/.local/share/redline/rasters"
	defaultAPIBind   = "127.0.0.1:7631"
	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultSizeRatioTolerance   = 2.5
	defaultAspectRatioTolerance = 0.5
	defaultMinBoundsScore       = 0.1
	defaultMinFuzzyScore        = 0.6

	defaultMinFeatures            = 400
	defaultDistanceRatioThreshold = 0.75
	defaultReprojectionThreshold  = 3.0
	defaultMaxIterations          = 2000
	defaultLowConfidenceThreshold = 0.25
	defaultMinViableInliers       = 8
	defaultRelaxedMinFeatures     = 1000
	defaultRelaxedDistanceRatio   = 0.85

	defaultFanoutBatchSize        = 25
	defaultFanoutBatchPauseMillis = 100
	defaultMaxChildrenPerJob      = 500
	defaultQueueRetryAttempts     = 3
	defaultQueueRetryBackoff      = 250

	defaultWorkerCount        = 4
	defaultWorkerPollInterval = 2
	defaultLeaseTimeout       = 120
	defaultHeartbeatInterval  = 15
	defaultSweepInterval      = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			RasterDir: defaultRasterDir,
			APIBind:   defaultAPIBind,
		},
		Matching: Matching{
			SizeRatioTolerance:   defaultSizeRatioTolerance,
			AspectRatioTolerance: defaultAspectRatioTolerance,
			MinBoundsScore:       defaultMinBoundsScore,
			FuzzyTitles:          false,
			MinFuzzyScore:        defaultMinFuzzyScore,
		},
		Alignment: Alignment{
			MinFeatures:            defaultMinFeatures,
			DistanceRatioThreshold: defaultDistanceRatioThreshold,
			ReprojectionThreshold:  defaultReprojectionThreshold,
			MaxIterations:          defaultMaxIterations,
			LowConfidenceThreshold: defaultLowConfidenceThreshold,
			MinViableInliers:       defaultMinViableInliers,
			RelaxedMinFeatures:     defaultRelaxedMinFeatures,
			RelaxedDistanceRatio:   defaultRelaxedDistanceRatio,
		},
		Fanout: Fanout{
			BatchSize:          defaultFanoutBatchSize,
			BatchPauseMillis:   defaultFanoutBatchPauseMillis,
			MaxChildrenPerJob:  defaultMaxChildrenPerJob,
			QueueRetryAttempts: defaultQueueRetryAttempts,
			QueueRetryBackoff:  defaultQueueRetryBackoff,
		},
		Workers: Workers{
			Count:                defaultWorkerCount,
			PollIntervalSeconds:  defaultWorkerPollInterval,
			LeaseTimeoutSeconds:  defaultLeaseTimeout,
			HeartbeatSeconds:     defaultHeartbeatInterval,
			SweepIntervalSeconds: defaultSweepInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
