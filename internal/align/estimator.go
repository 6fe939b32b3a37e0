package align

import (
	"context"
	"image"
	"log/slog"

	"redline/internal/config"
	"redline/internal/logging"
)

// WarningNoCorrespondences marks a zero-confidence result caused by the
// images sharing no usable keypoint correspondences.
const WarningNoCorrespondences = "no correspondences found"

// Result is the outcome of one alignment estimation.
type Result struct {
	Transform     Transform
	MatchCount    int
	InlierCount   int
	Score         float64
	LowConfidence bool
	Warnings      []string
}

// Estimator computes transforms between matched entity rasters.
type Estimator struct {
	cfg    config.Alignment
	logger *slog.Logger
}

// NewEstimator builds an estimator from alignment configuration.
func NewEstimator(cfg config.Alignment, logger *slog.Logger) *Estimator {
	return &Estimator{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "align"),
	}
}

// Estimate computes the transform mapping imgA's frame onto imgB's and a
// confidence score. Zero correspondences produce a zero-confidence result
// with a warning; estimation itself never fails on image content.
func (e *Estimator) Estimate(ctx context.Context, imgA, imgB image.Image) (*Result, error) {
	return e.estimate(ctx, imgA, imgB, e.cfg.MinFeatures, e.cfg.DistanceRatioThreshold)
}

// EstimateWithRetry runs Estimate and, when the inlier count is below the
// minimum-viable threshold, retries exactly once with the relaxed feature
// budget and ratio threshold. The better of the two results wins.
func (e *Estimator) EstimateWithRetry(ctx context.Context, imgA, imgB image.Image) (*Result, bool, error) {
	first, err := e.Estimate(ctx, imgA, imgB)
	if err != nil {
		return nil, false, err
	}
	if first.InlierCount >= e.cfg.MinViableInliers {
		return first, false, nil
	}

	e.logger.Debug("alignment below viable inliers; retrying relaxed",
		logging.Int("inliers", first.InlierCount),
		logging.Int("min_viable", e.cfg.MinViableInliers),
	)
	second, err := e.estimate(ctx, imgA, imgB, e.cfg.RelaxedMinFeatures, e.cfg.RelaxedDistanceRatio)
	if err != nil {
		return nil, false, err
	}
	if second.InlierCount > first.InlierCount {
		return second, true, nil
	}
	return first, true, nil
}

func (e *Estimator) estimate(ctx context.Context, imgA, imgB image.Image, featureBudget int, ratio float64) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	featuresA := detectFeatures(imgA, featureBudget)
	featuresB := detectFeatures(imgB, featureBudget)
	corrs := matchDescriptors(featuresA, featuresB, ratio)

	result := &Result{Transform: Identity(), MatchCount: len(corrs)}
	if len(corrs) == 0 {
		result.Warnings = append(result.Warnings, WarningNoCorrespondences)
		result.LowConfidence = true
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	model, inliers := ransacSimilarity(corrs, e.cfg.ReprojectionThreshold, e.cfg.MaxIterations)
	result.InlierCount = len(inliers)
	if len(inliers) > 0 {
		result.Transform = model
	}
	result.Score = float64(result.InlierCount) / float64(result.MatchCount)
	if result.Score < e.cfg.LowConfidenceThreshold {
		result.LowConfidence = true
	}

	e.logger.Debug("alignment estimated",
		logging.Int("matches", result.MatchCount),
		logging.Int("inliers", result.InlierCount),
		logging.Float64("score", result.Score),
		logging.Bool("low_confidence", result.LowConfidence),
	)
	return result, nil
}
