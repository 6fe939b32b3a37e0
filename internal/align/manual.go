package align

import (
	"fmt"
	"math"

	"redline/internal/services"
)

// ManualPointCount is the number of reference points each side of a manual
// alignment must supply.
const ManualPointCount = 3

// ManualResult carries the transform previewed from operator-picked points.
type ManualResult struct {
	Transform   Transform
	MaxResidual float64
	Warnings    []string
}

// PreviewManual fits a similarity transform from exactly three reference
// points per side. The fit is deterministic and nothing is persisted; callers
// commit the result separately once the operator accepts the preview.
func PreviewManual(pointsA, pointsB []Point, residualWarnThreshold float64) (*ManualResult, error) {
	if err := validateManualPoints("left", pointsA); err != nil {
		return nil, err
	}
	if err := validateManualPoints("right", pointsB); err != nil {
		return nil, err
	}

	corrs := make([]correspondence, ManualPointCount)
	for i := range corrs {
		corrs[i] = correspondence{left: pointsA[i], right: pointsB[i]}
	}
	model, ok := fitSimilarity(corrs)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "align", "manual preview", "reference points admit no similarity transform", nil)
	}

	result := &ManualResult{Transform: model}
	for _, c := range corrs {
		if r := model.reprojectionError(c); r > result.MaxResidual {
			result.MaxResidual = r
		}
	}
	if residualWarnThreshold > 0 && result.MaxResidual > residualWarnThreshold {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("reference points disagree: max residual %.2f exceeds %.2f", result.MaxResidual, residualWarnThreshold))
	}
	return result, nil
}

func validateManualPoints(side string, points []Point) error {
	if len(points) != ManualPointCount {
		return services.Wrap(services.ErrValidation, "align", "manual preview",
			fmt.Sprintf("%s side requires exactly %d points, got %d", side, ManualPointCount, len(points)), nil)
	}
	for _, p := range points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return services.Wrap(services.ErrValidation, "align", "manual preview",
				fmt.Sprintf("%s side contains a non-finite point", side), nil)
		}
	}
	if collinear(points[0], points[1], points[2]) {
		return services.Wrap(services.ErrValidation, "align", "manual preview",
			fmt.Sprintf("%s side points are collinear", side), nil)
	}
	return nil
}
