package align

import "math/rand"

// ransacSimilarity fits a similarity transform robust to outlier
// correspondences. Each iteration samples a minimal two-point set, fits a
// candidate model, and counts correspondences whose reprojection error
// stays under the threshold. The best model is refined with a
// least-squares fit over its inlier set. The iteration budget bounds the
// work regardless of input size.
//
// The sampler is seeded deterministically so identical inputs reproduce
// identical fits.
func ransacSimilarity(corrs []correspondence, reprojThreshold float64, maxIterations int) (Transform, []correspondence) {
	if len(corrs) < 2 {
		return Transform{}, nil
	}

	rng := rand.New(rand.NewSource(int64(len(corrs))))
	var bestInliers []correspondence
	bestModel := Transform{}

	for iter := 0; iter < maxIterations; iter++ {
		i := rng.Intn(len(corrs))
		j := rng.Intn(len(corrs))
		if i == j {
			continue
		}
		model, ok := fitSimilarity([]correspondence{corrs[i], corrs[j]})
		if !ok {
			continue
		}

		inliers := inliersOf(model, corrs, reprojThreshold)
		if len(inliers) > len(bestInliers) {
			bestInliers = inliers
			bestModel = model
			// Everything already fits; more sampling cannot improve.
			if len(bestInliers) == len(corrs) {
				break
			}
		}
	}

	if len(bestInliers) < 2 {
		return Transform{}, nil
	}

	if refined, ok := fitSimilarity(bestInliers); ok {
		refinedInliers := inliersOf(refined, corrs, reprojThreshold)
		if len(refinedInliers) >= len(bestInliers) {
			return refined, refinedInliers
		}
	}
	return bestModel, bestInliers
}

func inliersOf(model Transform, corrs []correspondence, threshold float64) []correspondence {
	inliers := make([]correspondence, 0, len(corrs))
	for _, c := range corrs {
		if model.reprojectionError(c) <= threshold {
			inliers = append(inliers, c)
		}
	}
	return inliers
}
