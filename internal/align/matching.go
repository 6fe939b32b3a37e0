package align

import "math/bits"

func hammingDistance(a, b descriptor) int {
	total := 0
	for i := range a {
		total += bits.OnesCount8(a[i] ^ b[i])
	}
	return total
}

// matchDescriptors forms candidate correspondences by nearest-descriptor
// search filtered with the distance-ratio test: the best match must beat
// the second best by the configured ratio or the keypoint is ambiguous
// and dropped.
func matchDescriptors(left, right []feature, ratio float64) []correspondence {
	if len(left) == 0 || len(right) == 0 {
		return nil
	}
	corrs := make([]correspondence, 0, len(left))
	for _, lf := range left {
		best := -1
		bestDist := 0
		secondDist := 0
		for ri, rf := range right {
			d := hammingDistance(lf.desc, rf.desc)
			switch {
			case best == -1:
				best = ri
				bestDist = d
				secondDist = d + 1
			case d < bestDist:
				secondDist = bestDist
				best = ri
				bestDist = d
			case d < secondDist:
				secondDist = d
			}
		}
		if best == -1 {
			continue
		}
		if float64(bestDist) >= ratio*float64(secondDist) {
			continue
		}
		corrs = append(corrs, correspondence{left: lf.pt, right: right[best].pt})
	}
	return corrs
}
