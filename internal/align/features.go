package align

import (
	"image"
	"image/draw"
	"math/rand"
	"sort"
)

// fastThreshold is the minimum intensity delta for a circle pixel to count
// as brighter or darker than the candidate corner.
const fastThreshold = 20

// fastArc is the number of contiguous circle pixels required by the
// segment test.
const fastArc = 12

// patchRadius bounds the descriptor sampling pattern around a keypoint.
const patchRadius = 15

// featureMargin keeps keypoints far enough from the border for both the
// detector circle and the descriptor patch.
const featureMargin = patchRadius + 3

// circleOffsets is the 16-pixel Bresenham circle of radius 3 used by the
// segment test, in clockwise order.
var circleOffsets = [16][2]int{
	{0, -3}, {1, -3}, {2, -2}, {3, -1},
	{3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 3}, {-3, 2},
	{-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

// descriptor is a 256-bit binary intensity-comparison signature.
type descriptor [32]byte

// briefPattern is the fixed point-pair sampling pattern shared by every
// descriptor. A fixed seed keeps descriptors comparable across processes.
var briefPattern = func() [256][4]int {
	rng := rand.New(rand.NewSource(42))
	var pattern [256][4]int
	for i := range pattern {
		pattern[i] = [4]int{
			rng.Intn(2*patchRadius+1) - patchRadius,
			rng.Intn(2*patchRadius+1) - patchRadius,
			rng.Intn(2*patchRadius+1) - patchRadius,
			rng.Intn(2*patchRadius+1) - patchRadius,
		}
	}
	return pattern
}()

type keypoint struct {
	pt    Point
	score int
}

type feature struct {
	pt   Point
	desc descriptor
}

func toGray(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok {
		return gray
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, img, bounds.Min, draw.Src)
	return gray
}

// detectFeatures finds up to budget corner keypoints and describes each
// with a binary descriptor.
func detectFeatures(img image.Image, budget int) []feature {
	gray := toGray(img)
	keypoints := detectCorners(gray, budget)
	features := make([]feature, 0, len(keypoints))
	for _, kp := range keypoints {
		features = append(features, feature{pt: kp.pt, desc: describe(gray, kp.pt)})
	}
	return features
}

// detectCorners runs the segment test over the interior, suppresses
// non-maxima per grid cell, and keeps the strongest keypoints.
func detectCorners(gray *image.Gray, budget int) []keypoint {
	bounds := gray.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= 2*featureMargin || height <= 2*featureMargin {
		return nil
	}

	const cell = 8
	cols := (width + cell - 1) / cell
	rows := (height + cell - 1) / cell
	grid := make([]keypoint, cols*rows)

	for y := bounds.Min.Y + featureMargin; y < bounds.Max.Y-featureMargin; y++ {
		for x := bounds.Min.X + featureMargin; x < bounds.Max.X-featureMargin; x++ {
			score := cornerScore(gray, x, y)
			if score == 0 {
				continue
			}
			idx := ((y-bounds.Min.Y)/cell)*cols + (x-bounds.Min.X)/cell
			if score > grid[idx].score {
				grid[idx] = keypoint{pt: Point{X: float64(x), Y: float64(y)}, score: score}
			}
		}
	}

	keypoints := make([]keypoint, 0, len(grid))
	for _, kp := range grid {
		if kp.score > 0 {
			keypoints = append(keypoints, kp)
		}
	}
	sort.Slice(keypoints, func(i, j int) bool {
		if keypoints[i].score != keypoints[j].score {
			return keypoints[i].score > keypoints[j].score
		}
		if keypoints[i].pt.Y != keypoints[j].pt.Y {
			return keypoints[i].pt.Y < keypoints[j].pt.Y
		}
		return keypoints[i].pt.X < keypoints[j].pt.X
	})
	if budget > 0 && len(keypoints) > budget {
		keypoints = keypoints[:budget]
	}
	return keypoints
}

// cornerScore runs the contiguous-arc segment test at (x, y) and returns
// the summed absolute intensity delta of the qualifying circle pixels, or
// 0 when the test fails.
func cornerScore(gray *image.Gray, x, y int) int {
	center := int(gray.GrayAt(x, y).Y)

	// states: +1 brighter, -1 darker, 0 neither. Doubled walk handles
	// arcs wrapping around the circle start.
	var states [16]int
	var deltas [16]int
	for i, off := range circleOffsets {
		v := int(gray.GrayAt(x+off[0], y+off[1]).Y)
		switch {
		case v >= center+fastThreshold:
			states[i] = 1
		case v <= center-fastThreshold:
			states[i] = -1
		}
		deltas[i] = abs(v - center)
	}

	bestSum := 0
	run := 0
	runSum := 0
	prev := 0
	for i := 0; i < 32; i++ {
		state := states[i%16]
		if state != 0 && state == prev {
			run++
			runSum += deltas[i%16]
		} else {
			run = 1
			runSum = deltas[i%16]
			prev = state
		}
		if state != 0 && run >= fastArc && runSum > bestSum {
			bestSum = runSum
		}
		if run > 16 {
			break
		}
	}
	return bestSum
}

// describe samples smoothed intensity comparisons around the keypoint.
func describe(gray *image.Gray, pt Point) descriptor {
	var desc descriptor
	x := int(pt.X)
	y := int(pt.Y)
	for i, pair := range briefPattern {
		a := smoothedAt(gray, x+pair[0], y+pair[1])
		b := smoothedAt(gray, x+pair[2], y+pair[3])
		if a < b {
			desc[i/8] |= 1 << uint(i%8)
		}
	}
	return desc
}

// smoothedAt averages a 3x3 neighborhood to damp pixel noise before the
// binary comparison.
func smoothedAt(gray *image.Gray, x, y int) int {
	bounds := gray.Bounds()
	sum := 0
	count := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			px, py := x+dx, y+dy
			if px < bounds.Min.X || px >= bounds.Max.X || py < bounds.Min.Y || py >= bounds.Max.Y {
				continue
			}
			sum += int(gray.GrayAt(px, py).Y)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / count
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
