package align

import "math"

// Point is a position in image pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Transform is a similarity transform mapping the left image frame onto
// the right: rotate by Rotation, scale by Scale, then translate.
type Transform struct {
	Scale      float64 `json:"scale"`
	Rotation   float64 `json:"rotation_rad"`
	TranslateX float64 `json:"translate_x"`
	TranslateY float64 `json:"translate_y"`
}

// Identity returns the no-op transform.
func Identity() Transform {
	return Transform{Scale: 1}
}

// Apply maps a point through the transform.
func (t Transform) Apply(p Point) Point {
	cos := math.Cos(t.Rotation) * t.Scale
	sin := math.Sin(t.Rotation) * t.Scale
	return Point{
		X: cos*p.X - sin*p.Y + t.TranslateX,
		Y: sin*p.X + cos*p.Y + t.TranslateY,
	}
}

// reprojectionError is the distance between the mapped left point and its
// right correspondence.
func (t Transform) reprojectionError(c correspondence) float64 {
	mapped := t.Apply(c.left)
	return math.Hypot(mapped.X-c.right.X, mapped.Y-c.right.Y)
}

// correspondence is one candidate keypoint association between the images.
type correspondence struct {
	left  Point
	right Point
}

// fitSimilarity computes the least-squares similarity transform over the
// given correspondences using the complex-number formulation: minimize
// sum |t*a + u - b|^2 for t = scale*e^(i*rotation). Requires at least two
// correspondences with distinct left points; returns false otherwise.
func fitSimilarity(corrs []correspondence) (Transform, bool) {
	n := float64(len(corrs))
	if len(corrs) < 2 {
		return Transform{}, false
	}

	var sumA, sumB complex128
	for _, c := range corrs {
		sumA += complex(c.left.X, c.left.Y)
		sumB += complex(c.right.X, c.right.Y)
	}
	meanA := sumA / complex(n, 0)
	meanB := sumB / complex(n, 0)

	var num, den complex128
	for _, c := range corrs {
		a := complex(c.left.X, c.left.Y) - meanA
		b := complex(c.right.X, c.right.Y) - meanB
		num += b * cmplxConj(a)
		den += a * cmplxConj(a)
	}
	if real(den) == 0 && imag(den) == 0 {
		return Transform{}, false
	}
	t := num / den
	u := meanB - t*meanA

	scale := math.Hypot(real(t), imag(t))
	if scale == 0 {
		return Transform{}, false
	}
	return Transform{
		Scale:      scale,
		Rotation:   math.Atan2(imag(t), real(t)),
		TranslateX: real(u),
		TranslateY: imag(u),
	}, true
}

func cmplxConj(v complex128) complex128 {
	return complex(real(v), -imag(v))
}

// collinear reports whether three points lie (nearly) on one line. The
// tolerance scales with the triangle's extent so large coordinates do not
// defeat the check.
func collinear(p1, p2, p3 Point) bool {
	cross := (p2.X-p1.X)*(p3.Y-p1.Y) - (p2.Y-p1.Y)*(p3.X-p1.X)
	extent := math.Max(math.Hypot(p2.X-p1.X, p2.Y-p1.Y), math.Hypot(p3.X-p1.X, p3.Y-p1.Y))
	if extent == 0 {
		return true
	}
	return math.Abs(cross)/(extent*extent) < 1e-3
}
