package match

import (
	"math"

	"redline/internal/config"
	"redline/internal/entity"
	"redline/internal/textutil"
)

// blockPasses builds the block cascade: metadata name within the same type
// group, normalized text signature, bounds-compatibility scoring, then
// positional fallback.
func blockPasses(cfg config.Matching) []pass {
	return []pass{
		{
			method:   MethodMetadataName,
			key:      func(e *entity.Entity) string { return textutil.NormalizeKey(e.MetadataName) },
			eligible: sameTypeGroup,
		},
		{
			method: MethodTextSignature,
			key:    func(e *entity.Entity) string { return textutil.NormalizeSignature(e.TextSignature) },
		},
		{
			method:   MethodBounds,
			eligible: boundsCompatible(cfg),
			score:    boundsScore,
			minScore: cfg.MinBoundsScore,
		},
		{
			method:   MethodPositional,
			eligible: compatibleType,
		},
	}
}

func sameTypeGroup(l, r *entity.Entity) bool {
	return textutil.NormalizeKey(l.BlockType) == textutil.NormalizeKey(r.BlockType)
}

// compatibleType permits positional pairing unless both sides declare a
// type and the types differ.
func compatibleType(l, r *entity.Entity) bool {
	lt := textutil.NormalizeKey(l.BlockType)
	rt := textutil.NormalizeKey(r.BlockType)
	if lt == "" || rt == "" {
		return true
	}
	return lt == rt
}

// boundsCompatible gates bounds-pass candidates: both sides need bounds,
// the larger area may not exceed the smaller by more than the size ratio
// tolerance, and the aspect ratios must agree within tolerance.
func boundsCompatible(cfg config.Matching) func(l, r *entity.Entity) bool {
	return func(l, r *entity.Entity) bool {
		if l.Bounds == nil || r.Bounds == nil {
			return false
		}
		la, ra := l.Bounds.Area(), r.Bounds.Area()
		if la <= 0 || ra <= 0 {
			return false
		}
		ratio := la / ra
		if ratio < 1 {
			ratio = 1 / ratio
		}
		if ratio > cfg.SizeRatioTolerance {
			return false
		}
		return math.Abs(l.Bounds.AspectRatio()-r.Bounds.AspectRatio()) <= cfg.AspectRatioTolerance
	}
}

// boundsScore rates geometric similarity: overlap carries most of the
// weight, centroid proximity (normalized by the mean diagonal) breaks up
// non-overlapping layouts.
func boundsScore(l, r *entity.Entity) float64 {
	lb, rb := *l.Bounds, *r.Bounds
	overlap := lb.Overlap(rb)
	diag := (math.Hypot(lb.Width, lb.Height) + math.Hypot(rb.Width, rb.Height)) / 2
	proximity := 0.0
	if diag > 0 {
		proximity = 1 / (1 + lb.CenterDistance(rb)/diag)
	}
	return 0.7*overlap + 0.3*proximity
}
