// Package align estimates the geometric transform between two rasters of
// a matched entity pair.
//
// The automatic path detects corner keypoints, describes them with binary
// descriptors, forms candidate correspondences through ratio-tested
// nearest-descriptor matching, and fits a constrained similarity transform
// with RANSAC. Confidence is the inlier fraction of the correspondences;
// zero correspondences yield a zero-confidence result with a warning, not
// an error.
//
// The manual path fits the same transform deterministically from exactly
// three non-collinear user points per side, with no random sampling.
package align
