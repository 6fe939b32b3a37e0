// Package entity defines the drawing entities compared across revisions:
// sheets and the blocks detected within them.
package entity

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Kind discriminates the two comparable entity families.
type Kind string

const (
	KindSheet Kind = "sheet"
	KindBlock Kind = "block"
)

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindSheet:
		return KindSheet, true
	case KindBlock:
		return KindBlock, true
	default:
		return "", false
	}
}

// Bounds is an axis-aligned box in sheet coordinates.
type Bounds struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns the box area, never negative.
func (b Bounds) Area() float64 {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// AspectRatio returns width/height, or 0 for a degenerate box.
func (b Bounds) AspectRatio() float64 {
	if b.Height <= 0 {
		return 0
	}
	return b.Width / b.Height
}

// CenterDistance returns the Euclidean distance between box centroids.
func (b Bounds) CenterDistance(other Bounds) float64 {
	dx := (b.X + b.Width/2) - (other.X + other.Width/2)
	dy := (b.Y + b.Height/2) - (other.Y + other.Height/2)
	return math.Hypot(dx, dy)
}

// Overlap returns intersection-over-union between the two boxes in [0,1].
func (b Bounds) Overlap(other Bounds) float64 {
	left := math.Max(b.X, other.X)
	top := math.Max(b.Y, other.Y)
	right := math.Min(b.X+b.Width, other.X+other.Width)
	bottom := math.Min(b.Y+b.Height, other.Y+other.Height)
	if right <= left || bottom <= top {
		return 0
	}
	inter := (right - left) * (bottom - top)
	union := b.Area() + other.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Entity is one comparable record from a revision: a sheet, or a block
// within a sheet. Sheet and block identifier fields are optional; the
// matcher degrades to positional heuristics when they are absent.
type Entity struct {
	ID         string `json:"id"`
	RevisionID string `json:"revision_id"`
	Kind       Kind   `json:"kind"`
	Index      int    `json:"index"`

	// Sheet identifiers.
	SheetNumber string `json:"sheet_number,omitempty"`
	Title       string `json:"title,omitempty"`
	Discipline  string `json:"discipline,omitempty"`

	// Block identifiers.
	BlockType     string  `json:"block_type,omitempty"`
	Bounds        *Bounds `json:"bounds,omitempty"`
	TextSignature string  `json:"text_signature,omitempty"`
	MetadataName  string  `json:"metadata_name,omitempty"`
}

// Validate reports malformed records. Matching tolerates missing optional
// identifiers but not missing IDs or unknown kinds.
func (e *Entity) Validate() error {
	if e == nil {
		return errors.New("entity is nil")
	}
	if strings.TrimSpace(e.ID) == "" {
		return errors.New("entity id is required")
	}
	switch e.Kind {
	case KindSheet, KindBlock:
	default:
		return fmt.Errorf("entity %s: unknown kind %q", e.ID, e.Kind)
	}
	if e.Index < 0 {
		return fmt.Errorf("entity %s: negative index %d", e.ID, e.Index)
	}
	return nil
}
