package entity_test

import (
	"math"
	"testing"

	"redline/internal/entity"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want entity.Kind
		ok   bool
	}{
		{"sheet", entity.KindSheet, true},
		{" Block ", entity.KindBlock, true},
		{"SHEET", entity.KindSheet, true},
		{"region", "", false},
		{"", "", false},
	}
	for _, tc := range tests {
		got, ok := entity.ParseKind(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseKind(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestBoundsArea(t *testing.T) {
	if got := (entity.Bounds{Width: 4, Height: 2.5}).Area(); got != 10 {
		t.Fatalf("Area = %f, want 10", got)
	}
	if got := (entity.Bounds{Width: -4, Height: 2}).Area(); got != 0 {
		t.Fatalf("degenerate box area = %f, want 0", got)
	}
}

func TestBoundsAspectRatio(t *testing.T) {
	if got := (entity.Bounds{Width: 8, Height: 4}).AspectRatio(); got != 2 {
		t.Fatalf("AspectRatio = %f, want 2", got)
	}
	if got := (entity.Bounds{Width: 8}).AspectRatio(); got != 0 {
		t.Fatalf("zero-height aspect = %f, want 0", got)
	}
}

func TestBoundsOverlap(t *testing.T) {
	a := entity.Bounds{X: 0, Y: 0, Width: 10, Height: 10}

	if got := a.Overlap(a); math.Abs(got-1) > 1e-9 {
		t.Fatalf("self overlap = %f, want 1", got)
	}
	if got := a.Overlap(entity.Bounds{X: 20, Y: 20, Width: 5, Height: 5}); got != 0 {
		t.Fatalf("disjoint overlap = %f, want 0", got)
	}
	// Half-offset boxes: intersection 50, union 150.
	half := a.Overlap(entity.Bounds{X: 5, Y: 0, Width: 10, Height: 10})
	if math.Abs(half-1.0/3.0) > 1e-9 {
		t.Fatalf("offset overlap = %f, want 1/3", half)
	}
	// Boxes touching at an edge do not overlap.
	if got := a.Overlap(entity.Bounds{X: 10, Y: 0, Width: 10, Height: 10}); got != 0 {
		t.Fatalf("edge-adjacent overlap = %f, want 0", got)
	}
}

func TestBoundsCenterDistance(t *testing.T) {
	a := entity.Bounds{X: 0, Y: 0, Width: 2, Height: 2}
	b := entity.Bounds{X: 3, Y: 4, Width: 2, Height: 2}
	if got := a.CenterDistance(b); math.Abs(got-5) > 1e-9 {
		t.Fatalf("CenterDistance = %f, want 5", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		e       *entity.Entity
		wantErr bool
	}{
		{"valid sheet", &entity.Entity{ID: "s1", Kind: entity.KindSheet}, false},
		{"valid block", &entity.Entity{ID: "b1", Kind: entity.KindBlock, Index: 3}, false},
		{"nil", nil, true},
		{"blank id", &entity.Entity{ID: "  ", Kind: entity.KindSheet}, true},
		{"unknown kind", &entity.Entity{ID: "x", Kind: "region"}, true},
		{"negative index", &entity.Entity{ID: "x", Kind: entity.KindSheet, Index: -1}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.e.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
