package match_test

import (
	"errors"
	"testing"

	"redline/internal/config"
	"redline/internal/entity"
	"redline/internal/match"
	"redline/internal/services"
)

func sheet(id string, index int, number, title string) *entity.Entity {
	return &entity.Entity{
		ID:          id,
		RevisionID:  "rev",
		Kind:        entity.KindSheet,
		Index:       index,
		SheetNumber: number,
		Title:       title,
	}
}

func block(id string, index int, blockType string, bounds *entity.Bounds) *entity.Entity {
	return &entity.Entity{
		ID:         id,
		RevisionID: "rev",
		Kind:       entity.KindBlock,
		Index:      index,
		BlockType:  blockType,
		Bounds:     bounds,
	}
}

func pairByLeft(t *testing.T, result *match.Result, leftID string) match.Pair {
	t.Helper()
	for _, p := range result.Pairs {
		if p.LeftID == leftID {
			return p
		}
	}
	t.Fatalf("no pair with left id %q in %+v", leftID, result.Pairs)
	return match.Pair{}
}

func TestSheetNumberNormalization(t *testing.T) {
	left := []*entity.Entity{sheet("l1", 0, "A-101", "Floor Plan")}
	right := []*entity.Entity{sheet("r1", 0, "A101", "Level One Plan")}

	result, err := match.Entities(left, right, entity.KindSheet, config.Default().Matching)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(result.Pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(result.Pairs))
	}
	p := result.Pairs[0]
	if p.Method != match.MethodSheetNumber {
		t.Fatalf("expected sheetNumber pass, got %q", p.Method)
	}
	if p.LeftID != "l1" || p.RightID != "r1" {
		t.Fatalf("unexpected pairing %q -> %q", p.LeftID, p.RightID)
	}
	if p.Score != nil {
		t.Fatalf("equality pass should carry no score, got %v", *p.Score)
	}
}

func TestRevisionCompareExample(t *testing.T) {
	left := []*entity.Entity{
		sheet("l1", 0, "A-101", "Plan"),
		sheet("l2", 1, "A-102", "Plan"),
	}
	right := []*entity.Entity{
		sheet("r1", 0, "A101", "Plan"),
		sheet("r2", 1, "A-103", "Plan"),
	}

	result, err := match.Entities(left, right, entity.KindSheet, config.Default().Matching)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(result.Pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d: %+v", len(result.Pairs), result.Pairs)
	}

	numbered := pairByLeft(t, result, "l1")
	if numbered.RightID != "r1" || numbered.Method != match.MethodSheetNumber {
		t.Fatalf("expected l1 -> r1 via sheetNumber, got %+v", numbered)
	}
	// "Plan" appears on both left sheets and both right sheets, so the
	// title pass cannot identify anything with it; the differing sheet
	// numbers block the positional fallback.
	if len(result.UnmatchedLeft) != 1 || result.UnmatchedLeft[0] != "l2" {
		t.Fatalf("expected l2 unmatched, got %v", result.UnmatchedLeft)
	}
	if len(result.UnmatchedRight) != 1 || result.UnmatchedRight[0] != "r2" {
		t.Fatalf("expected r2 unmatched, got %v", result.UnmatchedRight)
	}
}

func TestUnmatchedLeftovers(t *testing.T) {
	left := []*entity.Entity{
		sheet("l1", 0, "A-101", "Site Plan"),
		sheet("l2", 1, "A-102", "Roof Plan"),
	}
	right := []*entity.Entity{
		sheet("r1", 0, "A101", "Site Plan"),
		sheet("r2", 1, "S-201", "Footing Detail"),
		sheet("r3", 2, "S-202", "Column Schedule"),
	}

	result, err := match.Entities(left, right, entity.KindSheet, config.Default().Matching)
	if err != nil {
		t.Fatalf("match: %v", err)
	}

	claimed := map[string]bool{}
	for _, p := range result.Pairs {
		if claimed["l:"+p.LeftID] || claimed["r:"+p.RightID] {
			t.Fatalf("entity claimed twice: %+v", p)
		}
		claimed["l:"+p.LeftID] = true
		claimed["r:"+p.RightID] = true
	}
	for _, id := range result.UnmatchedLeft {
		if claimed["l:"+id] {
			t.Fatalf("left %q both matched and unmatched", id)
		}
		claimed["l:"+id] = true
	}
	for _, id := range result.UnmatchedRight {
		if claimed["r:"+id] {
			t.Fatalf("right %q both matched and unmatched", id)
		}
		claimed["r:"+id] = true
	}
	if got := len(result.Pairs)*2 + len(result.UnmatchedLeft) + len(result.UnmatchedRight); got != len(left)+len(right) {
		t.Fatalf("matched and unmatched do not reconstruct the inputs: covered %d of %d", got, len(left)+len(right))
	}
}

func TestPositionalFallback(t *testing.T) {
	// No identifiers at all: only the positional pass can claim.
	left := []*entity.Entity{sheet("l1", 0, "", ""), sheet("l2", 1, "", "")}
	right := []*entity.Entity{sheet("r1", 0, "", ""), sheet("r2", 1, "", "")}

	result, err := match.Entities(left, right, entity.KindSheet, config.Default().Matching)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(result.Pairs) != 2 {
		t.Fatalf("expected 2 positional pairs, got %d", len(result.Pairs))
	}
	for _, p := range result.Pairs {
		if p.Method != match.MethodPositional {
			t.Fatalf("expected positional pass, got %q", p.Method)
		}
	}
	if pairByLeft(t, result, "l1").RightID != "r1" {
		t.Fatalf("positional pass should pair in original order")
	}
}

func TestDisciplineBlocksPositionalPair(t *testing.T) {
	left := []*entity.Entity{func() *entity.Entity {
		e := sheet("l1", 0, "", "")
		e.Discipline = "architectural"
		return e
	}()}
	right := []*entity.Entity{func() *entity.Entity {
		e := sheet("r1", 0, "", "")
		e.Discipline = "structural"
		return e
	}()}

	result, err := match.Entities(left, right, entity.KindSheet, config.Default().Matching)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(result.Pairs) != 0 {
		t.Fatalf("differing disciplines must not pair positionally, got %+v", result.Pairs)
	}
	if len(result.Warnings) == 0 {
		t.Fatalf("expected zero-pair warning for non-empty input")
	}
}

func TestFuzzyTitlePass(t *testing.T) {
	cfg := config.Default().Matching
	cfg.FuzzyTitles = true

	left := []*entity.Entity{func() *entity.Entity {
		e := sheet("l1", 0, "", "Second Floor Framing Plan")
		e.Discipline = "structural"
		return e
	}()}
	right := []*entity.Entity{func() *entity.Entity {
		e := sheet("r1", 3, "", "Second Floor Framing")
		e.Discipline = "architectural"
		return e
	}()}

	result, err := match.Entities(left, right, entity.KindSheet, cfg)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(result.Pairs) != 1 {
		t.Fatalf("expected 1 fuzzy pair, got %d", len(result.Pairs))
	}
	p := result.Pairs[0]
	if p.Method != match.MethodFuzzyTitle {
		t.Fatalf("expected fuzzyTitle pass, got %q", p.Method)
	}
	if p.Score == nil || *p.Score < cfg.MinFuzzyScore {
		t.Fatalf("fuzzy pair must carry a score above the minimum, got %v", p.Score)
	}
}

func TestFuzzyTitleDisabledByDefault(t *testing.T) {
	left := []*entity.Entity{func() *entity.Entity {
		e := sheet("l1", 0, "", "Second Floor Framing Plan")
		e.Discipline = "structural"
		return e
	}()}
	right := []*entity.Entity{func() *entity.Entity {
		e := sheet("r1", 3, "", "Second Floor Framing")
		e.Discipline = "architectural"
		return e
	}()}

	result, err := match.Entities(left, right, entity.KindSheet, config.Default().Matching)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(result.Pairs) != 0 {
		t.Fatalf("fuzzy pass is off by default, got %+v", result.Pairs)
	}
}

func TestBlockTypeMismatchUnpaired(t *testing.T) {
	left := []*entity.Entity{block("l1", 0, "titleblock", nil)}
	right := []*entity.Entity{block("r1", 0, "stamp", nil)}

	result, err := match.Entities(left, right, entity.KindBlock, config.Default().Matching)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(result.Pairs) != 0 {
		t.Fatalf("differing block types must not pair, got %+v", result.Pairs)
	}
	if len(result.UnmatchedLeft) != 1 || len(result.UnmatchedRight) != 1 {
		t.Fatalf("expected both blocks unmatched, got left=%v right=%v", result.UnmatchedLeft, result.UnmatchedRight)
	}
}

func TestBlockBoundsPass(t *testing.T) {
	left := []*entity.Entity{
		block("l1", 0, "", &entity.Bounds{X: 10, Y: 10, Width: 100, Height: 50}),
		block("l2", 1, "", &entity.Bounds{X: 500, Y: 400, Width: 40, Height: 40}),
	}
	right := []*entity.Entity{
		block("r1", 0, "", &entity.Bounds{X: 12, Y: 11, Width: 98, Height: 52}),
		block("r2", 1, "", &entity.Bounds{X: 505, Y: 398, Width: 42, Height: 38}),
	}

	result, err := match.Entities(left, right, entity.KindBlock, config.Default().Matching)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(result.Pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d: %+v", len(result.Pairs), result.Pairs)
	}
	p := pairByLeft(t, result, "l1")
	if p.RightID != "r1" || p.Method != match.MethodBounds {
		t.Fatalf("expected l1 -> r1 via bounds, got %+v", p)
	}
	if p.Score == nil || *p.Score <= 0 {
		t.Fatalf("bounds pair must carry a positive score, got %v", p.Score)
	}
}

func TestBlockBoundsSizeGate(t *testing.T) {
	// The right block is 9x the area of the left: outside the default
	// size ratio tolerance, so only the positional pass may claim it.
	left := []*entity.Entity{block("l1", 0, "", &entity.Bounds{X: 0, Y: 0, Width: 10, Height: 10})}
	right := []*entity.Entity{block("r1", 0, "", &entity.Bounds{X: 0, Y: 0, Width: 30, Height: 30})}

	result, err := match.Entities(left, right, entity.KindBlock, config.Default().Matching)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(result.Pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(result.Pairs))
	}
	if result.Pairs[0].Method != match.MethodPositional {
		t.Fatalf("oversized candidate must fall through to positional, got %q", result.Pairs[0].Method)
	}
}

func TestMetadataNameRequiresSameType(t *testing.T) {
	left := []*entity.Entity{func() *entity.Entity {
		e := block("l1", 0, "titleblock", nil)
		e.MetadataName = "TB-MAIN"
		return e
	}()}
	right := []*entity.Entity{func() *entity.Entity {
		e := block("r1", 0, "stamp", nil)
		e.MetadataName = "TB-MAIN"
		return e
	}()}

	result, err := match.Entities(left, right, entity.KindBlock, config.Default().Matching)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(result.Pairs) != 0 {
		t.Fatalf("metadata names across differing types must not pair, got %+v", result.Pairs)
	}
}

func TestScoredTieBreaksToEarliestIndex(t *testing.T) {
	mid := func(id string, index int) *entity.Entity {
		e := sheet(id, index, "", "")
		e.Discipline = "architectural"
		return e
	}
	// Both right candidates sit at the same ordering distance from the
	// left entity; the earlier right index wins.
	left := []*entity.Entity{mid("l1", 1)}
	right := []*entity.Entity{mid("r1", 0), mid("r2", 2)}

	result, err := match.Entities(left, right, entity.KindSheet, config.Default().Matching)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(result.Pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(result.Pairs))
	}
	p := result.Pairs[0]
	if p.Method != match.MethodDiscipline || p.RightID != "r1" {
		t.Fatalf("expected discipline tie to break to r1, got %+v", p)
	}
}

func TestEmptyInputs(t *testing.T) {
	result, err := match.Entities(nil, nil, entity.KindSheet, config.Default().Matching)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(result.Pairs) != 0 || len(result.Warnings) != 0 {
		t.Fatalf("empty inputs should produce neither pairs nor warnings: %+v", result)
	}
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		left []*entity.Entity
		kind entity.Kind
	}{
		{
			name: "missing id",
			left: []*entity.Entity{{Kind: entity.KindSheet}},
			kind: entity.KindSheet,
		},
		{
			name: "wrong kind",
			left: []*entity.Entity{block("b1", 0, "", nil)},
			kind: entity.KindSheet,
		},
		{
			name: "negative index",
			left: []*entity.Entity{sheet("l1", -1, "A-101", "")},
			kind: entity.KindSheet,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := match.Entities(tc.left, nil, tc.kind, config.Default().Matching)
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
