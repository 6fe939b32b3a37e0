package match

import (
	"fmt"

	"redline/internal/config"
	"redline/internal/entity"
	"redline/internal/services"
)

// Pair is a 1:1 association between a left- and right-revision entity.
// Score is nil for equality passes and numeric for scored passes.
type Pair struct {
	LeftID     string
	RightID    string
	LeftIndex  int
	RightIndex int
	Method     Method
	Score      *float64
}

// Result reports pairs plus the leftovers on each side. Matched and
// unmatched together reconstruct the full input set per side.
type Result struct {
	Pairs          []Pair
	UnmatchedLeft  []string
	UnmatchedRight []string
	Warnings       []string
}

// Entities pairs two ordered collections of the same kind using the
// cascade configured for that kind. It never fails on zero matches; it
// fails only on malformed input.
func Entities(left, right []*entity.Entity, kind entity.Kind, cfg config.Matching) (*Result, error) {
	if err := validateInput(left, kind, "left"); err != nil {
		return nil, err
	}
	if err := validateInput(right, kind, "right"); err != nil {
		return nil, err
	}

	a := newArena(left, right)
	var passes []pass
	switch kind {
	case entity.KindSheet:
		passes = sheetPasses(cfg)
	case entity.KindBlock:
		passes = blockPasses(cfg)
	default:
		return nil, services.Wrap(services.ErrValidation, "match", "entities",
			fmt.Sprintf("unsupported kind %q", kind), nil)
	}

	result := &Result{}
	for _, p := range passes {
		result.Pairs = append(result.Pairs, a.run(p)...)
	}
	result.UnmatchedLeft = a.unclaimed(a.left, a.leftClaimed)
	result.UnmatchedRight = a.unclaimed(a.right, a.rightClaimed)

	if len(result.Pairs) == 0 && (len(left) > 0 || len(right) > 0) {
		result.Warnings = append(result.Warnings, "no pairs matched for non-empty input")
	}
	return result, nil
}

func validateInput(items []*entity.Entity, kind entity.Kind, side string) error {
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return services.Wrap(services.ErrValidation, "match", "entities",
				fmt.Sprintf("%s[%d]", side, i), err)
		}
		if item.Kind != kind {
			return services.Wrap(services.ErrValidation, "match", "entities",
				fmt.Sprintf("%s[%d]: kind %q does not match requested %q", side, i, item.Kind, kind), nil)
		}
	}
	return nil
}

// pass is one strategy in the cascade. Equality passes set key and leave
// score nil; scored passes set score and a minimum. eligible guards both.
type pass struct {
	method Method
	// key returns the equality key, or "" when the entity cannot
	// participate in this pass.
	key func(*entity.Entity) string
	// eligible gates a candidate pairing; nil means always eligible.
	eligible func(l, r *entity.Entity) bool
	// score rates a candidate pairing; nil marks an equality pass.
	score    func(l, r *entity.Entity) float64
	minScore float64
}

type arena struct {
	left         []*entity.Entity
	right        []*entity.Entity
	leftClaimed  []bool
	rightClaimed []bool
}

func newArena(left, right []*entity.Entity) *arena {
	return &arena{
		left:         left,
		right:        right,
		leftClaimed:  make([]bool, len(left)),
		rightClaimed: make([]bool, len(right)),
	}
}

func (a *arena) run(p pass) []Pair {
	if p.score != nil {
		return a.runScored(p)
	}
	return a.runEquality(p)
}

// runEquality claims the first eligible right candidate with an equal
// non-empty key for each unclaimed left entity, in original order. Keys
// shared by multiple entities on either side identify nothing and are
// skipped; ambiguity is judged over the full input, not the leftovers,
// so a generic title never pairs just because its twins were claimed
// earlier in the cascade.
func (a *arena) runEquality(p pass) []Pair {
	var pairs []Pair
	leftKeys := keyCounts(a.left, p.key)
	rightKeys := keyCounts(a.right, p.key)
	for li, l := range a.left {
		if a.leftClaimed[li] {
			continue
		}
		key := ""
		if p.key != nil {
			key = p.key(l)
		}
		if p.key != nil && key == "" {
			continue
		}
		if leftKeys[key] > 1 || rightKeys[key] > 1 {
			continue
		}
		for ri, r := range a.right {
			if a.rightClaimed[ri] {
				continue
			}
			if p.key != nil && p.key(r) != key {
				continue
			}
			if p.eligible != nil && !p.eligible(l, r) {
				continue
			}
			a.leftClaimed[li] = true
			a.rightClaimed[ri] = true
			pairs = append(pairs, Pair{
				LeftID:     l.ID,
				RightID:    r.ID,
				LeftIndex:  li,
				RightIndex: ri,
				Method:     p.method,
			})
			break
		}
	}
	return pairs
}

// runScored evaluates every eligible right candidate per unclaimed left
// entity and claims the maximum score; ties break to the earliest right
// index. Claims apply before the next left candidate is considered.
func (a *arena) runScored(p pass) []Pair {
	var pairs []Pair
	for li, l := range a.left {
		if a.leftClaimed[li] {
			continue
		}
		best := -1
		bestScore := 0.0
		for ri, r := range a.right {
			if a.rightClaimed[ri] {
				continue
			}
			if p.eligible != nil && !p.eligible(l, r) {
				continue
			}
			score := p.score(l, r)
			if score < p.minScore {
				continue
			}
			if best == -1 || score > bestScore {
				best = ri
				bestScore = score
			}
		}
		if best == -1 {
			continue
		}
		a.leftClaimed[li] = true
		a.rightClaimed[best] = true
		score := bestScore
		pairs = append(pairs, Pair{
			LeftID:     l.ID,
			RightID:    a.right[best].ID,
			LeftIndex:  li,
			RightIndex: best,
			Method:     p.method,
			Score:      &score,
		})
	}
	return pairs
}

func keyCounts(items []*entity.Entity, key func(*entity.Entity) string) map[string]int {
	if key == nil {
		return nil
	}
	counts := make(map[string]int, len(items))
	for _, item := range items {
		if k := key(item); k != "" {
			counts[k]++
		}
	}
	return counts
}

func (a *arena) unclaimed(items []*entity.Entity, claimed []bool) []string {
	var out []string
	for i, item := range items {
		if !claimed[i] {
			out = append(out, item.ID)
		}
	}
	return out
}
