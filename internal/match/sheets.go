package match

import (
	"math"

	"redline/internal/config"
	"redline/internal/entity"
	"redline/internal/textutil"
)

// sheetPasses builds the sheet cascade: normalized sheet number, normalized
// title, same-discipline ordering proximity, then positional fallback. The
// optional fuzzy title pass is appended when enabled.
func sheetPasses(cfg config.Matching) []pass {
	passes := []pass{
		{
			method: MethodSheetNumber,
			key:    func(e *entity.Entity) string { return textutil.NormalizeKey(e.SheetNumber) },
		},
		{
			method: MethodTitle,
			key:    func(e *entity.Entity) string { return textutil.NormalizeTitle(e.Title) },
		},
		{
			method:   MethodDiscipline,
			eligible: sameDiscipline,
			score:    orderingProximity,
		},
		{
			method:   MethodPositional,
			eligible: positionalSheetEligible,
		},
	}
	if cfg.FuzzyTitles {
		passes = append(passes, pass{
			method:   MethodFuzzyTitle,
			eligible: func(l, r *entity.Entity) bool { return l.Title != "" && r.Title != "" },
			score: func(l, r *entity.Entity) float64 {
				return textutil.CosineSimilarity(textutil.NewFingerprint(l.Title), textutil.NewFingerprint(r.Title))
			},
			minScore: cfg.MinFuzzyScore,
		})
		// Positional stays last even with the fuzzy pass enabled.
		last := len(passes) - 1
		passes[last-1], passes[last] = passes[last], passes[last-1]
	}
	return passes
}

func sameDiscipline(l, r *entity.Entity) bool {
	ld := textutil.NormalizeKey(l.Discipline)
	rd := textutil.NormalizeKey(r.Discipline)
	return ld != "" && ld == rd
}

// compatibleDiscipline permits positional pairing unless both sides declare
// a discipline and the disciplines differ.
func compatibleDiscipline(l, r *entity.Entity) bool {
	ld := textutil.NormalizeKey(l.Discipline)
	rd := textutil.NormalizeKey(r.Discipline)
	if ld == "" || rd == "" {
		return true
	}
	return ld == rd
}

// positionalSheetEligible blocks positional fallback when either the
// disciplines or the declared sheet numbers contradict the pairing. Two
// sheets carrying different explicit numbers are different sheets no
// matter where they sit in the ordering.
func positionalSheetEligible(l, r *entity.Entity) bool {
	if !compatibleDiscipline(l, r) {
		return false
	}
	ln := textutil.NormalizeKey(l.SheetNumber)
	rn := textutil.NormalizeKey(r.SheetNumber)
	if ln == "" || rn == "" {
		return true
	}
	return ln == rn
}

// orderingProximity scores candidates by closeness in original ordering,
// mapping an index delta of 0 to 1.0 and decaying toward 0.
func orderingProximity(l, r *entity.Entity) float64 {
	delta := math.Abs(float64(l.Index - r.Index))
	return 1 / (1 + delta)
}
