package match

// Method names the strategy pass that produced a pair. The set is fixed;
// fan-out prioritization ranks methods by fidelity.
type Method string

const (
	MethodSheetNumber   Method = "sheetNumber"
	MethodTitle         Method = "title"
	MethodDiscipline    Method = "discipline"
	MethodMetadataName  Method = "metadataName"
	MethodTextSignature Method = "textSignature"
	MethodBounds        Method = "bounds"
	MethodFuzzyTitle    Method = "fuzzyTitle"
	MethodPositional    Method = "positional"
)

// methodRank orders methods from highest fidelity (exact identifiers) to
// lowest (positional fallback). Lower rank wins capacity truncation.
var methodRank = map[Method]int{
	MethodSheetNumber:   0,
	MethodMetadataName:  0,
	MethodTitle:         1,
	MethodTextSignature: 1,
	MethodDiscipline:    2,
	MethodBounds:        2,
	MethodFuzzyTitle:    3,
	MethodPositional:    4,
}

// Rank returns the truncation priority of a method; unknown methods sort last.
func (m Method) Rank() int {
	if rank, ok := methodRank[m]; ok {
		return rank
	}
	return len(methodRank)
}

// Exact reports whether the method pairs on exact identifier equality.
func (m Method) Exact() bool {
	switch m {
	case MethodSheetNumber, MethodTitle, MethodMetadataName, MethodTextSignature:
		return true
	default:
		return false
	}
}
