package jobs

import "encoding/json"

// ParentPayload describes what a revision-comparison parent job compares.
type ParentPayload struct {
	Kind          string `json:"kind"`
	LeftRevision  string `json:"left_revision"`
	RightRevision string `json:"right_revision"`
}

// PairPayload is the metadata a child job carries about its matched pair.
// Pairs are transient in the matcher; this record is their only persistence.
type PairPayload struct {
	PairID        string   `json:"pair_id"`
	Kind          string   `json:"kind"`
	LeftID        string   `json:"left_id"`
	RightID       string   `json:"right_id"`
	Method        string   `json:"method"`
	Score         *float64 `json:"score,omitempty"`
	LeftRevision  string   `json:"left_revision"`
	RightRevision string   `json:"right_revision"`
}

// AlignmentOutcome is the result metadata persisted on a completed child.
type AlignmentOutcome struct {
	PairID        string   `json:"pair_id"`
	Scale         float64  `json:"scale"`
	RotationRad   float64  `json:"rotation_rad"`
	TranslateX    float64  `json:"translate_x"`
	TranslateY    float64  `json:"translate_y"`
	MatchCount    int      `json:"match_count"`
	InlierCount   int      `json:"inlier_count"`
	Score         float64  `json:"score"`
	LowConfidence bool     `json:"low_confidence"`
	Manual        bool     `json:"manual,omitempty"`
	Retried       bool     `json:"retried,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

// EncodeJSON marshals any payload struct for storage, returning "" on error
// so callers can treat encoding as infallible for these closed types.
func EncodeJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// DecodePairPayload parses stored pair metadata. Missing or invalid JSON
// yields the zero value.
func DecodePairPayload(data string) PairPayload {
	var payload PairPayload
	_ = json.Unmarshal([]byte(data), &payload)
	return payload
}

// DecodeParentPayload parses stored parent metadata.
func DecodeParentPayload(data string) ParentPayload {
	var payload ParentPayload
	_ = json.Unmarshal([]byte(data), &payload)
	return payload
}

// DecodeFanoutStats parses stored fan-out accounting.
func DecodeFanoutStats(data string) FanoutStats {
	var stats FanoutStats
	_ = json.Unmarshal([]byte(data), &stats)
	return stats
}
