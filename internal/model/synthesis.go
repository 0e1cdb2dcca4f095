package model

import "time"

// SynthesisMode selects the style of the consolidated statement.
type SynthesisMode string

const (
	SynthesisModeStandard SynthesisMode = "standard"
	SynthesisModeConcise  SynthesisMode = "concise"
	SynthesisModeBold     SynthesisMode = "bold"
)

// SynthesisResult is the consolidated value proposition produced from a
// CombinedExtractionResult. SourceFingerprint must match the fingerprint of
// the extraction it was derived from; it is the cache key and staleness check.
type SynthesisResult struct {
	ID                  string        `json:"id"`
	SubjectID           string        `json:"subject_id"`
	PrimaryStatement    string        `json:"primary_statement"`
	SecondaryStatements []string      `json:"secondary_statements,omitempty"`
	Quality             *QualityScore `json:"quality,omitempty"`
	SourceFingerprint   string        `json:"source_fingerprint"`
	Mode                SynthesisMode `json:"mode"`
	TierUsed            string        `json:"tier_used"`
	Degraded            bool          `json:"degraded"`
	Enhanced            bool          `json:"enhanced"`
	GeneratedAt         time.Time     `json:"generated_at"`
}

// Text returns the full statement text used for scoring: the primary
// statement followed by any secondary statements.
func (s *SynthesisResult) Text() string {
	out := s.PrimaryStatement
	for _, sec := range s.SecondaryStatements {
		out += "\n" + sec
	}
	return out
}
