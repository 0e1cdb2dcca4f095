package model

// Dimension names one of the five quality metrics.
type Dimension string

const (
	DimensionClarity      Dimension = "clarity"
	DimensionCoherence    Dimension = "coherence"
	DimensionCompleteness Dimension = "completeness"
	DimensionConfidence   Dimension = "confidence"
	DimensionResonance    Dimension = "emotional_resonance"
)

// AllDimensions lists the five scored dimensions in reporting order.
var AllDimensions = []Dimension{
	DimensionClarity,
	DimensionCoherence,
	DimensionCompleteness,
	DimensionConfidence,
	DimensionResonance,
}

// QualityBand buckets an overall score against the configured thresholds.
type QualityBand string

const (
	BandGreen  QualityBand = "green"
	BandYellow QualityBand = "yellow"
	BandRed    QualityBand = "red"
)

// QualityScore holds the five metric scores plus the overall average.
// All values are in [0, 100]. Recomputed deterministically from a
// SynthesisResult's text; never cached apart from its parent.
type QualityScore struct {
	Clarity      float64 `json:"clarity"`
	Coherence    float64 `json:"coherence"`
	Completeness float64 `json:"completeness"`
	Confidence   float64 `json:"confidence"`
	Resonance    float64 `json:"emotional_resonance"`
	Overall      float64 `json:"overall"`
}

// Metric returns the score for the named dimension.
func (q QualityScore) Metric(d Dimension) float64 {
	switch d {
	case DimensionClarity:
		return q.Clarity
	case DimensionCoherence:
		return q.Coherence
	case DimensionCompleteness:
		return q.Completeness
	case DimensionConfidence:
		return q.Confidence
	case DimensionResonance:
		return q.Resonance
	default:
		return 0
	}
}
