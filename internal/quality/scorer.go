// Package quality scores synthesis results on five deterministic metrics
// and decides which dimensions are weak enough to enhance.
package quality

import (
	"math"
	"strings"
	"unicode"

	"github.com/sells-group/uvp-engine/internal/model"
)

// jargonTerms are buzzwords that hurt clarity. Each occurrence costs points.
var jargonTerms = []string{
	"synergy", "synergies", "leverage", "leveraging", "paradigm",
	"best-in-class", "world-class", "cutting-edge", "state-of-the-art",
	"holistic", "turnkey", "disruptive", "next-generation", "scalable",
	"solutions-oriented", "value-added", "mission-critical", "robust",
}

// resonanceTerms signal benefit-oriented, emotionally engaging language.
var resonanceTerms = []string{
	"you", "your", "save", "saves", "grow", "growth", "peace of mind",
	"trusted", "trust", "guarantee", "guaranteed", "proven", "love",
	"stress-free", "effortless", "confident", "confidence", "finally",
	"imagine", "free", "faster", "easier", "simpler", "worry",
	"transform", "thrive", "delight", "enjoy", "relief", "results",
}

// Scorer computes QualityScores. It is a pure function holder: scoring the
// same inputs twice yields identical scores, and nothing here calls a model.
type Scorer struct {
	GreenThreshold  float64
	YellowThreshold float64
}

// NewScorer creates a Scorer with the given thresholds (green ≥, yellow ≥).
func NewScorer(green, yellow float64) *Scorer {
	if green <= 0 {
		green = 85
	}
	if yellow <= 0 {
		yellow = 70
	}
	return &Scorer{GreenThreshold: green, YellowThreshold: yellow}
}

// Score computes the five quality metrics for a synthesis result. The
// extraction it was derived from supplies the propagated confidence; pass
// nil when unavailable and confidence falls back to a neutral midpoint.
func (s *Scorer) Score(res *model.SynthesisResult, extraction *model.CombinedExtractionResult) model.QualityScore {
	text := res.Text()

	q := model.QualityScore{
		Clarity:      scoreClarity(text),
		Coherence:    scoreCoherence(text),
		Completeness: scoreCompleteness(res, extraction),
		Confidence:   scoreConfidence(res, extraction),
		Resonance:    scoreResonance(text),
	}

	q.Overall = clamp100((q.Clarity + q.Coherence + q.Completeness + q.Confidence + q.Resonance) / 5)
	return q
}

// Band buckets an overall score against the thresholds.
func (s *Scorer) Band(overall float64) model.QualityBand {
	switch {
	case overall >= s.GreenThreshold:
		return model.BandGreen
	case overall >= s.YellowThreshold:
		return model.BandYellow
	default:
		return model.BandRed
	}
}

// scoreClarity penalizes long sentences and jargon density. A crisp UVP
// sits under ~20 words per sentence with no buzzwords.
func scoreClarity(text string) float64 {
	sentences := splitSentences(text)
	words := wordCount(text)
	if words == 0 {
		return 0
	}

	avgLen := float64(words) / float64(max(1, len(sentences)))
	sentencePenalty := 0.0
	if avgLen > 20 {
		sentencePenalty = math.Min(50, (avgLen-20)*2.5)
	}

	lower := strings.ToLower(text)
	jargonCount := 0
	for _, term := range jargonTerms {
		jargonCount += strings.Count(lower, term)
	}
	jargonPenalty := math.Min(40, float64(jargonCount)*10)

	return clamp100(100 - sentencePenalty - jargonPenalty)
}

// scoreCoherence measures topical cohesion: how much adjacent sentences
// share content words. A single-sentence result is trivially coherent but
// not perfect — there is nothing to hang together.
func scoreCoherence(text string) float64 {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return 0
	}
	if len(sentences) == 1 {
		return 80
	}

	var total float64
	for i := 1; i < len(sentences); i++ {
		total += wordOverlap(sentences[i-1], sentences[i])
	}
	avg := total / float64(len(sentences)-1)
	return clamp100(50 + avg*50)
}

// scoreCompleteness checks required coverage: a primary statement of
// substance, supporting secondary statements, and representation of the
// extracted fact categories.
func scoreCompleteness(res *model.SynthesisResult, extraction *model.CombinedExtractionResult) float64 {
	score := 0.0
	if wordCount(res.PrimaryStatement) >= 8 {
		score += 25
	} else if res.PrimaryStatement != "" {
		score += 10
	}
	if len(res.SecondaryStatements) >= 2 {
		score += 25
	} else if len(res.SecondaryStatements) == 1 {
		score += 15
	}

	if extraction == nil || len(extraction.Order) == 0 {
		// No extraction to check coverage against: grant the floor.
		return clamp100(score + 25)
	}

	covered := 0
	for _, id := range extraction.Order {
		if r, ok := extraction.Get(id); ok && len(r.Fields) > 0 {
			covered++
		}
	}
	score += 50 * float64(covered) / float64(len(extraction.Order))
	return clamp100(score)
}

// scoreConfidence propagates aggregate extractor confidence, discounted
// when the synthesis itself degraded to template output.
func scoreConfidence(res *model.SynthesisResult, extraction *model.CombinedExtractionResult) float64 {
	conf := 50.0
	if extraction != nil {
		conf = extraction.Confidence * 100
	}
	if res.Degraded {
		conf -= 15
	}
	return clamp100(conf)
}

// scoreResonance measures the presence and density of benefit-oriented,
// emotionally engaging language.
func scoreResonance(text string) float64 {
	words := wordCount(text)
	if words == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	matches := 0
	for _, term := range resonanceTerms {
		matches += strings.Count(lower, term)
	}
	// Density relative to a ~1 emotional cue per 12 words ideal.
	density := float64(matches) / (float64(words) / 12.0)
	return clamp100(30 + density*70)
}

func splitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	for _, r := range text {
		cur.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if s := strings.TrimSpace(cur.String()); len(strings.Fields(s)) > 1 {
				out = append(out, s)
			}
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); len(strings.Fields(s)) > 1 {
		out = append(out, s)
	}
	return out
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

// wordOverlap returns the fraction of content words shared between two
// sentences, relative to the shorter one.
func wordOverlap(a, b string) float64 {
	setA := contentWords(a)
	setB := contentWords(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	shorter := len(setA)
	if len(setB) < shorter {
		shorter = len(setB)
	}
	shared := 0
	for w := range setA {
		if setB[w] {
			shared++
		}
	}
	return float64(shared) / float64(shorter)
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"of": true, "to": true, "in": true, "for": true, "with": true,
	"is": true, "are": true, "that": true, "this": true, "it": true,
	"on": true, "at": true, "by": true, "be": true, "as": true,
}

func contentWords(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if len(w) > 2 && !stopWords[w] {
			out[w] = true
		}
	}
	return out
}

func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
