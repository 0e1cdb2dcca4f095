package model

import "time"

// ExtractorID identifies one of the five specialized extractors.
type ExtractorID string

const (
	ExtractorCustomerSegment ExtractorID = "customer_segment"
	ExtractorProductService  ExtractorID = "product_service"
	ExtractorBenefit         ExtractorID = "benefit"
	ExtractorTransformation  ExtractorID = "transformation"
	ExtractorSolution        ExtractorID = "solution"
)

// AllExtractors lists every extractor in phase order: phase 1 first
// (mutually independent), then phase 2 (fed by phase-1 output).
var AllExtractors = []ExtractorID{
	ExtractorCustomerSegment,
	ExtractorProductService,
	ExtractorBenefit,
	ExtractorTransformation,
	ExtractorSolution,
}

// ExtractionRequest identifies a subject, the raw content to analyze, and
// which extractors to run. Immutable once issued.
type ExtractionRequest struct {
	SubjectID  string        `json:"subject_id"`
	Content    SiteContent   `json:"content"`
	Extractors []ExtractorID `json:"extractors"`
}

// SourceRef points a produced field back to the location in the raw content
// it was derived from. A field without a SourceRef is a fabrication and must
// not be emitted by an extractor.
type SourceRef struct {
	PageIndex int    `json:"page_index"`
	Quote     string `json:"quote"`
}

// ExtractionField is a single typed fact with its provenance.
type ExtractionField struct {
	Key        string      `json:"key"`
	Value      string      `json:"value"`
	SourceRefs []SourceRef `json:"source_refs"`
}

// ExtractionResult is the output of a single extractor invocation. Produced
// once and never mutated; a re-extraction supersedes it with a new result.
type ExtractionResult struct {
	ExtractorID ExtractorID       `json:"extractor_id"`
	SubjectID   string            `json:"subject_id"`
	Fields      []ExtractionField `json:"fields"`
	Confidence  float64           `json:"confidence"`
	Insights    []string          `json:"insights,omitempty"`
	Model       string            `json:"model,omitempty"`
	Duration    time.Duration     `json:"duration_ms"`
	Timestamp   time.Time         `json:"timestamp"`
	Err         string            `json:"error,omitempty"`
}

// Failed reports whether the extractor invocation failed outright (as
// opposed to succeeding with zero confidence on irrelevant content).
func (r *ExtractionResult) Failed() bool {
	return r.Err != ""
}

// Field returns the value for key, or "" if absent.
func (r *ExtractionResult) Field(key string) string {
	for _, f := range r.Fields {
		if f.Key == key {
			return f.Value
		}
	}
	return ""
}

// CombinedExtractionResult aggregates all extractor results for one subject.
// Invariant: every member shares the same SubjectID.
type CombinedExtractionResult struct {
	SubjectID    string                           `json:"subject_id"`
	BusinessName string                           `json:"business_name,omitempty"`
	Fingerprint  string                           `json:"fingerprint"`
	Results      map[ExtractorID]ExtractionResult `json:"results"`
	// Order preserves extractor ordering for deterministic prompt assembly.
	Order      []ExtractorID `json:"order"`
	Confidence float64       `json:"confidence"`
	Degraded   bool          `json:"degraded"`
	// FromCache marks a combined result served from the extraction cache.
	FromCache bool      `json:"from_cache,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Get returns the result for the given extractor, if present.
func (c *CombinedExtractionResult) Get(id ExtractorID) (ExtractionResult, bool) {
	r, ok := c.Results[id]
	return r, ok
}
