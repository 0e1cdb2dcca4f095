package extract

import (
	"fmt"
	"strings"

	"github.com/sells-group/uvp-engine/internal/llm"
	"github.com/sells-group/uvp-engine/internal/model"
)

const transformationPromptTmpl = `Identify the transformation this business promises: the before/after change in the customer's situation.

Business name: %s
%s
Website content:
%s

Report the customer's starting state, the outcome the business promises, and the timeframe if stated. Use these field keys where the content supports them: "before_state", "after_state", "outcome", "timeframe".

Return a JSON object:
{"fields": [{"key": "...", "value": "...", "quote": "<verbatim supporting quote>", "page_index": <int>}], "confidence": <0.0-1.0>, "insights": ["..."]}`

// NewTransformationExtractor extracts the before/after outcome promise.
// Runs in phase 2 with phase-1 findings as additional context.
func NewTransformationExtractor(caller *llm.Caller, maxContent int) Extractor {
	return &llmExtractor{
		id:         model.ExtractorTransformation,
		caller:     caller,
		maxContent: maxContent,
		prompt: func(content string, ec Context) string {
			return fmt.Sprintf(transformationPromptTmpl, businessName(ec), phase1Findings(ec), content)
		},
	}
}

// phase1Findings renders phase-1 extraction output as a read-only context
// block for phase-2 prompts. Returns "" when phase 1 produced nothing.
func phase1Findings(ec Context) string {
	if len(ec.Phase1) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Prior findings (context only, do not restate as new facts):\n")
	for _, id := range model.AllExtractors {
		r, ok := ec.Phase1[id]
		if !ok || len(r.Fields) == 0 {
			continue
		}
		for _, f := range r.Fields {
			fmt.Fprintf(&b, "- %s.%s: %s\n", id, f.Key, f.Value)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return b.String()
}
