package extract

import (
	"fmt"

	"github.com/sells-group/uvp-engine/internal/llm"
	"github.com/sells-group/uvp-engine/internal/model"
)

const solutionPromptTmpl = `Identify how this business solves its customers' problem differently from alternatives.

Business name: %s
%s
Website content:
%s

Report the problem being solved, the mechanism or approach, and what the business claims makes it different. Use these field keys where the content supports them: "problem", "approach", "differentiator", "credentials".

Return a JSON object:
{"fields": [{"key": "...", "value": "...", "quote": "<verbatim supporting quote>", "page_index": <int>}], "confidence": <0.0-1.0>, "insights": ["..."]}`

// NewSolutionExtractor extracts the problem/approach/differentiator story.
// Runs in phase 2 with phase-1 findings as additional context.
func NewSolutionExtractor(caller *llm.Caller, maxContent int) Extractor {
	return &llmExtractor{
		id:         model.ExtractorSolution,
		caller:     caller,
		maxContent: maxContent,
		prompt: func(content string, ec Context) string {
			return fmt.Sprintf(solutionPromptTmpl, businessName(ec), phase1Findings(ec), content)
		},
	}
}
