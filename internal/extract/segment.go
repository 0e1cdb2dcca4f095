package extract

import (
	"fmt"

	"github.com/sells-group/uvp-engine/internal/llm"
	"github.com/sells-group/uvp-engine/internal/model"
)

const segmentPromptTmpl = `Identify the customer segment this business serves.

Business name: %s
Website content:
%s

Report who the ideal customer is: demographics, role, situation, and any niche the business explicitly targets. Use these field keys where the content supports them: "segment", "demographics", "situation", "niche".

Return a JSON object:
{"fields": [{"key": "...", "value": "...", "quote": "<verbatim supporting quote>", "page_index": <int>}], "confidence": <0.0-1.0>, "insights": ["..."]}`

// NewCustomerSegmentExtractor extracts who the business serves.
func NewCustomerSegmentExtractor(caller *llm.Caller, maxContent int) Extractor {
	return &llmExtractor{
		id:         model.ExtractorCustomerSegment,
		caller:     caller,
		maxContent: maxContent,
		prompt: func(content string, ec Context) string {
			return fmt.Sprintf(segmentPromptTmpl, businessName(ec), content)
		},
	}
}

func businessName(ec Context) string {
	if ec.Business.Name != "" {
		return ec.Business.Name
	}
	return "(unknown)"
}
