package extract

import (
	"fmt"

	"github.com/sells-group/uvp-engine/internal/llm"
	"github.com/sells-group/uvp-engine/internal/model"
)

const benefitPromptTmpl = `Identify the benefits this business promises its customers.

Business name: %s
Website content:
%s

Report tangible and emotional benefits the business claims: time saved, money saved, peace of mind, status, guarantees. Use these field keys where the content supports them: "primary_benefit", "secondary_benefit", "guarantee", "proof".

Return a JSON object:
{"fields": [{"key": "...", "value": "...", "quote": "<verbatim supporting quote>", "page_index": <int>}], "confidence": <0.0-1.0>, "insights": ["..."]}`

// NewBenefitExtractor extracts the promised customer benefits.
func NewBenefitExtractor(caller *llm.Caller, maxContent int) Extractor {
	return &llmExtractor{
		id:         model.ExtractorBenefit,
		caller:     caller,
		maxContent: maxContent,
		prompt: func(content string, ec Context) string {
			return fmt.Sprintf(benefitPromptTmpl, businessName(ec), content)
		},
	}
}
