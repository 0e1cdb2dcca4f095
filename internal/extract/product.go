package extract

import (
	"fmt"

	"github.com/sells-group/uvp-engine/internal/llm"
	"github.com/sells-group/uvp-engine/internal/model"
)

const productPromptTmpl = `Identify what this business sells.

Business name: %s
Website content:
%s

Report the concrete products or services offered, the delivery model (in person, online, subscription, one-off), and pricing signals if stated. Use these field keys where the content supports them: "offering", "delivery_model", "pricing", "specialty".

Return a JSON object:
{"fields": [{"key": "...", "value": "...", "quote": "<verbatim supporting quote>", "page_index": <int>}], "confidence": <0.0-1.0>, "insights": ["..."]}`

// NewProductServiceExtractor extracts what the business offers.
func NewProductServiceExtractor(caller *llm.Caller, maxContent int) Extractor {
	return &llmExtractor{
		id:         model.ExtractorProductService,
		caller:     caller,
		maxContent: maxContent,
		prompt: func(content string, ec Context) string {
			return fmt.Sprintf(productPromptTmpl, businessName(ec), content)
		},
	}
}
