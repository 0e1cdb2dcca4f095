// Package synthesis consolidates extractor output into a single coherent
// value proposition through the high-capability tier.
package synthesis

import (
	"fmt"
	"strings"

	"github.com/sells-group/uvp-engine/internal/model"
)

const synthesisSystemText = `You are a senior brand strategist writing a unique value proposition for a small business. Work only from the extracted facts provided. Facts marked (tentative) have weak support in the source material: you may use them, but do not build the core claim on them. Return valid JSON only.`

const synthesisPromptTmpl = `Write a unique value proposition from these extracted business facts.

Mode: %s
%s
Extracted facts:
%s

Produce one primary statement (a single sentence naming who the business serves, what it delivers, and why it is different) and two to four secondary statements expanding on benefits and proof.

Return a JSON object:
{"primary_statement": "...", "secondary_statements": ["...", "..."]}`

var modeGuidance = map[model.SynthesisMode]string{
	model.SynthesisModeStandard: "Guidance: balanced, professional tone.",
	model.SynthesisModeConcise:  "Guidance: primary statement under 20 words, secondary statements under 15 words each.",
	model.SynthesisModeBold:     "Guidance: confident, high-contrast claims; lead with the transformation.",
}

// BuildPrompt aggregates all extractor payloads into one consolidated
// prompt, weighted by confidence: low-confidence fields are included but
// flagged tentative so the model treats them accordingly.
func BuildPrompt(combined *model.CombinedExtractionResult, mode model.SynthesisMode, tentativeBelow float64) string {
	var facts strings.Builder
	for _, id := range combined.Order {
		r := combined.Results[id]
		if r.Failed() || len(r.Fields) == 0 {
			continue
		}
		fmt.Fprintf(&facts, "[%s] (confidence %.2f)\n", id, r.Confidence)
		for _, f := range r.Fields {
			flag := ""
			if r.Confidence < tentativeBelow {
				flag = " (tentative)"
			}
			fmt.Fprintf(&facts, "- %s: %s%s\n", f.Key, f.Value, flag)
		}
		for _, ins := range r.Insights {
			fmt.Fprintf(&facts, "- insight: %s\n", ins)
		}
	}

	guidance := modeGuidance[mode]
	if guidance == "" {
		guidance = modeGuidance[model.SynthesisModeStandard]
	}

	return fmt.Sprintf(synthesisPromptTmpl, mode, guidance, facts.String())
}
