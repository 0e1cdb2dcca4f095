package synthesis

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/uvp-engine/internal/model"
)

var titleCaser = cases.Title(language.AmericanEnglish)

// templateFallback builds a best-effort value proposition by deterministic
// template-filling when every eligible model tier is unavailable. A UVP must
// always produce something displayable once extraction succeeded.
func templateFallback(combined *model.CombinedExtractionResult, name string) (string, []string) {
	segment := firstField(combined, model.ExtractorCustomerSegment, "segment", "niche")
	offering := firstField(combined, model.ExtractorProductService, "offering", "specialty")
	benefit := firstField(combined, model.ExtractorBenefit, "primary_benefit", "secondary_benefit")
	outcome := firstField(combined, model.ExtractorTransformation, "outcome", "after_state")
	differentiator := firstField(combined, model.ExtractorSolution, "differentiator", "approach")

	if name == "" {
		name = "This business"
	} else {
		name = titleCaser.String(name)
	}
	if segment == "" {
		segment = "its customers"
	}
	if offering == "" {
		offering = "its services"
	}

	var primary strings.Builder
	primary.WriteString(name)
	primary.WriteString(" helps ")
	primary.WriteString(segment)
	primary.WriteString(" with ")
	primary.WriteString(offering)
	if benefit != "" {
		primary.WriteString(", delivering ")
		primary.WriteString(benefit)
	}
	primary.WriteString(".")

	var secondary []string
	if outcome != "" {
		secondary = append(secondary, "Customers can expect "+outcome+".")
	}
	if differentiator != "" {
		secondary = append(secondary, "What sets them apart: "+differentiator+".")
	}

	return primary.String(), secondary
}

// firstField returns the first non-empty value among the given keys from
// one extractor's result.
func firstField(combined *model.CombinedExtractionResult, id model.ExtractorID, keys ...string) string {
	r, ok := combined.Get(id)
	if !ok {
		return ""
	}
	for _, k := range keys {
		if v := r.Field(k); v != "" {
			return strings.TrimRight(v, ".")
		}
	}
	return ""
}
