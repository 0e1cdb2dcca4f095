// Package cache provides content fingerprinting and the TTL caches used by
// the extraction orchestrator and the synthesis service.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/sells-group/uvp-engine/internal/model"
)

// NormalizeContent canonicalizes raw page text so cosmetic differences
// (whitespace runs, case, trailing noise) do not change the fingerprint.
func NormalizeContent(pages []string) string {
	var b strings.Builder
	for _, p := range pages {
		fields := strings.Fields(strings.ToLower(p))
		if len(fields) == 0 {
			continue
		}
		b.WriteString(strings.Join(fields, " "))
		b.WriteByte('\n')
	}
	return b.String()
}

// ExtractionFingerprint computes the stable cache key for an extraction:
// hash of normalized raw content plus the sorted extractor-set id.
func ExtractionFingerprint(content model.SiteContent, extractors []model.ExtractorID) string {
	ids := make([]string, len(extractors))
	for i, e := range extractors {
		ids[i] = string(e)
	}
	sort.Strings(ids)

	h := sha256.New()
	h.Write([]byte(NormalizeContent(content.Pages)))
	h.Write([]byte("|extractors:" + strings.Join(ids, ",")))
	return hex.EncodeToString(h.Sum(nil))
}

// SynthesisFingerprint computes the synthesis-cache key: the extraction
// fingerprint it was derived from plus the synthesis mode.
func SynthesisFingerprint(extractionFP string, mode model.SynthesisMode) string {
	h := sha256.New()
	h.Write([]byte(extractionFP))
	h.Write([]byte("|mode:" + string(mode)))
	return hex.EncodeToString(h.Sum(nil))
}
