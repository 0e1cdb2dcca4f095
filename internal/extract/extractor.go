// Package extract turns raw website content into typed business facts
// through five specialized extractors and a two-phase orchestrator.
package extract

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/uvp-engine/internal/llm"
	"github.com/sells-group/uvp-engine/internal/model"
)

// Context carries the shared inputs an extractor may use beyond the raw
// content. Phase-2 extractors receive phase-1 results read-only.
type Context struct {
	Business model.Business
	Phase1   map[model.ExtractorID]model.ExtractionResult
}

// Extractor derives one typed category of business fact from raw content.
// Implementations must tolerate empty or irrelevant content by returning a
// zero-confidence result, and must never emit a field they cannot point
// back into the input.
type Extractor interface {
	ID() model.ExtractorID
	Extract(ctx context.Context, content model.SiteContent, ec Context) (model.ExtractionResult, error)
}

const extractorSystemText = `You are a marketing analyst extracting facts about a small business from its website content. Only report facts that appear in the provided content. Every field must include a short verbatim quote from the content that supports it and the index of the page the quote came from. If the content contains no relevant information, return an empty fields list with confidence 0. Return valid JSON only.`

// wireResponse is the JSON shape every extractor asks the model for.
type wireResponse struct {
	Fields []struct {
		Key       string `json:"key"`
		Value     string `json:"value"`
		Quote     string `json:"quote"`
		PageIndex int    `json:"page_index"`
	} `json:"fields"`
	Confidence float64  `json:"confidence"`
	Insights   []string `json:"insights"`
}

// llmExtractor is the common implementation: one prompt template per
// extractor, all running through the low tier.
type llmExtractor struct {
	id          model.ExtractorID
	caller      *llm.Caller
	prompt      func(content string, ec Context) string
	maxContent  int
}

func (e *llmExtractor) ID() model.ExtractorID { return e.id }

func (e *llmExtractor) Extract(ctx context.Context, content model.SiteContent, ec Context) (model.ExtractionResult, error) {
	start := time.Now()
	result := model.ExtractionResult{
		ExtractorID: e.id,
		SubjectID:   ec.Business.ID,
		Timestamp:   start,
	}

	joined := joinPages(content.Pages, e.maxContent)
	if strings.TrimSpace(joined) == "" {
		// Nothing to analyze: zero confidence, no fabrication.
		result.Duration = time.Since(start)
		return result, nil
	}

	resp, err := e.caller.CallWithResilience(ctx, llm.Task{
		Operation:   "extract." + string(e.id),
		System:      extractorSystemText,
		Prompt:      e.prompt(joined, ec),
		MaxTokens:   1024,
		CacheSystem: true,
	}, llm.TierLow)
	if err != nil {
		return result, eris.Wrapf(err, "extract: %s", e.id)
	}

	var wire wireResponse
	if jsonErr := json.Unmarshal([]byte(extractJSON(resp.Text)), &wire); jsonErr != nil {
		return result, eris.Wrapf(jsonErr, "extract: %s: parse response", e.id)
	}

	result.Model = resp.Model
	result.Duration = time.Since(start)
	result.Insights = wire.Insights
	result.Confidence = clamp01(wire.Confidence)

	// Provenance gate: drop any field whose quote cannot be located in the
	// input content. An extractor that invents facts scores zero.
	for _, f := range wire.Fields {
		if f.Key == "" || f.Value == "" || strings.TrimSpace(f.Quote) == "" {
			continue
		}
		idx := locateQuote(content.Pages, f.PageIndex, f.Quote)
		if idx < 0 {
			zap.L().Debug("extract: dropping unattributed field",
				zap.String("extractor", string(e.id)),
				zap.String("key", f.Key),
			)
			continue
		}
		result.Fields = append(result.Fields, model.ExtractionField{
			Key:   f.Key,
			Value: f.Value,
			SourceRefs: []model.SourceRef{
				{PageIndex: idx, Quote: f.Quote},
			},
		})
	}

	if len(result.Fields) == 0 {
		result.Confidence = 0
		result.Insights = nil
	}

	return result, nil
}

// joinPages concatenates page texts with separators, truncating to maxChars.
func joinPages(pages []string, maxChars int) string {
	var b strings.Builder
	for i, p := range pages {
		if b.Len() >= maxChars {
			break
		}
		if i > 0 {
			b.WriteString("\n\n--- Page ")
			b.WriteString(strconv.Itoa(i))
			b.WriteString(" ---\n")
		}
		b.WriteString(p)
	}
	s := b.String()
	if len(s) > maxChars {
		s = s[:maxChars]
	}
	return s
}

// locateQuote finds the page whose normalized text contains the quote.
// The hinted page is checked first. Returns -1 when unattributable.
func locateQuote(pages []string, hint int, quote string) int {
	norm := func(s string) string {
		return strings.Join(strings.Fields(strings.ToLower(s)), " ")
	}
	q := norm(quote)
	if q == "" {
		return -1
	}
	if hint >= 0 && hint < len(pages) && strings.Contains(norm(pages[hint]), q) {
		return hint
	}
	for i, p := range pages {
		if i == hint {
			continue
		}
		if strings.Contains(norm(p), q) {
			return i
		}
	}
	return -1
}

// extractJSON strips markdown fences and surrounding prose from a model
// response, returning the outermost JSON object.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
