package campaign

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/uvp-engine/internal/model"
)

// IndustryProfile is the per-industry customization overlay: emotional
// trigger weights, vocabulary substitutions, and compliance exclusions.
// This is domain data, loaded from configuration, not hard-coded logic.
type IndustryProfile struct {
	Name           string                            `yaml:"name"`
	TriggerWeights map[model.EmotionalTrigger]float64 `yaml:"trigger_weights"`
	Vocabulary     map[string]string                 `yaml:"vocabulary"`
	BannedTerms    []string                          `yaml:"banned_terms"`
}

// IndustrySet holds all loaded profiles keyed by industry name.
type IndustrySet struct {
	profiles map[string]IndustryProfile
}

// LoadIndustries reads industry profiles from a YAML file. A missing file
// is not an error: customization simply becomes a no-op.
func LoadIndustries(path string) (*IndustrySet, error) {
	set := &IndustrySet{profiles: make(map[string]IndustryProfile)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			zap.L().Info("campaign: no industry data file, customization disabled",
				zap.String("path", path),
			)
			return set, nil
		}
		return nil, eris.Wrapf(err, "campaign: read industry data %s", path)
	}

	var file struct {
		Industries []IndustryProfile `yaml:"industries"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "campaign: parse industry data")
	}
	for _, p := range file.Industries {
		set.profiles[strings.ToLower(p.Name)] = p
	}
	return set, nil
}

// Profile returns the profile for an industry, matching case-insensitively
// on name or substring. Returns a zero profile when unknown.
func (s *IndustrySet) Profile(industry string) (IndustryProfile, bool) {
	lower := strings.ToLower(industry)
	if p, ok := s.profiles[lower]; ok {
		return p, true
	}
	for name, p := range s.profiles {
		if name != "" && strings.Contains(lower, name) {
			return p, true
		}
	}
	return IndustryProfile{}, false
}

// Weight returns the industry's weight for a trigger, defaulting to 1.
func (p IndustryProfile) Weight(t model.EmotionalTrigger) float64 {
	if w, ok := p.TriggerWeights[t]; ok && w >= 0 {
		return w
	}
	return 1
}

// ApplyVocabulary rewrites generic terms into the industry's preferred
// vocabulary.
func (p IndustryProfile) ApplyVocabulary(text string) string {
	for from, to := range p.Vocabulary {
		text = replaceInsensitive(text, from, to)
	}
	return text
}

// FilterBannedTerms removes compliance-excluded terms from the text.
// Violations are filtered, not just flagged.
func (p IndustryProfile) FilterBannedTerms(text string) (string, []string) {
	var removed []string
	for _, term := range p.BannedTerms {
		if containsInsensitive(text, term) {
			removed = append(removed, term)
			text = replaceInsensitive(text, term, "")
		}
	}
	// Collapse whitespace damage from removals.
	if len(removed) > 0 {
		text = strings.Join(strings.Fields(text), " ")
	}
	return text, removed
}

func containsInsensitive(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// replaceInsensitive replaces every case-insensitive occurrence of old
// with new.
func replaceInsensitive(s, old, new string) string {
	if old == "" {
		return s
	}
	lower := strings.ToLower(s)
	oldLower := strings.ToLower(old)
	var b strings.Builder
	for {
		i := strings.Index(lower, oldLower)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		b.WriteString(new)
		s = s[i+len(old):]
		lower = lower[i+len(oldLower):]
	}
}
