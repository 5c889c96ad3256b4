// Package prompts holds the completion prompt templates for each
// suggestion kind, with placeholder interpolation and optional per-kind
// overrides loaded from a YAML file.
package prompts

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind identifies a prompt template.
type Kind string

const (
	// KindHarms generates harm candidates from an observation.
	KindHarms Kind = "harms"
	// KindCriteria generates criterion candidates from a harm and its
	// originating observation.
	KindCriteria Kind = "criteria"
	// KindStrategies generates how-might-we candidates from a criterion
	// and its harm.
	KindStrategies Kind = "strategies"
	// KindInsightTitle generates a short title for an observation once its
	// first harm has a criterion.
	KindInsightTitle Kind = "insight_title"
	// KindCoaching reviews an in-progress observation draft.
	KindCoaching Kind = "coaching"
)

// Kinds lists every known prompt kind.
var Kinds = []Kind{KindHarms, KindCriteria, KindStrategies, KindInsightTitle, KindCoaching}

// CoachingOKSentinel is the response meaning "no issue found"; callers map
// it to no feedback shown.
const CoachingOKSentinel = "OK"

// SystemMessage frames every suggestion request.
const SystemMessage = "You are a design research coach helping synthesize field observations into harms, design criteria, and how-might-we strategies. Answer with plain text lines only, no preamble."

var defaults = map[Kind]string{
	KindHarms: `A design researcher recorded this observation during a field study:

"{{observation}}"

List 5 distinct harms or negative consequences this observation suggests for the people involved. One harm per line. No numbering, no commentary.`,

	KindCriteria: `Observation from a field study:
"{{observation}}"

A harm derived from it:
"{{harm}}"

List 5 design criteria addressing this harm, each phrased as "The solution should ...". One per line. No numbering, no commentary.`,

	KindStrategies: `A harm identified in a field study:
"{{harm}}"

A design criterion addressing it:
"{{criterion}}"

List 5 strategies satisfying this criterion, each phrased as "HMW ..." (How Might We). One per line. No numbering, no commentary.`,

	KindInsightTitle: `Observation: "{{observation}}"
Harm: "{{harm}}"
Criterion: "{{criterion}}"

Write a short title (at most 6 words) capturing the insight connecting these. Respond with the title only.`,

	KindCoaching: `A design researcher is writing a field observation:

"{{text}}"

If the observation is specific, concrete, and free of premature interpretation, respond with exactly "` + CoachingOKSentinel + `". Otherwise respond with one short, gentle suggestion for improving it.`,
}

var placeholderRE = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Registry resolves prompt templates per kind. Construct with NewRegistry;
// it is an explicit dependency of the suggestion service, not ambient
// module state.
type Registry struct {
	templates map[Kind]string
}

// NewRegistry returns a registry holding the compiled default templates.
func NewRegistry() *Registry {
	t := make(map[Kind]string, len(defaults))
	for k, v := range defaults {
		t[k] = v
	}
	return &Registry{templates: t}
}

// NewRegistryFromFile returns a registry with defaults merged under any
// per-kind overrides found in the YAML file at path. An empty path yields
// the defaults.
func NewRegistryFromFile(path string) (*Registry, error) {
	r := NewRegistry()
	if path == "" {
		return r, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt overrides: %w", err)
	}

	overrides := make(map[Kind]string)
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse prompt overrides: %w", err)
	}

	for k, v := range overrides {
		if _, known := r.templates[k]; !known {
			return nil, fmt.Errorf("unknown prompt kind %q in overrides", k)
		}
		if strings.TrimSpace(v) != "" {
			r.templates[k] = v
		}
	}
	return r, nil
}

// Template returns the raw template for a kind.
func (r *Registry) Template(kind Kind) (string, bool) {
	t, ok := r.templates[kind]
	return t, ok
}

// Fill interpolates context values into the template for kind. Every
// {{placeholder}} in the template must have a value in ctx.
func (r *Registry) Fill(kind Kind, ctx map[string]string) (string, error) {
	tmpl, ok := r.templates[kind]
	if !ok {
		return "", fmt.Errorf("no template for kind %q", kind)
	}

	var missing []string
	out := placeholderRE.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := placeholderRE.FindStringSubmatch(m)[1]
		v, ok := ctx[name]
		if !ok {
			missing = append(missing, name)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("missing context values for %s: %s", kind, strings.Join(missing, ", "))
	}
	return out, nil
}
