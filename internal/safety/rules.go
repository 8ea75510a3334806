// Package safety implements the content-safety gate that screens user input
// before any model or brokerage call is made: literal rule matching, an
// optional embedding-based semantic stage, a hard-block pattern scanner, and
// the policy thresholds that combine them into an allow/flag/block decision.
package safety

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// CategoryRules holds the literal substring rules for one safety category.
// Categories are evaluated in declaration order.
type CategoryRules struct {
	Name               string   `yaml:"name"`
	BlockedPatterns    []string `yaml:"blocked_patterns"`
	DiscussionPatterns []string `yaml:"discussion_patterns"`
}

// Rules is the full filter configuration, loaded once at process start.
type Rules struct {
	ContextThreshold float64 `yaml:"context_threshold"`
	IntentThreshold  float64 `yaml:"intent_threshold"`

	Performance struct {
		MaxTextLength int `yaml:"max_text_length"`
	} `yaml:"performance"`

	SafetyCategories  []CategoryRules `yaml:"safety_categories"`
	HarmfulIntents    []string        `yaml:"harmful_intents"`
	LegitimateTopics  []string        `yaml:"legitimate_topics"`
	RestrictedOutputs []string        `yaml:"restricted_outputs"`
}

// LoadRules parses the embedded default rule set, or the YAML file at path
// when one is configured.
func LoadRules(path string) (*Rules, error) {
	data := defaultRulesYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read safety rules: %w", err)
		}
		data = b
	}

	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse safety rules: %w", err)
	}

	if rules.ContextThreshold == 0 {
		rules.ContextThreshold = 0.85
	}
	if rules.IntentThreshold == 0 {
		rules.IntentThreshold = 0.70
	}
	if rules.Performance.MaxTextLength == 0 {
		rules.Performance.MaxTextLength = 10000
	}

	return &rules, nil
}
