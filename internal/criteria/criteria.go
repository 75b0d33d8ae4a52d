// Package criteria loads the static, versioned term lists and rules consumed by
// the clause assessors. A loaded Criteria value is immutable; reloads replace
// the whole snapshot.
package criteria

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/clausewatch/internal/model"
)

// GeneralRules is the fairness_rules key whose rules apply to every clause type
const GeneralRules = "*"

//go:embed default.yaml
var defaultCriteria []byte

// FairnessRule is one predicate over clause text. It passes when any Require
// phrase is present (or Require is empty) and no Forbid phrase is present.
type FairnessRule struct {
	ID          string   `yaml:"id" json:"id"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Require     []string `yaml:"require,omitempty" json:"require,omitempty"`
	Forbid      []string `yaml:"forbid,omitempty" json:"forbid,omitempty"`
}

// Criteria is one immutable criteria snapshot
type Criteria struct {
	Version          string                    `yaml:"version"`
	RestrictiveTerms []string                  `yaml:"restrictive_terms"`
	PrivacyTerms     []string                  `yaml:"privacy_terms"`
	FairnessRules    map[string][]FairnessRule `yaml:"fairness_rules"`
	RedFlagPatterns  []string                  `yaml:"red_flag_patterns"`

	redFlags []*regexp.Regexp
}

// Default returns the built-in criteria
func Default() *Criteria {
	c, err := Parse(defaultCriteria)
	if err != nil {
		panic(fmt.Sprintf("built-in criteria invalid: %v", err))
	}
	return c
}

// Load reads and validates a criteria file.
// Any problem is returned as a *model.ConfigError.
func Load(path string) (*Criteria, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.ConfigError{Field: "criteria", Reason: "read " + path, Err: err}
	}
	return Parse(data)
}

// Parse decodes and validates criteria YAML
func Parse(data []byte) (*Criteria, error) {
	var c Criteria
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, &model.ConfigError{Field: "criteria", Reason: "parse", Err: err}
	}

	if err := c.validate(); err != nil {
		return nil, err
	}

	c.RestrictiveTerms = cleanTerms(c.RestrictiveTerms)
	c.PrivacyTerms = cleanTerms(c.PrivacyTerms)

	c.redFlags = make([]*regexp.Regexp, 0, len(c.RedFlagPatterns))
	for i, pattern := range c.RedFlagPatterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, &model.ConfigError{
				Field:  fmt.Sprintf("criteria.red_flag_patterns[%d]", i),
				Reason: "invalid pattern",
				Err:    err,
			}
		}
		c.redFlags = append(c.redFlags, re)
	}

	return &c, nil
}

// RedFlags returns the compiled red-flag patterns in configured order
func (c *Criteria) RedFlags() []*regexp.Regexp {
	return c.redFlags
}

// RulesFor returns the general rules followed by the rules specific to clauseType
func (c *Criteria) RulesFor(clauseType string) []FairnessRule {
	general := c.FairnessRules[GeneralRules]
	if clauseType == GeneralRules {
		return general
	}
	specific := c.FairnessRules[clauseType]

	rules := make([]FairnessRule, 0, len(general)+len(specific))
	rules = append(rules, general...)
	return append(rules, specific...)
}

func (c *Criteria) validate() error {
	var errs []error
	for clauseType, rules := range c.FairnessRules {
		for i, rule := range rules {
			field := fmt.Sprintf("criteria.fairness_rules.%s[%d]", clauseType, i)
			if strings.TrimSpace(rule.ID) == "" {
				errs = append(errs, &model.ConfigError{Field: field, Reason: "rule id is required"})
			}
			if len(rule.Require) == 0 && len(rule.Forbid) == 0 {
				errs = append(errs, &model.ConfigError{Field: field, Reason: "rule needs require or forbid phrases"})
			}
			for j, phrase := range rule.Require {
				if strings.TrimSpace(phrase) == "" {
					errs = append(errs, &model.ConfigError{Field: fmt.Sprintf("%s.require[%d]", field, j), Reason: "phrase is blank"})
				}
			}
			for j, phrase := range rule.Forbid {
				if strings.TrimSpace(phrase) == "" {
					errs = append(errs, &model.ConfigError{Field: fmt.Sprintf("%s.forbid[%d]", field, j), Reason: "phrase is blank"})
				}
			}
		}
	}
	return errors.Join(errs...)
}

// cleanTerms trims terms and drops empty and duplicate entries, keeping order
func cleanTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		out = append(out, term)
	}
	return out
}
