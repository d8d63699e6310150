// Package policy classifies documentation files as living (exempt) or
// instance (timestamped) documents and validates instance timestamps.
package policy

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Rules is the exemption rule list. Names are compared case-insensitively
// against the filename stem; prefixes are case-sensitive; globs are
// doublestar patterns matched against the base name.
type Rules struct {
	ExemptNames      []string `yaml:"exempt_names"`
	MasterNames      []string `yaml:"master_names"`
	ExemptPrefixes   []string `yaml:"exempt_prefixes"`
	ExemptGlobs      []string `yaml:"exempt_globs"`
	ConditionalGlobs []string `yaml:"conditional_globs"`
}

// DefaultRules returns the stock exemption list.
func DefaultRules() Rules {
	return Rules{
		ExemptNames: []string{
			"README", "CLAUDE", "CHANGELOG", "LICENSE", "TODO", "BACKLOG",
			"INDEX", "FOLDER-REGISTRY",
		},
		MasterNames: []string{
			"TODO-Master", "Status-Master", "Changelog-Master",
		},
		ExemptPrefixes: []string{
			"Protocol-", "Reference-", "Standards-", "Context-", "LD-",
		},
		ExemptGlobs: []string{
			"*-Template.md",
		},
		ConditionalGlobs: []string{
			"*Developer-Manual*.md",
		},
	}
}

// Validate checks that the rule list is usable.
func (r *Rules) Validate() error {
	validGlobs := validation.By(func(v any) error {
		for _, g := range v.([]string) {
			if !doublestar.ValidatePattern(g) {
				return fmt.Errorf("invalid glob %q", g)
			}
		}
		return nil
	})
	noEmpty := validation.Each(validation.Required)
	return validation.ValidateStruct(r,
		validation.Field(&r.ExemptNames, noEmpty),
		validation.Field(&r.MasterNames, noEmpty),
		validation.Field(&r.ExemptPrefixes, noEmpty),
		validation.Field(&r.ExemptGlobs, noEmpty, validGlobs),
		validation.Field(&r.ConditionalGlobs, noEmpty, validGlobs),
	)
}
