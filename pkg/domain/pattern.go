package domain

import (
	"regexp"
	"strings"
)

// NLPMatchType selects what an NLP pattern constrains.
type NLPMatchType string

const (
	// NLPMatchEntity requires the entity to be present, any value.
	NLPMatchEntity NLPMatchType = "entity"
	// NLPMatchValue requires the entity to carry a specific value.
	NLPMatchValue NLPMatchType = "value"
)

// NLPPattern is a single entity constraint. Patterns in the same group are
// conjunctive: every constraint must be satisfied by the event annotations.
type NLPPattern struct {
	Entity string       `json:"entity" yaml:"entity" mapstructure:"entity"`
	Match  NLPMatchType `json:"match" yaml:"match" mapstructure:"match"`
	Value  string       `json:"value,omitempty" yaml:"value,omitempty" mapstructure:"value"`
}

// PayloadPattern matches postback/quick-reply payloads by exact value or,
// for location/attachment payloads, by payload type.
type PayloadPattern struct {
	Label string      `json:"label" yaml:"label" mapstructure:"label"`
	Value string      `json:"value,omitempty" yaml:"value,omitempty" mapstructure:"value"`
	Type  PayloadType `json:"type,omitempty" yaml:"type,omitempty" mapstructure:"type"`
}

// Pattern is one trigger alternative of a block. Exactly one of the variant
// fields is set. A block matches when any of its patterns matches.
type Pattern struct {
	// Text is a plain string (case-insensitive equality) or a "/…/" regexp.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	// Payload matches postback payloads.
	Payload *PayloadPattern `json:"payload,omitempty" yaml:"payload,omitempty"`

	// NLP is a conjunctive group of entity constraints.
	NLP []NLPPattern `json:"nlp,omitempty" yaml:"nlp,omitempty"`
}

// IsRegex reports whether the text pattern uses the "/…/" regexp form.
func (p Pattern) IsRegex() bool {
	return len(p.Text) > 2 && strings.HasPrefix(p.Text, "/") && strings.HasSuffix(p.Text, "/")
}

// Compile returns the case-insensitive regexp for a "/…/" text pattern.
func (p Pattern) Compile() (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + strings.TrimSuffix(strings.TrimPrefix(p.Text, "/"), "/"))
}
