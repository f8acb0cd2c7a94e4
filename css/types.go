package css

import (
	"fmt"
)

// Analysis holds structural statistics of a stylesheet.
type Analysis struct {
	SelectorCount int `json:"selector_count" yaml:"selector_count"` // comma separated members of top-level selector lists
	RuleCount     int `json:"rule_count" yaml:"rule_count"`         // top-level blocks
	PropertyCount int `json:"property_count" yaml:"property_count"` // declarations directly inside top-level blocks
}

// IsZero returns true if nothing was counted.
func (a Analysis) IsZero() bool {
	return a == Analysis{}
}

func (a Analysis) String() string {
	return fmt.Sprintf("selectors=%d rules=%d properties=%d", a.SelectorCount, a.RuleCount, a.PropertyCount)
}

// Report is the result of grammar based analysis. In addition to counts it
// keeps things the structural scanner cannot see.
type Report struct {
	Analysis
	AtRules  []string // names of top-level @-rules in source order (e.g. "@media")
	Imports  []string // @import URLs in source order
	Warnings []string // problems found while tokenizing
}

// frameKind describes what kind of block parser is in.
type frameKind int

const (
	frameRuleset    frameKind = iota // selector list { declarations }
	frameDeclAtRule                  // @font-face, @page - block of declarations
	frameGroupAtRule                 // @media, @supports... - nested rules, not counted
)

// declarationAtRules are @-rules which body is a plain declaration list.
var declarationAtRules = map[string]bool{
	"@font-face":           true,
	"@page":                true,
	"@counter-style":       true,
	"@property":            true,
	"@font-palette-values": true,
	"@viewport":            true,
}
