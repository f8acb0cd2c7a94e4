package css

import (
	"fmt"
	"strconv"
	"strings"
)

// treeWriter renders indented outline, two spaces per level.
type treeWriter struct {
	sb strings.Builder
}

func (tw *treeWriter) line(depth int, format string, args ...any) {
	tw.sb.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(&tw.sb, format, args...)
	tw.sb.WriteByte('\n')
}

// text writes labeled value quoted, so whitespace and control characters
// remain visible.
func (tw *treeWriter) text(depth int, label, value string) {
	if value != "" {
		value = strconv.Quote(value)
	}
	tw.line(depth, "%s: %s", label, value)
}

// Outline renders report as indented tree under name.
func (r *Report) Outline(name string) string {
	var tw treeWriter
	tw.line(0, "%s", name)
	tw.line(1, "selectors: %d", r.SelectorCount)
	tw.line(1, "rules: %d", r.RuleCount)
	tw.line(1, "properties: %d", r.PropertyCount)
	if len(r.AtRules) > 0 {
		tw.line(1, "at-rules:")
		for _, rule := range r.AtRules {
			tw.line(2, "%s", rule)
		}
	}
	if len(r.Imports) > 0 {
		tw.line(1, "imports:")
		for _, url := range r.Imports {
			tw.text(2, "url", url)
		}
	}
	for _, w := range r.Warnings {
		tw.text(1, "warning", w)
	}
	return tw.sb.String()
}
