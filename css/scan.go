package css

import (
	"strings"
)

// Scan derives structural counts from raw CSS text in a single pass.
//
// This is a cheap estimate, not a conformant parser: comments, string
// literals containing braces or semicolons and at-rule preludes are not
// recognized. Unbalanced input never fails - closing braces below depth zero
// are ignored and an unterminated block simply ends the scan.
//
// Only declarations directly inside a top-level block are counted, rules and
// declarations of nested blocks (for example inside @media) are not
// attributed to anything.
func Scan(input string) Analysis {
	var (
		res      Analysis
		depth    int
		inBlock  bool
		selector strings.Builder
	)

	for _, ch := range input {
		switch {
		case ch == '{':
			if depth == 0 {
				// entering new top-level rule
				inBlock = true
				res.RuleCount++
				res.SelectorCount += countSelectors(selector.String())
				selector.Reset()
			}
			depth++
		case ch == '}':
			if depth > 0 {
				depth--
			}
			if depth == 0 {
				inBlock = false
			}
		case ch == ';' && inBlock && depth == 1:
			res.PropertyCount++
		case !inBlock:
			selector.WriteRune(ch)
		}
	}
	return res
}

// ScanBytes is Scan for file contents.
func ScanBytes(data []byte) Analysis {
	return Scan(string(data))
}

// countSelectors returns number of non-empty comma separated pieces of the
// selector list prelude.
func countSelectors(prelude string) int {
	n := 0
	for s := range strings.SplitSeq(prelude, ",") {
		if strings.TrimSpace(s) != "" {
			n++
		}
	}
	return n
}
