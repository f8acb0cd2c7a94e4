package css

import (
	"bytes"
	"errors"
	"io"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// ParserVersion identifies counting rules of grammar analyzer.
const ParserVersion = "grammar-1.1.0"

// Parser analyzes CSS stylesheets using real CSS tokenizer. Unlike Scan it
// honors comments, strings and escapes.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new CSS parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// Version returns version of counting rules.
func (p *Parser) Version() string {
	return ParserVersion
}

// Analyze returns structural counts for CSS text.
func (p *Parser) Analyze(data []byte) Analysis {
	return p.Parse(data).Analysis
}

// Parse tokenizes CSS text and collects a Report.
// The optional source parameter identifies what's being parsed (for debug logging).
func (p *Parser) Parse(data []byte, source ...string) *Report {
	rpt := &Report{
		AtRules:  make([]string, 0),
		Warnings: make([]string, 0),
	}

	if len(source) > 0 && source[0] != "" {
		p.log.Debug("Parsing CSS", zap.String("source", source[0]), zap.Int("bytes", len(data)))
	}

	parser := css.NewParser(parse.NewInput(bytes.NewReader(data)), false)

	var (
		stack   []frameKind
		pending int // selectors seen before the last comma of the current selector list
	)

	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar:
			// End of input or error
			if err := parser.Err(); err != nil && !errors.Is(err, io.EOF) {
				rpt.Warnings = append(rpt.Warnings, err.Error())
				p.log.Debug("CSS parse error", zap.Error(err))
			}
			if len(stack) > 0 {
				p.log.Debug("Unterminated blocks at end of input", zap.Int("depth", len(stack)))
			}
			return rpt

		case css.AtRuleGrammar:
			// Simple @-rule without block (e.g., @import)
			atRule := strings.ToLower(string(data))
			if len(stack) > 0 {
				continue
			}
			rpt.AtRules = append(rpt.AtRules, atRule)
			if atRule == "@import" {
				if url := extractImportURL(parser.Values()); url != "" {
					rpt.Imports = append(rpt.Imports, url)
					p.log.Debug("Parsed @import", zap.String("url", url))
				}
			}

		case css.BeginAtRuleGrammar:
			atRule := strings.ToLower(string(data))
			kind := frameGroupAtRule
			if declarationAtRules[atRule] {
				kind = frameDeclAtRule
			}
			if len(stack) == 0 {
				rpt.AtRules = append(rpt.AtRules, atRule)
				if kind == frameDeclAtRule {
					rpt.RuleCount++
				} else {
					p.log.Debug("Skipping nested rules of @-rule", zap.String("rule", atRule))
				}
			}
			stack = append(stack, kind)

		case css.QualifiedRuleGrammar:
			// selector followed by comma, the rest of the list comes later
			pending += len(p.parseSelectors(data, parser.Values()))

		case css.BeginRulesetGrammar:
			if len(stack) == 0 {
				rpt.RuleCount++
				rpt.SelectorCount += pending + len(p.parseSelectors(data, parser.Values()))
			}
			pending = 0
			stack = append(stack, frameRuleset)

		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			if len(stack) == 1 && stack[0] != frameGroupAtRule {
				rpt.PropertyCount++
			}

		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
}

// extractImportURL extracts the URL from @import tokens.
// Handles: @import "url"; @import url("url"); @import url(url);
func extractImportURL(tokens []css.Token) string {
	for _, t := range tokens {
		switch t.TokenType {
		case css.StringToken:
			return unquote(string(t.Data))
		case css.URLToken:
			s := string(t.Data)
			s = strings.TrimPrefix(s, "url(")
			s = strings.TrimSuffix(s, ")")
			return unquote(strings.TrimSpace(s))
		}
	}
	return ""
}

// parseSelectors extracts selector strings from token data.
func (p *Parser) parseSelectors(data []byte, values []css.Token) []string {
	var sb strings.Builder
	sb.Write(data)
	for _, v := range values {
		sb.Write(v.Data)
	}

	// Split by comma for grouped selectors
	var selectors []string
	for s := range strings.SplitSeq(sb.String(), ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			selectors = append(selectors, s)
		}
	}
	return selectors
}

// unquote removes surrounding quotes from a string.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return s
	}
	if (s[0] == '"' && s[len(s)-1] == '"') ||
		(s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}
