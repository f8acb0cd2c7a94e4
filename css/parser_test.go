package css_test

import (
	"slices"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"seess/css"
)

func TestParser_Analyze(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  css.Analysis
	}{
		{"empty", "", css.Analysis{}},
		{"selector list", "a, b { color: red; }", css.Analysis{SelectorCount: 2, RuleCount: 1, PropertyCount: 1}},
		{"three selectors", "h1, h2, h3 { font-weight: bold; }", css.Analysis{SelectorCount: 3, RuleCount: 1, PropertyCount: 1}},
		{"empty rules", "a{}b{}", css.Analysis{SelectorCount: 2, RuleCount: 2}},
		{"comment ignored", "/* a, b */ p { x: y; }", css.Analysis{SelectorCount: 1, RuleCount: 1, PropertyCount: 1}},
		{"string with brace", `a { content: "}"; color: red; }`, css.Analysis{SelectorCount: 1, RuleCount: 1, PropertyCount: 2}},
		{"last declaration without semicolon", "p { margin: 0; color: red }", css.Analysis{SelectorCount: 1, RuleCount: 1, PropertyCount: 2}},
		{"media block skipped", "@media (max-width: 600px) { .container { width: 100%; } } p { a: b }",
			css.Analysis{SelectorCount: 1, RuleCount: 1, PropertyCount: 1}},
		{"font-face", "@font-face { font-family: X; src: url(x.woff); }", css.Analysis{RuleCount: 1, PropertyCount: 2}},
		{"custom properties", ":root { --main: red; color: var(--main); }", css.Analysis{SelectorCount: 1, RuleCount: 1, PropertyCount: 2}},
	}

	p := css.NewParser(zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Analyze([]byte(tt.input)); got != tt.want {
				t.Errorf("Analyze(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParser_AgreesWithScanOnSimpleInput(t *testing.T) {
	input := `body { font-family: system-ui, sans-serif; padding: 20px; }
.container { background: white; border-radius: 8px; }
h1, h2 { color: #333; margin-top: 0; }`

	p := css.NewParser(nil)
	if got, want := p.Analyze([]byte(input)), css.Scan(input); got != want {
		t.Errorf("Analyze() = %+v, Scan() = %+v", got, want)
	}
}

func TestParser_Report(t *testing.T) {
	input := `@import url(a.css);
@import "b.css";
@media print { p { color: black; } }
a { b: c; }`

	rpt := css.NewParser(nil).Parse([]byte(input), "test.css")

	if want := []string{"a.css", "b.css"}; !slices.Equal(rpt.Imports, want) {
		t.Errorf("Imports = %v, want %v", rpt.Imports, want)
	}
	if want := []string{"@import", "@import", "@media"}; !slices.Equal(rpt.AtRules, want) {
		t.Errorf("AtRules = %v, want %v", rpt.AtRules, want)
	}
	if rpt.RuleCount != 1 || rpt.PropertyCount != 1 {
		t.Errorf("Analysis = %+v", rpt.Analysis)
	}
}

func TestParser_Unbalanced(t *testing.T) {
	for _, input := range []string{"a{b{", "}}}", "a { color: red;", "@media x {"} {
		got := css.NewParser(nil).Analyze([]byte(input))
		if got.SelectorCount < 0 || got.RuleCount > 1 || got.PropertyCount > 1 {
			t.Errorf("Analyze(%q) = %+v", input, got)
		}
	}
}

func TestParser_LogsSource(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	p := css.NewParser(zap.New(core))

	p.Parse([]byte("a { b: c; }"), "style.css")

	entries := logs.FilterMessage("Parsing CSS").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if src := entries[0].ContextMap()["source"]; src != "style.css" {
		t.Errorf("source = %v, want style.css", src)
	}
	if entries[0].LoggerName != "css-parser" {
		t.Errorf("logger name = %q, want css-parser", entries[0].LoggerName)
	}
}

func TestParser_Version(t *testing.T) {
	if v := css.NewParser(nil).Version(); v != css.ParserVersion || v == "" {
		t.Errorf("Version() = %q", v)
	}
}
