package playground_test

import (
	"strings"
	"testing"

	"seess/playground"
)

func TestComposePreview(t *testing.T) {
	tests := []struct {
		name  string
		theme playground.Theme
		want  []string
		not   []string
	}{
		{"light", playground.ThemeLight, []string{`<meta name="color-scheme" content="light" />`, "<html>"}, []string{`class="dark"`}},
		{"dark", playground.ThemeDark, []string{`<html class="dark">`, `content="dark"`}, nil},
		{"default", "", []string{`content="light"`}, []string{`class="dark"`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := playground.ComposePreview("p { margin: 0; }", "<p>x</p>", tt.theme)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.HasPrefix(doc, "<!DOCTYPE html>") {
				t.Errorf("document does not start with doctype:\n%s", doc)
			}
			if !strings.Contains(doc, "<style>\n      p { margin: 0; }\n    </style>") {
				t.Errorf("css is misplaced:\n%s", doc)
			}
			if !strings.Contains(doc, "<body>\n    <p>x</p>\n  </body>") {
				t.Errorf("html is misplaced:\n%s", doc)
			}
			for _, w := range tt.want {
				if !strings.Contains(doc, w) {
					t.Errorf("document lacks %q", w)
				}
			}
			for _, n := range tt.not {
				if strings.Contains(doc, n) {
					t.Errorf("document contains %q", n)
				}
			}
		})
	}
}

func TestComposePreview_Verbatim(t *testing.T) {
	tests := []struct {
		name, css, html string
	}{
		{"pre", "", "<pre>line1\n  line2\n</pre>"},
		{"textarea", "", "\n<textarea>\ta\n\tb</textarea>\n\n"},
		{"multiline css string", "p::before { content: \"a\\\n  b\"; }\n", "<p></p>"},
		{"markup in css", "/* </p> & < */", "&amp; <b>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := playground.ComposePreview(tt.css, tt.html, playground.ThemeDark)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(doc, "<style>\n      "+tt.css+"\n    </style>") {
				t.Errorf("css was not inserted verbatim:\n%s", doc)
			}
			if !strings.Contains(doc, "<body>\n    "+tt.html+"\n  </body>") {
				t.Errorf("html was not inserted verbatim:\n%s", doc)
			}
		})
	}
}

func TestParseTheme(t *testing.T) {
	tests := []struct {
		in   string
		want playground.Theme
		err  bool
	}{
		{"", playground.ThemeLight, false},
		{"Dark", playground.ThemeDark, false},
		{"light", playground.ThemeLight, false},
		{"sepia", "", true},
	}
	for _, tt := range tests {
		got, err := playground.ParseTheme(tt.in)
		if (err != nil) != tt.err || got != tt.want {
			t.Errorf("ParseTheme(%q) = %q, %v", tt.in, got, err)
		}
	}
	if playground.ThemeDark.Toggle() != playground.ThemeLight || playground.ThemeLight.Toggle() != playground.ThemeDark {
		t.Error("Toggle() does not switch themes")
	}
}
