package playground

import (
	"fmt"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"
)

// Theme of the display layer.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme validates theme name, empty name means light theme.
func ParseTheme(name string) (Theme, error) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(name))); t {
	case "":
		return ThemeLight, nil
	case ThemeLight, ThemeDark:
		return t, nil
	default:
		return "", fmt.Errorf("unknown theme '%s'", name)
	}
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// Buffers are inserted as is, whitespace included: preview is a sandboxed
// document made of whatever user typed.
const previewSrc = `<!DOCTYPE html>
<html{{ if eq (.Theme | toString) "dark" }} class="dark"{{ end }}>
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <meta name="color-scheme" content="{{ .Theme | toString | default "light" }}" />
    <style>
      {{ .CSS }}
    </style>
  </head>
  <body>
    {{ .HTML }}
  </body>
</html>
`

var previewTmpl = template.Must(template.New("preview").Funcs(sprig.FuncMap()).Parse(previewSrc))

// ComposePreview builds standalone HTML document showing html styled by css.
func ComposePreview(css, html string, theme Theme) (string, error) {
	var sb strings.Builder
	err := previewTmpl.Execute(&sb, struct {
		CSS, HTML string
		Theme     Theme
	}{CSS: css, HTML: html, Theme: theme})
	if err != nil {
		return "", fmt.Errorf("unable to compose preview: %w", err)
	}
	return sb.String(), nil
}
