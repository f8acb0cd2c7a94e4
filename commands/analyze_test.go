package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"seess/analysis"
	"seess/css"
)

func TestAnalyzeFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.css")
	if err := os.WriteFile(good, []byte("h1, h2 { color: red; margin: 0; }"), 0644); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(dir, "missing.css")

	an, err := analysis.Local().Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	err = analyzeFiles(context.Background(), statsRenderer(an), []string{missing, good}, &out, zap.NewNop())
	if err == nil {
		t.Error("missing file did not produce error")
	}
	want := good + "\tselectors=2 rules=1 properties=2\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestAnalyzeReader(t *testing.T) {
	an, err := analysis.NewCapability(analysis.Grammar(nil), nil).Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := analyzeReader(context.Background(), statsRenderer(an), strings.NewReader("a { b: c }"), &out); err != nil {
		t.Fatal(err)
	}
	if out.String() != "selectors=1 rules=1 properties=1\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestAnalyzeDetails(t *testing.T) {
	render := outlineRenderer(css.NewParser(zap.NewNop()))

	var out bytes.Buffer
	if err := analyzeReader(context.Background(), render, strings.NewReader("@media print { a { b: c } }"), &out); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	if !strings.HasPrefix(got, "<stdin>\n") {
		t.Errorf("output does not start with stdin name: %q", got)
	}
	if !strings.Contains(got, "  at-rules:\n    @media\n") {
		t.Errorf("output misses at-rules: %q", got)
	}

	dir := t.TempDir()
	file := filepath.Join(dir, "x.css")
	if err := os.WriteFile(file, []byte("a {}"), 0644); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	if err := analyzeFiles(context.Background(), render, []string{file}, &out, zap.NewNop()); err != nil {
		t.Fatal(err)
	}
	if want := file + "\n  selectors: 1\n  rules: 1\n  properties: 0\n"; out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}
