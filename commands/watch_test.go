package commands

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"seess/playground"
)

type fileEvent struct {
	path string
	buf  playground.Buffer
}

func TestFileWatcher(t *testing.T) {
	dir := t.TempDir()
	cssPath := filepath.Join(dir, "style.css")
	htmlPath := filepath.Join(dir, "index.html")
	for _, p := range []string{cssPath, htmlPath} {
		if err := os.WriteFile(p, nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	events := make(chan fileEvent, 64)
	fw, err := newFileWatcher(
		map[string]playground.Buffer{cssPath: playground.BufferCSS, htmlPath: playground.BufferHTML},
		func(path string, buf playground.Buffer) { events <- fileEvent{path, buf} },
		zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer fw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fw.run(ctx) }()

	// unrelated file in the same directory is ignored
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(htmlPath, []byte("<p>x</p>"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-events:
		if ev.path != htmlPath || ev.buf != playground.BufferHTML {
			t.Errorf("event = %+v, want html file", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change delivered")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run() did not stop")
	}
}

func TestWritePreview(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.html")
	if err := writePreview(dst, "p {}", "<p>x</p>", playground.ThemeLight); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "<p>x</p>") {
		t.Errorf("unexpected preview:\n%s", data)
	}
	if _, err := os.Stat(dst + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}
