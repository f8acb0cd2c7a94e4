package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rupor-github/gencfg"
)

// isolate keeps template expansion away from real home directory.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfiguration_NoFile(t *testing.T) {
	home := isolate(t)

	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() with empty path error = %v", err)
	}
	if cfg.Version != 1 {
		t.Errorf("Default config version = %d, want 1", cfg.Version)
	}

	pg := cfg.Playground
	if pg.Project != "default" || pg.DebounceMs != 200 || pg.HistoryLimit != 100 {
		t.Errorf("Playground defaults = %+v", pg)
	}
	if pg.Analyzer != "scanner" || pg.Theme != "light" {
		t.Errorf("Playground defaults = %+v", pg)
	}
	if pg.Debounce() != 200*time.Millisecond {
		t.Errorf("Debounce() = %v", pg.Debounce())
	}
	if cfg.Storage.PollInterval() != 500*time.Millisecond {
		t.Errorf("PollInterval() = %v", cfg.Storage.PollInterval())
	}
	if want := filepath.Join(home, ".seess", "slots.db"); cfg.Storage.Path != want {
		t.Errorf("Storage.Path = %q, want %q", cfg.Storage.Path, want)
	}
	if cfg.Logging.ConsoleLogger.Level != "normal" || cfg.Logging.FileLogger.Level != "none" {
		t.Errorf("Logging defaults = %+v", cfg.Logging)
	}
}

func TestLoadConfiguration_WithFile(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	path := writeConfig(t, `version: 1
playground:
  project: My Page
  debounce_ms: 50
  history_limit: 10
  analyzer: grammar
  theme: dark
storage:
  path: `+filepath.Join(dir, "db", "slots.db")+`
  poll_interval_ms: 20
logging:
  console:
    level: debug
  file:
    level: debug
    destination: `+filepath.Join(dir, "seess.log")+`
    mode: append
`)

	cfg, err := LoadConfiguration(path)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	pg := cfg.Playground
	if pg.Project != "My Page" || pg.DebounceMs != 50 || pg.HistoryLimit != 10 || pg.Analyzer != "grammar" || pg.Theme != "dark" {
		t.Errorf("Playground = %+v", pg)
	}
	if cfg.Storage.PollInterval() != 20*time.Millisecond {
		t.Errorf("PollInterval() = %v", cfg.Storage.PollInterval())
	}
	// storage directory is created by sanitizer
	if _, err := os.Stat(filepath.Join(dir, "db")); err != nil {
		t.Errorf("storage directory was not created: %v", err)
	}
	if cfg.Logging.FileLogger.Mode != "append" {
		t.Errorf("FileLogger.Mode = %q", cfg.Logging.FileLogger.Mode)
	}
}

func TestLoadConfiguration_MergeWithDefaults(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `version: 1
playground:
  theme: dark
`)

	cfg, err := LoadConfiguration(path)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if cfg.Playground.Theme != "dark" {
		t.Errorf("Theme = %q, want dark", cfg.Playground.Theme)
	}
	// values not present in file come from template
	if cfg.Playground.DebounceMs != 200 || cfg.Playground.Analyzer != "scanner" {
		t.Errorf("Playground = %+v, defaults lost", cfg.Playground)
	}
}

func TestLoadConfiguration_Errors(t *testing.T) {
	isolate(t)

	tests := []struct {
		name    string
		content string
	}{
		{"invalid yaml", "version: 1\nplayground:\n  theme: dark\n  invalid indent\n"},
		{"unknown field", "version: 1\nunknown_field: value\n"},
		{"bad version", "version: 2\n"},
		{"debounce out of range", "version: 1\nplayground:\n  debounce_ms: 20000\n"},
		{"negative debounce", "version: 1\nplayground:\n  debounce_ms: -1\n"},
		{"history limit too deep", "version: 1\nplayground:\n  history_limit: 101\n"},
		{"history limit zero", "version: 1\nplayground:\n  history_limit: 0\n"},
		{"unknown analyzer", "version: 1\nplayground:\n  analyzer: wasm\n"},
		{"unknown theme", "version: 1\nplayground:\n  theme: sepia\n"},
		{"poll too often", "version: 1\nstorage:\n  poll_interval_ms: 1\n"},
		{"bad log level", "version: 1\nlogging:\n  console:\n    level: verbose\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfiguration(writeConfig(t, tt.content)); err == nil {
				t.Error("LoadConfiguration() succeeded, want error")
			}
		})
	}
}

func TestLoadConfiguration_NonExistentFile(t *testing.T) {
	isolate(t)
	if _, err := LoadConfiguration("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestLoadConfiguration_WithOptions(t *testing.T) {
	isolate(t)
	option := func(opts *gencfg.ProcessingOptions) {
		// Options are opaque, just test that we can pass them
	}
	cfg, err := LoadConfiguration("", option)
	if err != nil {
		t.Fatalf("LoadConfiguration() with options error = %v", err)
	}
	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}
}

func TestPrepare(t *testing.T) {
	isolate(t)
	data, err := Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if strings.Contains(string(data), "{{") {
		t.Error("Prepare() left template actions unexpanded")
	}
	if _, err := unmarshalConfig(data, &Config{}, true); err != nil {
		t.Errorf("Prepared config is not valid: %v", err)
	}
}

func TestDump(t *testing.T) {
	isolate(t)
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Playground.Project = "dumped"

	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	cfg2, err := unmarshalConfig(data, &Config{}, true)
	if err != nil {
		t.Fatalf("Dumped config cannot be loaded: %v", err)
	}
	if *cfg2 != *cfg {
		t.Errorf("config changed after dump/load:\n%+v\n%+v", cfg2, cfg)
	}
}

func TestLoggingConfig_Prepare(t *testing.T) {
	dir := t.TempDir()
	conf := LoggingConfig{
		ConsoleLogger: LoggerConfig{Level: "none"},
		FileLogger:    LoggerConfig{Level: "normal", Destination: filepath.Join(dir, "test.log"), Mode: "overwrite"},
	}

	log, err := conf.Prepare(false)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	log.Debug("not written")
	log.Info("written")
	_ = log.Sync()

	data, err := os.ReadFile(filepath.Join(dir, "test.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "written") || strings.Contains(string(data), "not written") {
		t.Errorf("unexpected log content:\n%s", data)
	}
	if !strings.Contains(string(data), "seess") {
		t.Errorf("logger is not named after application:\n%s", data)
	}
}
