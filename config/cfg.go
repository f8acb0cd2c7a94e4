package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	PlaygroundConfig struct {
		Project      string `yaml:"project" validate:"required"`
		DebounceMs   int    `yaml:"debounce_ms" validate:"min=0,max=10000"`
		HistoryLimit int    `yaml:"history_limit" validate:"min=1,max=100"`
		Analyzer     string `yaml:"analyzer" validate:"required,oneof=scanner grammar"`
		Theme        string `yaml:"theme" validate:"required,oneof=light dark"`
	}

	StorageConfig struct {
		Path           string `yaml:"path" sanitize:"path_clean,assure_dir_exists_for_file" validate:"required,filepath"`
		PollIntervalMs int    `yaml:"poll_interval_ms" validate:"min=10"`
	}

	Config struct {
		Version    int              `yaml:"version" validate:"eq=1"`
		Playground PlaygroundConfig `yaml:"playground"`
		Storage    StorageConfig    `yaml:"storage"`
		Logging    LoggingConfig    `yaml:"logging"`
	}
)

// Debounce returns quiescence delay before analysis and preview.
func (conf *PlaygroundConfig) Debounce() time.Duration {
	return time.Duration(conf.DebounceMs) * time.Millisecond
}

// PollInterval returns how often storage is checked for changes made by other
// sessions.
func (conf *StorageConfig) PollInterval() time.Duration {
	return time.Duration(conf.PollIntervalMs) * time.Millisecond
}

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}
