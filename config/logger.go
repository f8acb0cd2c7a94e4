package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	rtdebug "runtime/debug"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"

	"seess/misc"
)

type LoggerConfig struct {
	Level       string `yaml:"level" validate:"required,oneof=none debug normal"`
	Destination string `yaml:"destination,omitempty" sanitize:"path_clean,assure_dir_exists_for_file" validate:"omitempty,filepath"`
	Mode        string `yaml:"mode,omitempty" validate:"omitempty,oneof=append overwrite"`
}

type LoggingConfig struct {
	FileLogger    LoggerConfig `yaml:"file"`
	ConsoleLogger LoggerConfig `yaml:"console"`
}

// minimal zap level for configured level names, "none" is absent
var logLevels = map[string]zapcore.Level{
	"debug":  zapcore.DebugLevel,
	"normal": zapcore.InfoLevel,
}

// Prepare returns program logger. Console output is split: errors go to
// stderr, everything else to stdout. When debug is set console logs
// everything down to debug level regardless of configuration.
func (conf *LoggingConfig) Prepare(debug bool) (*zap.Logger, error) {
	consoleLevel := conf.ConsoleLogger.Level
	if debug {
		consoleLevel = "debug"
	}
	cores := consoleCores(consoleLevel)

	var redirected string
	if lowest, ok := logLevels[conf.FileLogger.Level]; ok {
		core, name, err := fileCore(conf.FileLogger, lowest)
		if err != nil {
			return nil, err
		}
		cores, redirected = append(cores, core), name
	}

	log := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	if redirected != "" {
		log.Warn("Log file was redirected to new location", zap.String("location", redirected))
	}
	return log.Named(misc.GetAppName()), nil
}

func consoleCores(level string) []zapcore.Core {
	lowest, ok := logLevels[level]
	if !ok {
		return nil
	}
	errorsOnly := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel
	})
	rest := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lowest <= lvl && lvl < zapcore.ErrorLevel
	})
	return []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderConfig(os.Stdout)), zapcore.Lock(os.Stdout), rest),
		zapcore.NewCore(plainErrors{zapcore.NewConsoleEncoder(consoleEncoderConfig(os.Stderr))}, zapcore.Lock(os.Stderr), errorsOnly),
	}
}

func consoleEncoderConfig(f *os.File) zapcore.EncoderConfig {
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeCaller = nil
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	if EnableColorOutput(f) {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		ec.TimeKey = zapcore.OmitKey
	}
	return ec
}

// fileCore opens log destination, falling back to temporary file when
// destination is not writable. Returns name of the fallback file if it was
// used. Go runtime crash output is captured next to the log.
func fileCore(conf LoggerConfig, lowest zapcore.Level) (zapcore.Core, string, error) {
	capturePanics(filepath.Join(filepath.Dir(conf.Destination), misc.GetAppName()+"-panic.log"), conf.Mode)

	var fallback string
	f, err := openLogFile(conf.Destination, conf.Mode)
	if err != nil {
		if f, err = os.CreateTemp("", misc.GetAppName()+".*.log"); err != nil {
			return nil, "", fmt.Errorf("unable to access file log destination (%s): %w", conf.Destination, err)
		}
		fallback = f.Name()
	}
	enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	return zapcore.NewCore(enc, zapcore.Lock(f), zap.NewAtomicLevelAt(lowest)), fallback, nil
}

func capturePanics(fname, mode string) {
	f, err := openLogFile(fname, mode)
	if err != nil {
		if f, err = os.CreateTemp("", misc.GetAppName()+"-panic.*.log"); err != nil {
			// crash output stays on stderr
			return
		}
	}
	rtdebug.SetCrashOutput(f, rtdebug.CrashOptions{})
	f.Close()
}

func openLogFile(fname, mode string) (*os.File, error) {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if mode == "append" {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	return os.OpenFile(fname, flags, 0644)
}

// plainErrors keeps console error output to a single line: error fields lose
// their verbose (stack carrying) representation.
type plainErrors struct {
	zapcore.Encoder
}

func (e plainErrors) Clone() zapcore.Encoder {
	return plainErrors{e.Encoder.Clone()}
}

func (e plainErrors) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	plain := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		if err, ok := f.Interface.(error); ok && f.Type == zapcore.ErrorType {
			f.Interface = errors.New(err.Error())
		}
		plain[i] = f
	}
	return e.Encoder.EncodeEntry(ent, plain)
}
