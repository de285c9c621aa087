package logging

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes where and at what level a process logs. Console output always goes
// to stdout; File additionally writes JSON lines to a rotated file.
type Config struct {
	Level      string `json:"level"`
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if _, err := ParseLevel(cfg.Level); err != nil {
		return errors.Wrapf(err, "%s.level", path)
	}
	if cfg.MaxSizeMB < 0 {
		return errors.Errorf("%s.max_size_mb must not be negative", path)
	}
	if cfg.MaxBackups < 0 {
		return errors.Errorf("%s.max_backups must not be negative", path)
	}
	if cfg.MaxAgeDays < 0 {
		return errors.Errorf("%s.max_age_days must not be negative", path)
	}
	return nil
}

// ParseLevel converts a level name to a zap level. The empty string means info.
func ParseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	var parsed zapcore.Level
	if err := parsed.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return zapcore.InfoLevel, errors.Errorf("unknown log level %q", level)
	}
	return parsed, nil
}

// NewLoggerFromConfig returns a logger writing to stdout and, when configured, to a
// size rotated file.
func NewLoggerFromConfig(name string, cfg Config) (Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	cores := []zapcore.Core{stdoutCore()}
	if cfg.File != "" {
		cores = append(cores, fileCore(cfg))
	}
	return newImpl(name, zap.NewAtomicLevelAt(level), cores...), nil
}

func fileCore(cfg Config) zapcore.Core {
	maxSize := cfg.MaxSizeMB
	if maxSize == 0 {
		maxSize = 100
	}
	sink := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	encoderCfg := NewLoggerConfig().EncoderConfig
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(sink), zapcore.DebugLevel)
}
