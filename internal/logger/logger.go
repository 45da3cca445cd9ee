// Package logger builds the process logger and carries request loggers in contexts.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options tune the logger beyond its environment defaults.
type Options struct {
	Level  string // debug, info, warn, error; empty keeps the env default
	Format string // json or console; empty keeps the env default
	// Fields are attached to every entry, e.g. the build version.
	Fields []zap.Field
}

// New creates a zap logger for the given environment.
// prod uses sampled JSON output at info level, local/dev/docker use colored
// console output at debug level.
func New(env string, opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	switch env {
	case "prod":
		cfg = zap.NewProductionConfig()
	case "local", "dev", "docker":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("unknown environment %q for logger", env)
	}

	if opts.Level != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	switch opts.Format {
	case "":
	case "json":
		cfg.Encoding = "json"
		cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	case "console":
		cfg.Encoding = "console"
	default:
		return nil, fmt.Errorf("invalid log format %q", opts.Format)
	}

	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel), zap.Fields(opts.Fields...))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}
