package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"mmtrade/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Option adjusts how New composes its cores.
type Option func(*buildOptions)

type buildOptions struct {
	quiet bool
	extra []zapcore.Core
}

// Quiet drops the stdout core. Used while the terminal UI owns the screen.
func Quiet() Option {
	return func(o *buildOptions) { o.quiet = true }
}

// WithCore tees entries into an additional core.
func WithCore(core zapcore.Core) Option {
	return func(o *buildOptions) {
		if core != nil {
			o.extra = append(o.extra, core)
		}
	}
}

// New creates a zap.Logger configured based on the given options.
func New(cfg config.LogConfig, opts ...Option) (*zap.Logger, error) {
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	encoding := "json"
	if cfg.Environment == "dev" || cfg.Format == "console" {
		encoding = "console"
	}
	encoderCfg := EncoderConfig(encoding)

	var cores []zapcore.Core
	if !bo.quiet {
		var enc zapcore.Encoder
		if encoding == "console" {
			enc = zapcore.NewConsoleEncoder(encoderCfg)
		} else {
			enc = zapcore.NewJSONEncoder(encoderCfg)
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stdout), lvl))
	}

	// Optional file output with rotation via lumberjack
	if cfg.OutputFile != "" {
		dir := filepath.Dir(cfg.OutputFile)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.OutputFile,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     7, // days
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			fileWriter,
			lvl,
		))
	}

	cores = append(cores, bo.extra...)
	if len(cores) == 0 {
		return zap.NewNop(), nil
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// EncoderConfig returns the encoder settings for "console" or "json".
func EncoderConfig(format string) zapcore.EncoderConfig {
	if format == "console" {
		return zap.NewDevelopmentEncoderConfig()
	}
	return zap.NewProductionEncoderConfig()
}
