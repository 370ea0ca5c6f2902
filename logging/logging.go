// Package logging builds the zap logger used across the toolchain.
// File output rotates through lumberjack.
package logging

import (
	"os"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects log sinks. Zero value logs nowhere.
type Config struct {
	Level   string // debug, info, warn, error; empty means info
	Console bool   // log to stderr

	File       string // rotating log file path, empty disables
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds a logger from cfg. With no sinks configured it returns a
// nop logger, so callers can pass the result around unconditionally.
func New(cfg Config) (*zap.Logger, error) {
	if !cfg.Console && cfg.File == "" {
		return zap.NewNop(), nil
	}

	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(cfg.Level); err != nil {
			return nil, err
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core
	if cfg.Console {
		enc := zapcore.NewConsoleEncoder(encCfg)
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level))
	}
	if cfg.File != "" {
		sink := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		enc := zapcore.NewJSONEncoder(encCfg)
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(sink), level))
	}
	return zap.New(zapcore.NewTee(cores...)), nil
}
