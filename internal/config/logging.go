package config

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLogLevel parses a log level string. "off" and "none" report
// enabled=false; unknown levels fall back to error.
func ParseLogLevel(s string) (level zapcore.Level, enabled bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none":
		return zapcore.ErrorLevel, false
	case "debug":
		return zapcore.DebugLevel, true
	case "info":
		return zapcore.InfoLevel, true
	case "warn", "warning":
		return zapcore.WarnLevel, true
	default:
		return zapcore.ErrorLevel, true
	}
}

// NewLogger builds the process logger. Output goes to cfg.File when set
// and to stderr otherwise. The returned func closes the log file.
func NewLogger(cfg LoggingConfig) (*zap.Logger, func() error, error) {
	noClose := func() error { return nil }

	level, enabled := ParseLogLevel(cfg.Level)
	if !enabled {
		return zap.NewNop(), noClose, nil
	}

	sink := zapcore.Lock(os.Stderr)
	closeFn := noClose
	if cfg.File != "" {
		path := ExpandPath(cfg.File)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // log path from config
		if err != nil {
			return nil, nil, err
		}
		sink = zapcore.Lock(f)
		closeFn = f.Close
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Encoding == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	logger := zap.New(
		zapcore.NewCore(encoder, sink, zap.NewAtomicLevelAt(level)),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	return logger, closeFn, nil
}
