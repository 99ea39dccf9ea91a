// Package logging wraps zap with the landedcost domain's structured
// field vocabulary, mirroring elchinoo-stormdb's internal/logging package.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logging interface used across the core.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, err error, fields ...zap.Field)
	With(fields ...zap.Field) Logger
	Sync() error
}

// Config configures logger construction.
type Config struct {
	Level       string
	Format      string // "json" or "console"
	Development bool
}

type zapLogger struct {
	l *zap.Logger
}

// New builds a Logger per Config, matching stormdb's NewLogger shape.
// Format picks JSON or console encoding (console when empty); Development
// switches to zap's development encoder config with colored levels.
func New(cfg Config) (Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var encoderCfg zapcore.EncoderConfig
	if cfg.Development {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderCfg = zap.NewProductionEncoderConfig()
	}
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch strings.ToLower(cfg.Format) {
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	case "console", "":
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	default:
		return nil, fmt.Errorf("unsupported log format: %s", cfg.Format)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), level)
	opts := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}
	return &zapLogger{l: zap.New(core, opts...)}, nil
}

// NewNop returns a Logger that discards everything, for tests.
func NewNop() Logger { return &zapLogger{l: zap.NewNop()} }

func (z *zapLogger) Debug(msg string, fields ...zap.Field) { z.l.Debug(msg, fields...) }
func (z *zapLogger) Info(msg string, fields ...zap.Field)  { z.l.Info(msg, fields...) }
func (z *zapLogger) Warn(msg string, fields ...zap.Field)  { z.l.Warn(msg, fields...) }

func (z *zapLogger) Error(msg string, err error, fields ...zap.Field) {
	all := make([]zap.Field, 0, len(fields)+1)
	if err != nil {
		all = append(all, zap.Error(err))
	}
	all = append(all, fields...)
	z.l.Error(msg, all...)
}

func (z *zapLogger) With(fields ...zap.Field) Logger {
	return &zapLogger{l: z.l.With(fields...)}
}

func (z *zapLogger) Sync() error { return z.l.Sync() }

func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level: %s", level)
	}
}

// Fields provides domain-specific field constructors, following stormdb's
// LoggerFields grouping pattern.
var Fields fields

type fields struct{}

func (fields) BatchID(v string) zap.Field      { return zap.String("batch_id", v) }
func (fields) OrderID(v string) zap.Field      { return zap.String("order_id", v) }
func (fields) InternalSKU(v string) zap.Field  { return zap.String("internal_sku", v) }
func (fields) YM(v string) zap.Field           { return zap.String("ym", v) }
func (fields) Marketplace(v string) zap.Field  { return zap.String("marketplace", v) }
func (fields) Warning(kind, msg string) zap.Field {
	return zap.String("warning", fmt.Sprintf("%s: %s", kind, msg))
}
