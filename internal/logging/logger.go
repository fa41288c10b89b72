package logging

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger settings loaded from the configuration file.
type Config struct {
	Level      string `json:"level" yaml:"level" mapstructure:"level"`
	Format     string `json:"format" yaml:"format" mapstructure:"format"`
	OutputPath string `json:"output_path" yaml:"output_path" mapstructure:"output_path"`
	ErrorPath  string `json:"error_path" yaml:"error_path" mapstructure:"error_path"`
}

// DefaultConfig returns JSON logging at info level to stdout.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "json",
		OutputPath: "stdout",
		ErrorPath:  "stderr",
	}
}

// New builds a zap logger from the configuration.
func New(config Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", config.Level, err)
	}

	var encoder zapcore.Encoder
	if config.Format == "console" {
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	outputPath := config.OutputPath
	if outputPath == "" {
		outputPath = "stdout"
	}
	errorPath := config.ErrorPath
	if errorPath == "" {
		errorPath = "stderr"
	}

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, writeSyncer(outputPath), levelBelow(level, zapcore.ErrorLevel)),
		zapcore.NewCore(encoder, writeSyncer(errorPath), atLeast(level, zapcore.ErrorLevel)),
	)

	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// levelBelow enables levels from min up to, but not including, cutoff.
func levelBelow(min, cutoff zapcore.Level) zap.LevelEnablerFunc {
	return func(l zapcore.Level) bool {
		return l >= min && l < cutoff
	}
}

// atLeast enables levels from max(min, cutoff) upward.
func atLeast(min, cutoff zapcore.Level) zap.LevelEnablerFunc {
	return func(l zapcore.Level) bool {
		return l >= min && l >= cutoff
	}
}

func writeSyncer(path string) zapcore.WriteSyncer {
	switch path {
	case "stdout":
		return zapcore.AddSync(os.Stdout)
	case "stderr":
		return zapcore.AddSync(os.Stderr)
	default:
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zapcore.AddSync(os.Stderr)
		}
		return zapcore.AddSync(file)
	}
}

// WithTrace returns a logger annotated with the trace and span ids found in
// ctx. It returns the logger unchanged when no span is recording.
func WithTrace(ctx context.Context, logger *zap.Logger) *zap.Logger {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return logger
	}

	spanContext := span.SpanContext()
	fields := []zap.Field{
		zap.String("trace_id", spanContext.TraceID().String()),
		zap.String("span_id", spanContext.SpanID().String()),
	}
	if spanContext.IsSampled() {
		fields = append(fields, zap.Bool("sampled", true))
	}
	return logger.With(fields...)
}

var globalLogger = zap.NewNop()

// InitGlobal builds a logger from config and installs it as the process-wide
// default returned by L.
func InitGlobal(config Config) error {
	logger, err := New(config)
	if err != nil {
		return err
	}
	globalLogger = logger
	zap.ReplaceGlobals(logger)
	return nil
}

// L returns the process-wide logger. It is a no-op logger until InitGlobal
// succeeds.
func L() *zap.Logger {
	return globalLogger
}
