// Package logging builds the structured zap logger used by the CLI.
package logging

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultLevel = "info"

// ResolveLevel parses level, falling back to LOG_LEVEL and then to info.
func ResolveLevel(level string) zap.AtomicLevel {
	lvl := zap.NewAtomicLevel()
	for _, candidate := range []string{level, os.Getenv("LOG_LEVEL"), defaultLevel} {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		if candidate == "" {
			continue
		}
		if err := lvl.UnmarshalText([]byte(candidate)); err == nil {
			return lvl
		}
	}
	return lvl
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey: "message",
		TimeKey:    "timestamp",
		LevelKey:   "severity",
		NameKey:    "logger",
		EncodeTime: zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(strings.ToUpper(level.String()))
		},
		EncodeDuration: zapcore.StringDurationEncoder,
		CallerKey:      "caller",
		EncodeCaller:   zapcore.ShortCallerEncoder,
		StacktraceKey:  "stacktrace",
	}
}

// NewLogger constructs a JSON logger writing to stderr so command output on
// stdout stays machine-readable.
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.Config{
		Level:             ResolveLevel(level),
		Encoding:          "json",
		EncoderConfig:     encoderConfig(),
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: true,
	}
	return cfg.Build()
}

// NewWriterLogger writes JSON log lines to w. Tests use it to inspect output.
func NewWriterLogger(w io.Writer, level string) *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(w),
		ResolveLevel(level),
	)
	return zap.New(core)
}
