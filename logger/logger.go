// Package logger owns the process-wide structured logger.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// L is the process logger. It is a no-op until Init runs.
	L = zap.NewNop()

	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Init builds the process logger writing JSON to stdout and, when filePath
// is set, to a size-rotated file.
func Init(levelStr, filePath string) {
	level.SetLevel(parseLevel(levelStr))

	sinks := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if filePath != "" {
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
		}))
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.NewMultiWriteSyncer(sinks...),
		level,
	)
	L = zap.New(core)
}

// SetLevel applies a new minimum level at runtime without rebuilding the
// logger.
func SetLevel(levelStr string) {
	level.SetLevel(parseLevel(levelStr))
}

// Sync flushes buffered log entries.
func Sync() {
	_ = L.Sync()
}

func parseLevel(value string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
