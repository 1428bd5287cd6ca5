// Package logger provides opinionated logging for the unistream system: a
// zap logger for the relay and API server hot paths and a slog constructor
// for CLI-facing output.
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the console zap logger the servers run on. The relay logs
// a line per forwarded request and per persisted transcript, so fields stay
// structured and the level gate is the only cost when debug is off.
func NewLogger(debug bool) *zap.Logger {
	return NewLoggerWithWriters(debug, os.Stdout)
}

// NewLoggerWithWriters is NewLogger with explicit sinks, for tests and for
// commands that mirror server logs into a file.
func NewLoggerWithWriters(debug bool, writers ...io.Writer) *zap.Logger {
	if len(writers) == 0 {
		writers = []io.Writer{os.Stdout}
	}
	sink := zapcore.AddSync(writers[0])
	if len(writers) > 1 {
		syncers := make([]zapcore.WriteSyncer, len(writers))
		for i, w := range writers {
			syncers[i] = zapcore.AddSync(w)
		}
		sink = zapcore.NewMultiWriteSyncer(syncers...)
	}

	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "time"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.CapitalColorLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), sink, level)
	return zap.New(core, zap.AddCaller())
}
