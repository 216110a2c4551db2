// Package logger provides the process-wide zap logger.
//
// Components receive a *zap.Logger (usually logger.Named("component")); the
// printf-style helpers remain for call sites that only need a line of text.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	globalLogger atomic.Pointer[zap.Logger]
	once         sync.Once

	mu       sync.Mutex
	fileSink *lumberjack.Logger
)

const (
	colorRed    = "\x1b[31m"
	colorGreen  = "\x1b[32m"
	colorYellow = "\x1b[33m"
	colorCyan   = "\x1b[36m"
	colorReset  = "\x1b[0m"
)

// Init sets up the global logger. Console output goes to consoleWriter
// (stderr when nil); a rotating JSON file is added when cfg.File is set.
// Only the first call has an effect until ResetForTest.
func Init(cfg config.LoggerConfig, consoleWriter zapcore.WriteSyncer) {
	once.Do(func() {
		level := zap.NewAtomicLevel()
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			level.SetLevel(zap.InfoLevel)
		}
		if consoleWriter == nil {
			consoleWriter = zapcore.Lock(os.Stderr)
		}

		cores := []zapcore.Core{zapcore.NewCore(encoder(cfg.Format), consoleWriter, level)}

		if cfg.File != "" {
			sink := &lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   cfg.Compress,
			}
			mu.Lock()
			fileSink = sink
			mu.Unlock()
			cores = append(cores, zapcore.NewCore(encoder("json"), zapcore.AddSync(sink), level))
		}

		opts := []zap.Option{zap.AddStacktrace(zap.ErrorLevel)}
		if cfg.AddSource {
			opts = append(opts, zap.AddCaller())
		}
		l := zap.New(zapcore.NewTee(cores...), opts...).Named("stepwise")
		globalLogger.Store(l)
		zap.ReplaceGlobals(l)
	})
}

func encoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")
	if format == "console" {
		ec.EncodeLevel = colorLevel
		ec.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(name + ".")
		}
		return zapcore.NewConsoleEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(ec)
}

func colorLevel(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	var color string
	switch level {
	case zapcore.DebugLevel:
		color = colorCyan
	case zapcore.InfoLevel:
		color = colorGreen
	case zapcore.WarnLevel:
		color = colorYellow
	default:
		color = colorRed
	}
	enc.AppendString(color + strings.ToUpper(level.String()) + colorReset)
}

// L returns the global logger, or a no-op logger before Init.
func L() *zap.Logger {
	if l := globalLogger.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// Named returns a child of the global logger for one component.
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// Sync flushes buffered entries and closes the rotating file.
func Sync() {
	if l := globalLogger.Load(); l != nil {
		_ = l.Sync()
	}
	mu.Lock()
	defer mu.Unlock()
	if fileSink != nil {
		_ = fileSink.Close()
	}
}

// ResetForTest clears the global logger so Init can run again.
func ResetForTest() {
	globalLogger.Store(nil)
	once = sync.Once{}
	mu.Lock()
	fileSink = nil
	mu.Unlock()
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	L().Info(fmt.Sprintf(format, v...))
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	L().Debug(fmt.Sprintf(format, v...))
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	L().Error(fmt.Sprintf(format, v...))
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	L().Warn(fmt.Sprintf(format, v...))
}

// GetWriter returns the rotating log file for tools that want raw output.
func GetWriter() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	if fileSink != nil {
		return fileSink
	}
	return io.Discard
}
