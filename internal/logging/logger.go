// Package logging wraps zerolog with a small key/value API.
//
// Go Pattern: A package-level logger keeps call sites short
// (logging.Info("msg", "key", value)) while still producing structured JSON.
// Rotation is handled by lumberjack when a log file is configured.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu     sync.RWMutex
	logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
)

// InitLogger configures the global logger. With an empty file the logger
// writes to stdout only; otherwise it writes to both stdout and a rotated file.
func InitLogger(file string, maxSizeMB, maxBackups, maxAgeDays int, compress bool, level string) {
	var out io.Writer = os.Stdout
	if file != "" {
		out = zerolog.MultiLevelWriter(os.Stdout, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   compress,
		})
	}

	mu.Lock()
	logger = zerolog.New(out).With().Timestamp().Logger()
	mu.Unlock()

	SetLogLevel(level)
}

// SetLogLevel changes the global level. Unknown levels fall back to info.
func SetLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// SetLoggerForTest replaces the global logger.
func SetLoggerForTest(l zerolog.Logger) {
	mu.Lock()
	logger = l
	mu.Unlock()
}

func current() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := logger
	return &l
}

// Debug logs at debug level.
func Debug(msg string, kv ...any) { write(current().Debug(), msg, kv) }

// Info logs at info level.
func Info(msg string, kv ...any) { write(current().Info(), msg, kv) }

// Warn logs at warn level.
func Warn(msg string, kv ...any) { write(current().Warn(), msg, kv) }

// Error logs at error level.
func Error(msg string, kv ...any) { write(current().Error(), msg, kv) }

func write(ev *zerolog.Event, msg string, kv []any) {
	if ev == nil {
		return
	}
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		if i+1 >= len(kv) {
			ev = ev.Str(key, "(missing)")
			break
		}
		switch v := kv[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}
