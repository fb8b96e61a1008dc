package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	mu           sync.RWMutex
	currentLevel = LevelInfo
	levelVar     = new(slog.LevelVar)
	logger       = slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      levelVar,
		TimeFormat: time.DateTime,
	}))
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel changes the minimum level that is emitted. Unknown names are
// ignored so a bad config value never silences the logger.
func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()

	switch strings.ToUpper(level) {
	case "DEBUG":
		currentLevel = LevelDebug
	case "INFO":
		currentLevel = LevelInfo
	case "WARN":
		currentLevel = LevelWarn
	case "ERROR":
		currentLevel = LevelError
	default:
		return
	}
	levelVar.Set(currentLevel.slogLevel())
}

// GetLevel returns the current minimum level.
func GetLevel() Level {
	mu.RLock()
	defer mu.RUnlock()
	return currentLevel
}

// Configure replaces the output handler.
//
// Parameters:
//   - level: DEBUG, INFO, WARN or ERROR
//   - format: "text" (colored, human readable) or "json"
//   - output: "stdout", "stderr" or a file path (appended to)
//
// Returns an error if the output file cannot be opened or the format is unknown.
func Configure(level, format, output string) error {
	w, err := openOutput(output)
	if err != nil {
		return err
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		handler = tint.NewHandler(w, &tint.Options{
			Level:      levelVar,
			TimeFormat: time.DateTime,
			NoColor:    w != os.Stdout && w != os.Stderr,
		})
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: levelVar})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	mu.Lock()
	logger = slog.New(handler)
	mu.Unlock()

	SetLevel(level)
	return nil
}

func openOutput(output string) (io.Writer, error) {
	switch strings.ToLower(output) {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", output, err)
		}
		return f, nil
	}
}

func log(level Level, format string, v ...any) {
	mu.RLock()
	l := logger
	enabled := level >= currentLevel
	mu.RUnlock()

	if !enabled {
		return
	}

	l.Log(context.Background(), level.slogLevel(), fmt.Sprintf(format, v...))
}

func Debug(format string, v ...any) {
	log(LevelDebug, format, v...)
}

func Info(format string, v ...any) {
	log(LevelInfo, format, v...)
}

func Warn(format string, v ...any) {
	log(LevelWarn, format, v...)
}

func Error(format string, v ...any) {
	log(LevelError, format, v...)
}
