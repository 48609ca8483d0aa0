package config

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// SlogLevel converts a [LogLevel] to its slog equivalent. Unknown values map
// to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger creates the server logger: text to stderr, plus JSON to logFile
// when non-empty. The returned [slog.LevelVar] allows hot-reloading the level;
// the cleanup function closes the log file.
func SetupLogger(logFile string, level LogLevel) (*slog.Logger, *slog.LevelVar, func() error) {
	lvl := new(slog.LevelVar)
	lvl.Set(level.SlogLevel())

	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})

	if logFile == "" {
		return slog.New(stderrHandler), lvl, func() error { return nil }
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		slog.Error("failed to open log file, using stderr only", "error", err, "file", logFile)
		return slog.New(stderrHandler), lvl, func() error { return nil }
	}

	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: lvl})
	logger := slog.New(slogmulti.Fanout(stderrHandler, fileHandler))
	return logger, lvl, file.Close
}

// SetupLoggerWithWriters creates a dual-stream logger with custom writers
// (for testing).
func SetupLoggerWithWriters(stderr, file io.Writer, level LogLevel) *slog.Logger {
	stderrHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level.SlogLevel()})
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level.SlogLevel()})
	return slog.New(slogmulti.Fanout(stderrHandler, fileHandler))
}
