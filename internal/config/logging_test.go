package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  slog.Level
	}{
		{LogDebug, slog.LevelDebug},
		{LogInfo, slog.LevelInfo},
		{LogWarn, slog.LevelWarn},
		{LogError, slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := tc.level.SlogLevel(); got != tc.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tc.level, got, tc.want)
		}
	}
}

func TestLogLevelIsValid(t *testing.T) {
	for _, l := range []LogLevel{LogDebug, LogInfo, LogWarn, LogError} {
		if !l.IsValid() {
			t.Errorf("IsValid(%q) = false", l)
		}
	}
	for _, l := range []LogLevel{"", "trace", "INFO"} {
		if l.IsValid() {
			t.Errorf("IsValid(%q) = true", l)
		}
	}
}

func TestSetupLoggerWithWriters_DualStreams(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, LogInfo)

	logger.Info("dual stream check", "key", "value")

	// The stderr stream carries the text format.
	if !strings.Contains(stderr.String(), "dual stream check") {
		t.Errorf("stderr output missing message: %q", stderr.String())
	}
	if !strings.Contains(stderr.String(), "key=value") {
		t.Errorf("stderr output not in text format: %q", stderr.String())
	}

	// The file stream carries JSON.
	var entry map[string]any
	if err := json.Unmarshal(file.Bytes(), &entry); err != nil {
		t.Fatalf("file output is not JSON: %v (%q)", err, file.String())
	}
	if entry["msg"] != "dual stream check" {
		t.Errorf("file msg = %v", entry["msg"])
	}
	if entry["key"] != "value" {
		t.Errorf("file key = %v", entry["key"])
	}
}

func TestSetupLoggerWithWriters_RespectsLevel(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, LogWarn)

	logger.Info("below threshold")
	logger.Warn("at threshold")

	if strings.Contains(stderr.String(), "below threshold") {
		t.Error("info message logged at warn level")
	}
	if !strings.Contains(stderr.String(), "at threshold") {
		t.Error("warn message missing")
	}
}

func TestSetupLogger_NoFile(t *testing.T) {
	logger, lvl, closeLog := SetupLogger("", LogDebug)
	defer closeLog()

	if logger == nil {
		t.Fatal("logger is nil")
	}
	if lvl.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug", lvl.Level())
	}
	if err := closeLog(); err != nil {
		t.Errorf("closeLog: %v", err)
	}
}

func TestSetupLogger_LevelVarHotReload(t *testing.T) {
	_, lvl, closeLog := SetupLogger("", LogInfo)
	defer closeLog()

	lvl.Set(LogError.SlogLevel())
	if lvl.Level() != slog.LevelError {
		t.Errorf("level after Set = %v, want error", lvl.Level())
	}
}
