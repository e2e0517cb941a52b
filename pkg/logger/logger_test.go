package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestInitLogger_ValidLevels(t *testing.T) {
	tests := []struct {
		name  string
		level string
	}{
		{"debug", "debug"},
		{"info", "info"},
		{"warn", "warn"},
		{"error", "error"},
		{"upper case", "WARN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := InitLogger(tt.level)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			logger := GetLogger()
			if logger == nil {
				t.Fatal("GetLogger() returned nil")
			}
		})
	}
}

func TestInitLogger_InvalidLevel(t *testing.T) {
	err := InitLogger("invalid")
	if err == nil {
		t.Error("expected error for invalid log level, got nil")
	}
}

func TestGetLogger_BeforeInit(t *testing.T) {
	// globalLoggerをリセット
	mu.Lock()
	globalLogger = nil
	mu.Unlock()

	logger := GetLogger()
	if logger == nil {
		t.Error("GetLogger() should return default logger when not initialized")
	}

	// デフォルトロガーが返されることを確認
	if logger != slog.Default() {
		t.Error("GetLogger() should return slog.Default() when not initialized")
	}
}

func TestGetLogger_AfterInit(t *testing.T) {
	err := InitLogger("info")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger := GetLogger()
	if logger == nil {
		t.Error("GetLogger() returned nil after initialization")
	}

	if logger != globalLogger {
		t.Error("GetLogger() should return the initialized logger")
	}
}

func TestInit_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Options{Level: "warn", Output: &buf}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	GetLogger().Info("hidden")
	GetLogger().Warn("shown", "track", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "track=3") {
		t.Errorf("expected text output, got: %s", out)
	}
}

func TestInit_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Options{Level: "info", Format: "json", Output: &buf}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	GetLogger().Info("Playback complete", "elapsed", "1s")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v: %s", err, buf.String())
	}
	if record["msg"] != "Playback complete" || record["elapsed"] != "1s" {
		t.Errorf("unexpected record: %v", record)
	}
}

func TestInit_InvalidFormat(t *testing.T) {
	if err := Init(Options{Level: "info", Format: "xml"}); err == nil {
		t.Error("expected error for invalid log format, got nil")
	}
}
