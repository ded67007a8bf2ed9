package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"Debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"fatal", LevelFatal},
		{"FATAL", LevelFatal},
		{"", slog.LevelInfo},        // Default
		{"invalid", slog.LevelInfo}, // Default for unknown
		{"trace", slog.LevelInfo},   // Unknown level defaults to info
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			result := parseLevel(tc.input)
			if result != tc.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tc.input, result, tc.expected)
			}
		})
	}
}

func TestNewLogger_Formats(t *testing.T) {
	testCases := []string{"json", "text", "JSON", "TEXT", "", "invalid"}

	for _, format := range testCases {
		t.Run(format, func(t *testing.T) {
			// Should not panic
			logger := NewLogger(format, "info", false)
			if logger == nil {
				t.Error("NewLogger returned nil")
			}
		})
	}
}

func TestNewLoggerWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer

	logger := NewLoggerWithWriter(&buf, "json", "info")
	logger.Info("test message", "key", "value")

	output := buf.String()

	if !strings.Contains(output, "{") || !strings.Contains(output, "}") {
		t.Errorf("Expected JSON format, got: %s", output)
	}
	if !strings.Contains(output, "test message") {
		t.Errorf("Expected message in output, got: %s", output)
	}
	if !strings.Contains(output, `"key"`) {
		t.Errorf("Expected key in output, got: %s", output)
	}
	if !strings.Contains(output, `"value"`) {
		t.Errorf("Expected value in output, got: %s", output)
	}
}

func TestNewLoggerWithWriter_Text(t *testing.T) {
	var buf bytes.Buffer

	logger := NewLoggerWithWriter(&buf, "text", "info")
	logger.Info("test message", "key", "value")

	output := buf.String()

	if !strings.Contains(output, "test message") {
		t.Errorf("Expected message in output, got: %s", output)
	}
	if !strings.Contains(output, "key=value") {
		t.Errorf("Expected key=value in output, got: %s", output)
	}
}

func TestNewLoggerWithWriter_LevelFiltering(t *testing.T) {
	t.Run("debug_logs_all", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLoggerWithWriter(&buf, "text", "debug")

		logger.Debug("debug msg")
		logger.Info("info msg")
		logger.Warn("warn msg")
		logger.Error("error msg")

		output := buf.String()
		for _, want := range []string{"debug msg", "info msg", "warn msg", "error msg"} {
			if !strings.Contains(output, want) {
				t.Errorf("Debug level should log %q", want)
			}
		}
	})

	t.Run("info_filters_debug", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLoggerWithWriter(&buf, "text", "info")

		logger.Debug("debug msg")
		logger.Info("info msg")

		output := buf.String()
		if strings.Contains(output, "debug msg") {
			t.Error("Info level should not log debug messages")
		}
		if !strings.Contains(output, "info msg") {
			t.Error("Info level should log info messages")
		}
	})

	t.Run("error_filters_warn", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLoggerWithWriter(&buf, "text", "error")

		logger.Warn("warn msg")
		logger.Error("error msg")

		output := buf.String()
		if strings.Contains(output, "warn msg") {
			t.Error("Error level should not log warn messages")
		}
		if !strings.Contains(output, "error msg") {
			t.Error("Error level should log error messages")
		}
	})

	t.Run("fatal_filters_error", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLoggerWithWriter(&buf, "text", "fatal")

		logger.Error("error msg")
		Fatal(logger, "fatal msg")

		output := buf.String()
		if strings.Contains(output, "error msg") {
			t.Error("Fatal level should not log error messages")
		}
		if !strings.Contains(output, "fatal msg") {
			t.Error("Fatal level should log fatal messages")
		}
	})
}

func TestFatal_LevelName(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "text", "info")

	Fatal(logger, "root fault", "error", "boom")

	output := buf.String()
	if !strings.Contains(output, "level=FATAL") {
		t.Errorf("Expected level=FATAL in output, got: %s", output)
	}
	if strings.Contains(output, "ERROR+") {
		t.Errorf("FATAL should not render as an ERROR offset, got: %s", output)
	}
	if !strings.Contains(output, "root fault") {
		t.Errorf("Expected message in output, got: %s", output)
	}
}

func TestNewFileLogger_TeesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "procwarden.log")

	logger, closer, err := NewFileLogger(path, "text", "info", false)
	if err != nil {
		t.Fatalf("NewFileLogger returned %v", err)
	}

	logger.Info("written to file", "key", "value")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close returned %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file missing message, got: %s", data)
	}
}

func TestNewFileLogger_AppendsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "procwarden.log")

	for _, msg := range []string{"first run", "second run"} {
		logger, closer, err := NewFileLogger(path, "text", "info", false)
		if err != nil {
			t.Fatalf("NewFileLogger returned %v", err)
		}
		logger.Info(msg)
		closer.Close()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "first run") || !strings.Contains(string(data), "second run") {
		t.Errorf("log file should contain both runs, got: %s", data)
	}
}

func TestNewFileLogger_BadPath(t *testing.T) {
	_, _, err := NewFileLogger("/no/such/dir/procwarden.log", "text", "info", false)
	if err == nil {
		t.Fatal("NewFileLogger returned nil error for unwritable path")
	}
}

func TestSetDefault(t *testing.T) {
	originalDefault := slog.Default()
	defer slog.SetDefault(originalDefault)

	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "text", "info")

	SetDefault(logger)

	slog.Info("from default logger")
	if !strings.Contains(buf.String(), "from default logger") {
		t.Error("SetDefault did not set the default logger")
	}
}
