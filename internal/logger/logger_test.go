package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	config := &Config{
		Level:  slog.LevelDebug,
		Format: "json",
	}

	logger := New(config)
	if logger == nil {
		t.Fatal("Expected logger to be created")
	}

	if logger.Logger == nil {
		t.Fatal("Expected internal slog.Logger to be set")
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Level != slog.LevelInfo {
		t.Errorf("Expected default level Info, got %v", config.Level)
	}

	if config.Format != "json" {
		t.Errorf("Expected default format json, got %s", config.Format)
	}

	if config.AddSource {
		t.Error("Expected AddSource to be false by default")
	}
}

func TestWithField(t *testing.T) {
	logger := New(DefaultConfig())
	newLogger := logger.WithField("key", "value")

	if newLogger == logger {
		t.Error("WithField should return a new logger instance")
	}

	if newLogger.Logger == nil {
		t.Error("New logger should have internal logger set")
	}
}

func TestWithFields(t *testing.T) {
	logger := New(DefaultConfig())
	fields := map[string]any{
		"key1": "value1",
		"key2": 123,
		"key3": true,
	}

	newLogger := logger.WithFields(fields)

	if newLogger == logger {
		t.Error("WithFields should return a new logger instance")
	}
}

func TestWithError(t *testing.T) {
	logger := New(DefaultConfig())

	// Test with nil error
	newLogger := logger.WithError(nil)
	if newLogger != logger {
		t.Error("WithError(nil) should return same logger")
	}

	// Test with actual error
	err := &testError{msg: "test error"}
	newLogger = logger.WithError(err)
	if newLogger == logger {
		t.Error("WithError should return a new logger instance")
	}
}

func TestComponent(t *testing.T) {
	logger := New(DefaultConfig())
	componentLogger := logger.Component("trading-engine")

	if componentLogger == logger {
		t.Error("Component should return a new logger instance")
	}
}

func TestPair(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, DefaultConfig())
	pairLogger := logger.Pair("ETH/USDT")

	if pairLogger == logger {
		t.Error("Pair should return a new logger instance")
	}

	pairLogger.Info("opened")
	if !strings.Contains(buf.String(), `"pair":"ETH/USDT"`) {
		t.Errorf("Output should carry the pair field, got %s", buf.String())
	}
}

func TestRun(t *testing.T) {
	logger := New(DefaultConfig())
	runLogger := logger.Run("run-1")

	if runLogger == logger {
		t.Error("Run should return a new logger instance")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGlobalLogger(t *testing.T) {
	defaultLog := Default()
	if defaultLog == nil {
		t.Fatal("Default logger should not be nil")
	}

	// Create custom logger and set as default
	customLogger := New(&Config{
		Level:  slog.LevelDebug,
		Format: "text",
	})

	SetDefault(customLogger)
	newDefault := Default()

	if newDefault != customLogger {
		t.Error("SetDefault should update the global logger")
	}

	// Restore original default for other tests
	SetDefault(defaultLog)
}

func TestConvenienceFunctions(t *testing.T) {
	// These should not panic
	Debug("debug message", "key", "value")
	Info("info message", "key", "value")
	Warn("warn message", "key", "value")
	Error("error message", "key", "value")

	// Test convenience constructors
	_ = WithField("test", "value")
	_ = WithFields(map[string]any{"key": "value"})
	_ = Component("test")
	_ = Pair("BTC/USDT")
}

func TestTradeLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, &Config{Level: slog.LevelDebug, Format: "text"})

	logger.Trade("trade_opened", map[string]any{
		"pair":  "BTC/USDT",
		"price": 50000.0,
		"stake": 33.3,
	})

	output := buf.String()
	if !strings.Contains(output, "trade_opened") {
		t.Error("Output should contain the event name")
	}
	// Fields are emitted in key order
	if strings.Index(output, "pair=") > strings.Index(output, "price=") {
		t.Errorf("Fields should be sorted, got %s", output)
	}
}

func TestTradeLoggingBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, DefaultConfig())

	logger.Trade("trade_closed", map[string]any{"pair": "BTC/USDT"})

	if buf.Len() != 0 {
		t.Errorf("Trade events are debug level, got %s", buf.String())
	}
}

func TestDataIssueLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, DefaultConfig())

	logger.DataIssue(map[string]any{
		"kind":      "duplicate_candle",
		"timestamp": int64(1000),
	})

	if !strings.Contains(buf.String(), `"level":"WARN"`) {
		t.Errorf("Data issues should log at warn, got %s", buf.String())
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	logger := &Logger{
		Logger: slog.New(handler),
	}

	logger.Info("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Error("Output should contain the log message")
	}

	// Verify it's valid JSON
	var jsonData map[string]any
	if err := json.Unmarshal(buf.Bytes(), &jsonData); err != nil {
		t.Errorf("Output should be valid JSON: %v", err)
	}

	if jsonData["msg"] != "test message" {
		t.Errorf("Expected msg='test message', got %v", jsonData["msg"])
	}

	if jsonData["key"] != "value" {
		t.Errorf("Expected key='value', got %v", jsonData["key"])
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	logger := &Logger{
		Logger: slog.New(handler),
	}

	logger.Info("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Error("Output should contain the log message")
	}

	if !strings.Contains(output, "key=value") {
		t.Error("Output should contain key=value pair")
	}
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})

	logger := &Logger{
		Logger: slog.New(handler),
	}

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	output := buf.String()

	if !strings.Contains(output, "debug") {
		t.Error("Should contain debug message")
	}
	if !strings.Contains(output, "info") {
		t.Error("Should contain info message")
	}
	if !strings.Contains(output, "warn") {
		t.Error("Should contain warn message")
	}
	if !strings.Contains(output, "error") {
		t.Error("Should contain error message")
	}
}

// Helper type for testing
type testError struct {
	msg string
}

func (e *testError) Error() string {
	return e.msg
}
