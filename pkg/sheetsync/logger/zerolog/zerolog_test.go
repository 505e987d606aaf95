package zerolog

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mihaimyh/sheetsync/pkg/sheetsync"
)

func TestZerologLogger_NewLogger(t *testing.T) {
	output := bytes.Buffer{}
	zlog := zerolog.New(&output)
	logger := NewLogger(&zlog)

	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}

	// nil falls back to a no-op logger
	NewLogger(nil).Info("dropped")
}

func TestZerologLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		log   func(l *Logger)
	}{
		{"debug", func(l *Logger) { l.Debug("m", sheetsync.Field{Key: "key", Value: "value"}) }},
		{"info", func(l *Logger) { l.Info("m", sheetsync.Field{Key: "key", Value: "value"}) }},
		{"warn", func(l *Logger) { l.Warn("m", sheetsync.Field{Key: "key", Value: "value"}) }},
		{"error", func(l *Logger) { l.Error("m", sheetsync.Field{Key: "key", Value: "value"}) }},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			output := bytes.Buffer{}
			zlog := zerolog.New(&output)
			tt.log(NewLogger(&zlog))

			var entry map[string]interface{}
			if err := json.Unmarshal(output.Bytes(), &entry); err != nil {
				t.Fatalf("Expected a JSON log line, got %q: %v", output.String(), err)
			}
			if entry["level"] != tt.level {
				t.Errorf("Expected level %q, got %v", tt.level, entry["level"])
			}
			if entry["key"] != "value" {
				t.Errorf("Expected field key=value, got %v", entry["key"])
			}
		})
	}
}

func TestZerologLogger_LogLevelFiltering(t *testing.T) {
	output := bytes.Buffer{}
	zlog := zerolog.New(&output).Level(zerolog.WarnLevel)
	logger := NewLogger(&zlog)

	logger.Debug("debug message")
	logger.Info("info message")

	if output.Len() != 0 {
		t.Error("Expected debug and info to be filtered out")
	}

	logger.Warn("warn message")
	logger.Error("error message")

	if output.Len() == 0 {
		t.Error("Expected warn and error to be logged")
	}
}

func TestZerologLogger_Fields(t *testing.T) {
	output := bytes.Buffer{}
	zlog := zerolog.New(&output)
	logger := NewLogger(&zlog)

	logger.Info("user row updated",
		sheetsync.Field{Key: "email", Value: "a@b.com"},
		sheetsync.Field{Key: "row", Value: 7},
		sheetsync.Field{Key: "error", Value: errors.New("boom")},
	)

	var entry map[string]interface{}
	if err := json.Unmarshal(output.Bytes(), &entry); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if entry["email"] != "a@b.com" {
		t.Errorf("Expected email field, got %v", entry["email"])
	}
	if entry["row"] != float64(7) {
		t.Errorf("Expected row 7, got %v", entry["row"])
	}
	if entry["error"] != "boom" {
		t.Errorf("Expected error rendered as string, got %v", entry["error"])
	}
	if entry["message"] != "user row updated" {
		t.Errorf("Unexpected message: %v", entry["message"])
	}
}
