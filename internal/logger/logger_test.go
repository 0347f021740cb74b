package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func bufferLogger(buf *bytes.Buffer) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(buf),
		zapcore.DebugLevel,
	)
	return zap.New(core)
}

// Feature: certification-lifecycle, Property 40: Transition logs are structured
func TestProperty_TransitionLogsAreStructured(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("transition fields survive JSON encoding", prop.ForAll(
		func(id, from, to, actor string) bool {
			var buf bytes.Buffer
			logger := bufferLogger(&buf)

			logger.Info("Product status changed", Transition("product", id, from, to, actor)...)
			_ = logger.Sync()

			var entry map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Logf("FAIL: log line is not JSON: %v", err)
				return false
			}

			for _, key := range []string{"level", "timestamp", "message"} {
				if _, ok := entry[key]; !ok {
					t.Logf("FAIL: missing %s", key)
					return false
				}
			}

			return entry["entity"] == "product" &&
				entry["entity_id"] == id &&
				entry["from"] == from &&
				entry["to"] == to &&
				entry["actor_id"] == actor
		},
		gen.Identifier(),
		gen.OneConstOf("DRAFT", "NEW", "PENDING"),
		gen.OneConstOf("NEW", "PENDING", "APPROVED", "REJECTED"),
		gen.Identifier(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_ErrorLogsIncludeContext(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("error logs include context information", prop.ForAll(
		func(message string, errorMsg string) bool {
			var buf bytes.Buffer
			logger := bufferLogger(&buf).WithOptions(zap.AddStacktrace(zapcore.ErrorLevel))

			logger.Error(message, zap.String("error", errorMsg))
			_ = logger.Sync()

			var entry map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				return false
			}

			_, hasError := entry["error"]
			return hasError && entry["level"] == "error"
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestNewBuildsForEveryEnvironment(t *testing.T) {
	for _, env := range []string{"production", "development", "test"} {
		logger, err := New(env)
		if err != nil {
			t.Fatalf("New(%q) failed: %v", env, err)
		}
		if logger == nil {
			t.Fatalf("New(%q) returned nil logger", env)
		}
	}

	if NewWithDefaults() == nil {
		t.Fatal("NewWithDefaults returned nil logger")
	}
}
