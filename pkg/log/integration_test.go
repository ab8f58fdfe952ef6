package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/YuminosukeSato/scnnexp/pkg/errors"
)

func TestTestLoggerLevels(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationFit)
	testLogger.Warn("warning message", "warning_code", "TEST_WARNING")
	testLogger.Error("error message", fmt.Errorf("test error"), ErrorCodeKey, ErrorEmptyData)

	if buffer.String() == "" {
		t.Fatal("Expected log output, got empty string")
	}

	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		if !testLogger.ContainsMessage(msg) {
			t.Errorf("%q not found in output", msg)
		}
	}

	if !testLogger.ContainsField("number", 42.0) {
		t.Error("Expected field number=42 not found")
	}
	if !testLogger.ContainsField("error", "test error") {
		t.Error("Expected leading error to be logged under the error key")
	}
}

func TestTestLoggerWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	experimentLogger := testLogger.With(
		ExperimentKey, "40sim_1024sides_0.5noise_2order_3sigma",
		OrderKey, 2,
	)
	experimentLogger.Info("contextual message", OperationKey, OperationFit)

	if !testLogger.ContainsField(ExperimentKey, "40sim_1024sides_0.5noise_2order_3sigma") {
		t.Error("Experiment context not found")
	}
	if !testLogger.ContainsField(OrderKey, 2.0) {
		t.Error("Order context not found")
	}
}

func TestTestLoggerEnabled(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)
	ctx := context.Background()

	if !testLogger.Enabled(ctx, LevelInfo) || !testLogger.Enabled(ctx, LevelError) {
		t.Error("Logger should be enabled for Info and Error")
	}
	if testLogger.Enabled(ctx, LevelDebug) {
		t.Error("Logger should not be enabled for Debug level")
	}

	testLogger.Debug("this should not appear")
	if testLogger.ContainsMessage("this should not appear") {
		t.Error("Debug message should not appear when level is Info")
	}
}

func TestTestLoggerConcurrent(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				testLogger.Info(fmt.Sprintf("goroutine %d message %d", id, j))
			}
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	if err != nil {
		t.Fatalf("Failed to parse log entries: %v", err)
	}
	if len(entries) != 20 {
		t.Errorf("Expected 20 log entries, got %d", len(entries))
	}
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelInfo)

	logger.Debug("hidden")
	logger.With(ExperimentKey, "exp").Info("Training started", SamplesKey, 100)
	logger.Error("Fit failed", errors.NewModelError("Readout.Fit", "empty data", errors.ErrEmptyData))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}

	var info map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &info); err != nil {
		t.Fatal(err)
	}
	if info["message"] != "Training started" || info[ExperimentKey] != "exp" || info[SamplesKey] != 100.0 {
		t.Errorf("unexpected info entry: %v", info)
	}

	var errEntry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[1]), &errEntry); err != nil {
		t.Fatal(err)
	}
	if errEntry["level"] != "error" {
		t.Errorf("level = %v", errEntry["level"])
	}
	if !strings.Contains(fmt.Sprint(errEntry["error"]), "empty data") {
		t.Errorf("error field = %v", errEntry["error"])
	}

	if logger.Enabled(context.Background(), LevelDebug) {
		t.Error("debug should be disabled at info level")
	}
}

func TestZerologWarnHook(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelInfo)
	logger.InstallWarnHook()
	defer errors.SetZerologWarnFunc(nil)

	errors.Warn(errors.NewCleanupWarning("checkpoints/exp", fmt.Errorf("busy")))

	out := buf.String()
	if !strings.Contains(out, "CleanupWarning") || !strings.Contains(out, "checkpoints/exp") {
		t.Errorf("warning not logged as structured object: %s", out)
	}
}

func TestSetupLoggerInstallsDefault(t *testing.T) {
	previous := GetLogger()
	defer func() {
		SetLogger(previous)
		errors.SetZerologWarnFunc(nil)
	}()

	logger, err := SetupLogger("debug")
	if err != nil {
		t.Fatalf("SetupLogger() error = %v", err)
	}
	if GetLogger() != Logger(logger) {
		t.Error("GetLogger() should return the logger installed by SetupLogger")
	}
	if !GetLogger().Enabled(context.Background(), LevelDebug) {
		t.Error("installed logger should have debug enabled")
	}

	if _, err := SetupLogger("verbose"); err == nil {
		t.Fatal("SetupLogger() should reject an unknown level")
	}
	if GetLogger() != Logger(logger) {
		t.Error("a rejected level should leave the installed logger in place")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
