package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"layerreduce/internal/config"
	"layerreduce/internal/logging"
	"layerreduce/internal/services"
)

func TestNewFromConfigWritesJSONLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Level = "info"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("run started", logging.String(logging.FieldRunID, "abc"))

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &record); err != nil {
		t.Fatalf("log file is not JSON: %v (%q)", err, content)
	}
	if record["msg"] != "run started" || record["run_id"] != "abc" || record["level"] != "info" {
		t.Fatalf("unexpected record: %v", record)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", record)
	}
}

func TestConsoleLoggerShowsCallerOnlyAtDebug(t *testing.T) {
	cases := []struct {
		level      string
		wantCaller bool
	}{
		{"info", false},
		{"debug", true},
	}
	for _, tc := range cases {
		t.Run(tc.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := logging.New(logging.Options{Format: "console", Level: tc.level, Console: &buf})
			if err != nil {
				t.Fatalf("New returned error: %v", err)
			}
			logger.Info("layer queued")
			if got := strings.Contains(buf.String(), ".go:"); got != tc.wantCaller {
				t.Fatalf("caller shown = %v, want %v: %q", got, tc.wantCaller, buf.String())
			}
		})
	}
}

func TestConsoleLoggerLiftsLayerIntoHeader(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithStage(services.WithLayer(context.Background(), "fx_smoke"), "rewriting")
	logging.WithContext(ctx, logging.NewComponentLogger(logger, "pipeline")).Info("frames written",
		logging.Int("frames", 3),
		logging.Strings("matte", []string{"fx_smoke"}),
	)

	text := buf.String()
	for _, want := range []string{"[pipeline]", "Layer fx_smoke (rewriting)", "frames written", "- frames: 3", "- matte: [fx_smoke]"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in %q", want, text)
		}
	}
}

func TestConsoleLoggerHidesRunIDAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("run started", logging.String(logging.FieldRunID, "abc"), logging.String("shot", "sh010"))
	if strings.Contains(buf.String(), "run_id") {
		t.Fatalf("run_id should be hidden at info: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "- shot: sh010") {
		t.Fatalf("expected shot field: %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "invalid", Console: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected info level filtering, got %q", buf.String())
	}
}

func TestLogFileKeepsDebugRecords(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", logging.LogFileName)
	logger, err := logging.New(logging.Options{Level: "info", Console: &console, FilePath: path})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("channel stats")

	if console.Len() != 0 {
		t.Fatalf("console should stay quiet at info: %q", console.String())
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), `"level":"debug"`) {
		t.Fatalf("expected debug record in file, got %q", content)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithLayer(ctx, "beauty")
	ctx = services.WithStage(ctx, "classifying")
	ctx = services.WithRunID(ctx, "run-xyz")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logging.WithContext(ctx, logger).Info("contextual log")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	for key, want := range map[string]string{
		logging.FieldLayer: "beauty",
		logging.FieldStage: "classifying",
		logging.FieldRunID: "run-xyz",
	} {
		if record[key] != want {
			t.Fatalf("field %s = %v, want %v", key, record[key], want)
		}
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logging.WarnWithContext(logger, "layer skipped", "layer_skipped", logging.String(logging.FieldImpact, "layer absent from output"))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record[logging.FieldEventType] != "layer_skipped" {
		t.Fatalf("unexpected event type: %v", record)
	}
	if record[logging.FieldErrorHint] == nil {
		t.Fatalf("expected default error hint: %v", record)
	}
	if record[logging.FieldImpact] != "layer absent from output" {
		t.Fatalf("impact overwritten: %v", record)
	}
}

func TestNewFromConfigToSendsConsoleOutputToWriter(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Format = "console"

	var buf bytes.Buffer
	logger, err := logging.NewFromConfigTo(&cfg, &buf)
	if err != nil {
		t.Fatalf("NewFromConfigTo returned error: %v", err)
	}
	logger.Warn("layer skipped", logging.Layer("bg"))

	if !strings.Contains(buf.String(), "layer skipped") {
		t.Fatalf("expected console output in writer, got %q", buf.String())
	}
	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), `"layer":"bg"`) {
		t.Fatalf("expected JSON record in log file, got %q", content)
	}
}
