package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/klauern/marksync/internal/logging"
)

func TestNew_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Options{Level: logging.LevelInfo, Output: &buf})

	logger.Info("fetched items", logging.Side("bookmark"), logging.Count(3))

	output := buf.String()
	if !strings.Contains(output, "fetched items") {
		t.Errorf("expected output to contain message, got: %s", output)
	}
	if !strings.Contains(output, "side=bookmark") || !strings.Contains(output, "count=3") {
		t.Errorf("expected side and count attributes, got: %s", output)
	}
}

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Options{Level: logging.LevelInfo, Output: &buf, JSON: true})

	logger.Info("apply failed", logging.Item("b1"), logging.Err(errors.New("boom")))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}
	if entry["item"] != "b1" {
		t.Errorf("expected item=b1, got: %v", entry["item"])
	}
	if entry["error"] != "boom" {
		t.Errorf("expected error=boom, got: %v", entry["error"])
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Options{Level: logging.LevelWarn, Output: &buf})

	logger.Info("hidden")
	logger.Warn("shown")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(output, "shown") {
		t.Error("warn message should be logged at warn level")
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := logging.DefaultOptions()
	if opts.Level != logging.LevelWarn {
		t.Errorf("DefaultOptions().Level = %v, want %v", opts.Level, logging.LevelWarn)
	}
	if opts.JSON {
		t.Error("DefaultOptions().JSON should be false")
	}
}

func TestAttributeHelpers(t *testing.T) {
	tests := map[string]struct {
		attr    slog.Attr
		wantKey string
		wantVal string
	}{
		"Side":      {attr: logging.Side("notebook"), wantKey: "side", wantVal: "notebook"},
		"Adapter":   {attr: logging.Adapter("raindrop"), wantKey: "adapter", wantVal: "raindrop"},
		"Item":      {attr: logging.Item("42"), wantKey: "item", wantVal: "42"},
		"Link":      {attr: logging.Link("b1", "n1"), wantKey: "link", wantVal: "b1<->n1"},
		"RunID":     {attr: logging.RunID("r-1"), wantKey: "run_id", wantVal: "r-1"},
		"Path":      {attr: logging.Path("/tmp/state.json"), wantKey: "path", wantVal: "/tmp/state.json"},
		"Operation": {attr: logging.Operation("commit"), wantKey: "operation", wantVal: "commit"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if tt.attr.Key != tt.wantKey {
				t.Errorf("got key %q, want %q", tt.attr.Key, tt.wantKey)
			}
			if tt.attr.Value.String() != tt.wantVal {
				t.Errorf("got value %q, want %q", tt.attr.Value.String(), tt.wantVal)
			}
		})
	}
}

func TestErr_NilError(t *testing.T) {
	if attr := logging.Err(nil); attr.Key != "" {
		t.Errorf("expected empty key for nil error, got: %q", attr.Key)
	}
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Options{Level: logging.LevelInfo, Output: &buf})

	ctx := logging.NewContext(context.Background(), logger)
	logging.WithContext(ctx).Info("context message")

	if !strings.Contains(buf.String(), "context message") {
		t.Error("expected WithContext to use the logger from context")
	}
	if logging.FromContext(context.Background()) != nil {
		t.Error("expected nil logger from empty context")
	}
}

func TestSetDefaultAndPackageLevel(t *testing.T) {
	var buf bytes.Buffer
	logging.SetDefault(logging.New(logging.Options{Level: logging.LevelDebug, Output: &buf}))
	t.Cleanup(func() { logging.SetDefault(logging.New(logging.DefaultOptions())) })

	logging.Debug("debug message")
	logging.Info("info message")
	logging.With("component", "engine").Warn("warn message")
	logging.Timer("fetch")()

	output := buf.String()
	for _, want := range []string{"debug message", "info message", "component=engine", "operation=fetch", "duration="} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got: %s", want, output)
		}
	}
}

func TestOr(t *testing.T) {
	if logging.Or(nil) == nil {
		t.Error("Or(nil) should return the default logger")
	}
	l := logging.New(logging.DefaultOptions())
	if logging.Or(l) != l {
		t.Error("Or(l) should return l")
	}
}
