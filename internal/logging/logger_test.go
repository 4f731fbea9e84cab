package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "convo.log")
	var console bytes.Buffer

	logger, err := New(Options{Path: path, Profile: "work", Console: &console})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("subscribed")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, data)
	}
	if line["msg"] != "subscribed" {
		t.Errorf("msg = %v, want subscribed", line["msg"])
	}
	if line["profile"] != "work" {
		t.Errorf("profile = %v, want work", line["profile"])
	}
	if _, ok := line["ts"]; !ok {
		t.Error("missing ts field")
	}
	if !strings.Contains(console.String(), "subscribed") {
		t.Errorf("console output = %q, want the message mirrored", console.String())
	}
}

func TestNewRespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "convo.log")
	logger, err := New(Options{Path: path, Level: "warn"})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	_ = logger.Sync()

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "hidden") {
		t.Error("info line written at warn level")
	}
	if !strings.Contains(string(data), "shown") {
		t.Error("warn line missing")
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(Options{Path: filepath.Join(t.TempDir(), "x.log"), Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}
