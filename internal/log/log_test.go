package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestSetupJSONIncludesKeyValues(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, FormatJSON, LevelInfo)
	t.Cleanup(func() { Setup(nil, FormatText, LevelInfo) })

	Error("build failed", errors.New("boom"), "slot_duration", "00:00")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if rec["msg"] != "build failed" || rec["err"] != "boom" || rec["slot_duration"] != "00:00" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, FormatText, LevelWarn)
	t.Cleanup(func() { Setup(nil, FormatText, LevelInfo) })

	Info("hidden")
	Debug("hidden too")
	Warn("shown", "k", 1)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info/debug should be filtered: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "k=1") {
		t.Errorf("warn missing: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{"debug": LevelDebug, "": LevelInfo, "warning": LevelWarn, "ERROR": LevelError} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
