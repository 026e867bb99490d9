package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json")
	defer InitWithWriter(&buf, "INFO", "text")

	Info("part uploaded", "part", 3, "bytes", 1024)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "part uploaded" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["part"] != float64(3) {
		t.Errorf("part = %v", entry["part"])
	}
}

func TestLevelGate(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "WARN", "text")
	defer InitWithWriter(&buf, "INFO", "text")

	Debug("hidden")
	Info("hidden too")
	Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("low-severity lines leaked through the gate: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestTextFormatIncludesAttrs(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text")

	Info("object completed", "key", "2024/01/15/host-000000.journal")

	if !strings.Contains(buf.String(), "key=2024/01/15/host-000000.journal") {
		t.Errorf("attribute missing from text output: %q", buf.String())
	}
}
