package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" warn ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"nonsense", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "info", "json")
	log.Debug().Msg("hidden")
	log.Info().Int("nodes", 3).Msg("evaluated")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if rec["message"] != "evaluated" || rec["service"] != "lanegraph" || rec["nodes"] != float64(3) {
		t.Errorf("record = %v", rec)
	}
	if _, ok := rec["time"]; !ok {
		t.Error("missing timestamp")
	}
}

func TestConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug", "console")
	log.Debug().Str("mesh", "node a").Msg("rebuilt")
	out := buf.String()
	if !strings.Contains(out, "rebuilt") || !strings.Contains(out, "mesh=") {
		t.Errorf("console output = %q", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Error("console output should not be json")
	}
}

func TestNewWriterLeavesGlobalsAlone(t *testing.T) {
	before := zerolog.TimeFieldFormat
	var buf bytes.Buffer
	jsonLog := NewWriter(&buf, "info", "json")
	jsonLog.Info().Msg("x")
	consoleLog := NewWriter(&buf, "debug", "console")
	consoleLog.Info().Msg("y")
	if zerolog.TimeFieldFormat != before {
		t.Errorf("TimeFieldFormat changed from %q to %q", before, zerolog.TimeFieldFormat)
	}
}
