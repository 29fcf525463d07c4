package debug

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

// capture swaps *f for a pipe while fn runs and returns what was written.
func capture(t *testing.T, f **os.File, fn func()) string {
	t.Helper()
	old := *f
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	*f = w
	defer func() { *f = old }()

	fn()

	w.Close()
	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

// restore snapshots the package switches for the duration of t.
func restore(t *testing.T) {
	t.Helper()
	oldEnabled, oldVerbose, oldQuiet := enabled, verboseMode, quietMode
	t.Cleanup(func() {
		enabled, verboseMode, quietMode = oldEnabled, oldVerbose, oldQuiet
	})
}

func TestLogf(t *testing.T) {
	tests := []struct {
		name       string
		enabled    bool
		verbose    bool
		wantOutput string
	}{
		{"outputs when enabled", true, false, "cascade: 3\n"},
		{"outputs when verbose", false, true, "cascade: 3\n"},
		{"no output when disabled", false, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restore(t)
			enabled, verboseMode = tt.enabled, tt.verbose

			got := capture(t, &os.Stderr, func() { Logf("cascade: %d\n", 3) })
			if got != tt.wantOutput {
				t.Errorf("Logf() output = %q, want %q", got, tt.wantOutput)
			}
			if Enabled() != (tt.enabled || tt.verbose) {
				t.Errorf("Enabled() = %v", Enabled())
			}
		})
	}
}

func TestPrintNormalRespectsQuiet(t *testing.T) {
	restore(t)
	var buf bytes.Buffer

	SetQuiet(false)
	PrintNormal(&buf, "moved %d items\n", 2)
	PrintlnNormal(&buf, "done")
	if got := buf.String(); got != "moved 2 items\ndone\n" {
		t.Errorf("normal output = %q", got)
	}

	buf.Reset()
	SetQuiet(true)
	if !IsQuiet() {
		t.Fatal("IsQuiet() = false after SetQuiet(true)")
	}
	PrintNormal(&buf, "moved %d items\n", 2)
	PrintlnNormal(&buf, "done")
	if buf.Len() != 0 {
		t.Errorf("quiet mode printed %q", buf.String())
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		quiet   bool
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{name: "default", want: zapcore.WarnLevel},
		{name: "configured", in: "INFO", want: zapcore.InfoLevel},
		{name: "verbose wins", verbose: true, in: "error", want: zapcore.DebugLevel},
		{name: "quiet", quiet: true, in: "info", want: zapcore.ErrorLevel},
		{name: "invalid", in: "loud", want: zapcore.WarnLevel, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restore(t)
			enabled = false
			SetVerbose(tt.verbose)
			SetQuiet(tt.quiet)

			got, err := Level(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Level(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Level(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewLoggerJSON(t *testing.T) {
	restore(t)
	enabled, verboseMode, quietMode = false, false, false

	var buf bytes.Buffer
	logger, err := NewLogger("json", "info", zapcore.AddSync(&buf))
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("cascade committed")
	_ = logger.Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if entry["msg"] != "cascade committed" || entry["level"] != "info" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestNewLoggerConsoleAndErrors(t *testing.T) {
	restore(t)
	enabled, verboseMode, quietMode = false, false, false

	var buf bytes.Buffer
	logger, err := NewLogger("", "warn", zapcore.AddSync(&buf))
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Warn("workflow reload failed")
	if !strings.Contains(buf.String(), "workflow reload failed") {
		t.Errorf("console output = %q", buf.String())
	}

	if _, err := NewLogger("xml", "warn", zapcore.AddSync(&buf)); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := NewLogger("json", "loud", zapcore.AddSync(&buf)); err == nil {
		t.Error("expected error for unknown level")
	}
	quiet, err := NewLogger("json", "none", zapcore.AddSync(&buf))
	if err != nil {
		t.Fatalf("NewLogger none: %v", err)
	}
	buf.Reset()
	quiet.Error("dropped")
	if buf.Len() != 0 {
		t.Errorf("level none wrote %q", buf.String())
	}
	if NewStderrLogger("xml", "warn") == nil {
		t.Error("NewStderrLogger returned nil")
	}
}
