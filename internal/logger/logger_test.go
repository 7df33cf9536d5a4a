package logger

import (
	"bytes"
	"strings"
	"testing"
)

func resetLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	SetOutput(buf)
	t.Cleanup(func() {
		SetOutput(bytesDiscard{})
		SetLevel(LevelWarn)
	})
	return buf
}

type bytesDiscard struct{}

func (bytesDiscard) Write(p []byte) (int, error) { return len(p), nil }

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestInitVerbosity(t *testing.T) {
	buf := resetLogger(t)

	Init(false)
	Debug("hidden debug")
	Info("hidden info")
	Warn("shown warn")

	out := buf.String()
	if strings.Contains(out, "hidden debug") || strings.Contains(out, "hidden info") {
		t.Errorf("debug/info leaked at default level: %q", out)
	}
	if !strings.Contains(out, "shown warn") {
		t.Errorf("warn missing: %q", out)
	}

	buf.Reset()
	Init(true)
	Debug("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Errorf("debug missing in verbose mode: %q", buf.String())
	}
}

func TestLogFormat(t *testing.T) {
	buf := resetLogger(t)
	SetLevel(LevelDebug)

	Info("renewing %s", "example.com")

	out := buf.String()
	if !strings.HasPrefix(out, "[INFO] ") {
		t.Errorf("missing level prefix: %q", out)
	}
	if !strings.Contains(out, "renewing example.com") {
		t.Errorf("missing formatted message: %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Errorf("missing trailing newline: %q", out)
	}
}

func TestFieldsAreSorted(t *testing.T) {
	buf := resetLogger(t)
	SetLevel(LevelDebug)

	InfoFields("attempt finished", map[string]interface{}{
		"outcome": "success",
		"domains": "example.com",
		"took":    "3s",
	})

	out := buf.String()
	di := strings.Index(out, "domains=example.com")
	oi := strings.Index(out, "outcome=success")
	ti := strings.Index(out, "took=3s")
	if di == -1 || oi == -1 || ti == -1 {
		t.Fatalf("missing fields: %q", out)
	}
	if !(di < oi && oi < ti) {
		t.Errorf("fields not sorted by key: %q", out)
	}
}

func TestLogErrorNil(t *testing.T) {
	buf := resetLogger(t)
	SetLevel(LevelDebug)

	LogError(nil, "should not log")
	if buf.Len() != 0 {
		t.Errorf("LogError(nil) wrote output: %q", buf.String())
	}
}
