package logger

import (
	"bytes"
	"strings"
	"testing"
)

func newTestLogger(level LogLevel) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := New(Config{
		Level:    level,
		Colorize: false,
		ShowTime: false,
		Output:   &buf,
	})
	return l, &buf
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newTestLogger(WARN)

	l.Debugf("debug line")
	l.Infof("info line")
	l.Warnf("warn line")
	l.Errorf("error line")

	out := buf.String()
	if strings.Contains(out, "debug line") || strings.Contains(out, "info line") {
		t.Errorf("suppressed levels leaked through: %q", out)
	}
	if !strings.Contains(out, "[WARN] warn line") {
		t.Errorf("missing warn output: %q", out)
	}
	if !strings.Contains(out, "[ERROR] error line") {
		t.Errorf("missing error output: %q", out)
	}
}

func TestFormatting(t *testing.T) {
	l, buf := newTestLogger(DEBUG)

	l.Infof("processed %d codes in %s", 42, "1.2s")
	if !strings.Contains(buf.String(), "processed 42 codes in 1.2s") {
		t.Errorf("format args not applied: %q", buf.String())
	}
}

func TestSetLevel(t *testing.T) {
	l, buf := newTestLogger(INFO)

	l.Debugf("hidden")
	l.SetLevel(DEBUG)
	l.Debugf("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line logged before SetLevel: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("debug line missing after SetLevel: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DEBUG,
		"INFO":    INFO,
		"Warning": WARN,
		"error":   ERROR,
		"FATAL":   FATAL,
		"bogus":   INFO,
		"":        INFO,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, expected %v", in, got, want)
		}
	}
}
