package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, LevelWarn)

	l.Debugf("debug message")
	l.Infof("info message")
	l.Warnf("warn message")
	l.Errorf("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("messages below level should be suppressed:\n%s", out)
	}
	if !strings.Contains(out, "WARN warn message") {
		t.Errorf("warn message missing:\n%s", out)
	}
	if !strings.Contains(out, "ERROR error message") {
		t.Errorf("error message missing:\n%s", out)
	}
}

func TestFatalfCallsHandler(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, LevelError)

	var got string
	l.SetFatalHandler(func(msg string) { got = msg })
	l.Fatalf("%scorruption detected", NSRangeDel)

	if !strings.Contains(buf.String(), "FATAL [rangedel] corruption detected") {
		t.Errorf("fatal message missing:\n%s", buf.String())
	}
	if got != "[rangedel] corruption detected" {
		t.Errorf("handler received %q", got)
	}
}

func TestDiscardIsSilent(t *testing.T) {
	// Must not panic or write anywhere.
	Discard.Errorf("x")
	Discard.Warnf("x")
	Discard.Infof("x")
	Discard.Debugf("x")
	Discard.Fatalf("x")
}
