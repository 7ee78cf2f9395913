package ldlog

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	loggers := NewLoggers(&buf, Warn)
	loggers.DataSource.Infof("should not appear")
	loggers.DataSource.Warnf("should appear: %d", 42)

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("expected info-level message to be filtered out, got %q", out)
	}
	if !strings.Contains(out, "should appear: 42") {
		t.Fatalf("expected warn-level message to appear, got %q", out)
	}
}

func TestSubsystemsAreIndependentlyLabeled(t *testing.T) {
	var buf bytes.Buffer
	loggers := NewLoggers(&buf, Debug)
	loggers.Events.Debugf("hello")
	if !strings.Contains(buf.String(), `"subsystem":"events"`) {
		t.Fatalf("expected subsystem field in output, got %q", buf.String())
	}
}
