package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelDebug)
	return slog.New(newConsoleHandler(buf, levelVar))
}

func TestConsoleHandlerHoistsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := WithComponent(newTestLogger(&buf), "inspection")
	logger.Info("item saved", String(FieldPowder, "순철분말"), String(FieldLot, "LOT-001"))

	line := buf.String()
	if !strings.Contains(line, "[inspection]") {
		t.Fatalf("component not hoisted: %q", line)
	}
	if !strings.Contains(line, "powder=순철분말") || !strings.Contains(line, "lot=LOT-001") {
		t.Fatalf("identity fields missing: %q", line)
	}
}

func TestConsoleHandlerOrdersIdentityFirst(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)
	logger.Info("evaluated", String("verdict", "PASS"), String(FieldLot, "L1"), String(FieldPowder, "P1"))

	line := buf.String()
	powderIdx := strings.Index(line, "powder=")
	lotIdx := strings.Index(line, "lot=")
	verdictIdx := strings.Index(line, "verdict=")
	if powderIdx < 0 || lotIdx < 0 || verdictIdx < 0 {
		t.Fatalf("fields missing: %q", line)
	}
	if !(powderIdx < lotIdx && lotIdx < verdictIdx) {
		t.Fatalf("identity fields not ordered first: %q", line)
	}
}

func TestConsoleHandlerQuotesSpacedValues(t *testing.T) {
	var buf bytes.Buffer
	newTestLogger(&buf).Warn("rejected", String("reason", "weight deviation over tolerance"))
	if !strings.Contains(buf.String(), `reason="weight deviation over tolerance"`) {
		t.Fatalf("value not quoted: %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := NewNop()
	logger.Error("should not panic", Error(nil))
}
