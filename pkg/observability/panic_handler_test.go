package observability

import (
	"bytes"
	"errors"
	"testing"
)

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, FormatJSON, &buf)

	func() {
		defer RecoverPanic(logger, "audit export job")
		panic("export exploded")
	}()

	entry := decodeEntry(t, &buf)
	if entry["panic"] != "export exploded" {
		t.Errorf("Expected panic value, got %v", entry["panic"])
	}
	if entry["context"] != "audit export job" {
		t.Errorf("Expected context, got %v", entry["context"])
	}
	if entry["stack"] == "" || entry["stack"] == nil {
		t.Error("Expected a stack trace")
	}
}

func TestRecoverPanic_NoPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, FormatJSON, &buf)

	func() {
		defer RecoverPanic(logger, "quiet job")
	}()

	if buf.Len() != 0 {
		t.Errorf("Expected no log output, got %q", buf.String())
	}
}

func TestPanicError(t *testing.T) {
	if err := PanicError(nil); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}

	if err := PanicError("boom"); err == nil || err.Error() != "panic: boom" {
		t.Errorf("Expected panic: boom, got %v", err)
	}

	cause := errors.New("nil map write")
	if err := PanicError(cause); !errors.Is(err, cause) {
		t.Errorf("Expected wrapped cause, got %v", err)
	}
}
