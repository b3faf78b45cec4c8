package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic recovers a panic in a background job and logs it. It must be
// deferred directly:
//
//	defer observability.RecoverPanic(logger, "audit export job")
//
// The panic is not re-raised; the job simply ends.
func RecoverPanic(logger *Logger, where string) {
	if r := recover(); r != nil {
		LogPanic(logger, where, r)
	}
}

// LogPanic logs a recovered panic value with the current stack
func LogPanic(logger *Logger, where string, value interface{}) {
	logger.WithFields(map[string]interface{}{
		"panic":   value,
		"stack":   string(debug.Stack()),
		"context": where,
	}).Error("PANIC recovered")
}

// PanicError converts a recovered value into an error, or nil when nothing
// panicked
func PanicError(value interface{}) error {
	if value == nil {
		return nil
	}
	if err, ok := value.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", value)
}
