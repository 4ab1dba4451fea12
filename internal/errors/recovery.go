package errors

import (
	"fmt"
	"runtime/debug"
)

// PanicError represents an error recovered from a panic inside a reconciliation
// pass or an alarm notifier
type PanicError struct {
	Value      interface{} // The panic value
	Stacktrace string      // Full stack trace
}

// Error implements the error interface
func (p *PanicError) Error() string {
	return fmt.Sprintf("panic recovered: %v", p.Value)
}

// Recover converts a recovered panic value into a *PanicError. It must be passed
// the result of recover() from the deferred function itself:
//
//	defer func() {
//		if perr := errors.Recover(recover()); perr != nil { ... }
//	}()
func Recover(r interface{}) *PanicError {
	if r == nil {
		return nil
	}
	return &PanicError{
		Value:      r,
		Stacktrace: string(debug.Stack()),
	}
}

// Guard runs fn and returns any panic it raises as a *PanicError
func Guard(fn func()) (err error) {
	defer func() {
		if perr := Recover(recover()); perr != nil {
			err = perr
		}
	}()
	fn()
	return nil
}

// FormatPanicForLog returns a formatted string suitable for logging
func FormatPanicForLog(panicErr *PanicError) string {
	return fmt.Sprintf("PANIC: %v\n\nStack Trace:\n%s", panicErr.Value, panicErr.Stacktrace)
}
