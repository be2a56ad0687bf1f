package core

import (
	"fmt"
	"sync/atomic"
)

var debugAsserts atomic.Bool

// SetDebug toggles debug assertions. When enabled a failed Assert panics;
// otherwise it only logs and lets the caller treat the input as a no-op.
func SetDebug(enabled bool) {
	debugAsserts.Store(enabled)
}

func IsDebug() bool {
	return debugAsserts.Load()
}

// Assert reports whether cond holds.
func Assert(cond bool, format string, args ...interface{}) bool {
	if cond {
		return true
	}
	msg := fmt.Sprintf(format, args...)
	if debugAsserts.Load() {
		LogError("assertion failed: %s", msg)
		panic("assertion failed: " + msg)
	}
	LogWarn("ignored: %s", msg)
	return false
}
