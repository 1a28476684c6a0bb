// Package log is the client's leveled logger. A library has no business
// installing a SIGTERM handler or calling os.Exit the way a standalone
// binary might, so that part is dropped; debug-gating moves from a CLI flag
// to an atomic toggle driven by Config.LogDebug.
package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"
)

var (
	stdLogFlags     = log.LstdFlags | log.Lshortfile | log.LUTC
	outputCallDepth = 2

	DebugLogger = log.New(os.Stderr, "DEBUG: ", stdLogFlags)
	InfoLogger  = log.New(os.Stderr, "INFO: ", stdLogFlags)
	ErrorLogger = log.New(os.Stderr, "ERROR: ", stdLogFlags)
	FatalLogger = log.New(os.Stderr, "FATAL: ", log.LstdFlags|log.Llongfile|log.LUTC)

	debugEnabled atomic.Bool
)

// SetDebug toggles debug-level logging; called once from ceresdb.Init based
// on Config.LogDebug.
func SetDebug(enabled bool) {
	debugEnabled.Store(enabled)
}

// SuppressOutput silences (or restores) every level, used by tests to keep
// expected log noise out of test output.
func SuppressOutput(suppress bool) {
	var w io.Writer = os.Stderr
	if suppress {
		w = io.Discard
	}
	DebugLogger.SetOutput(w)
	InfoLogger.SetOutput(w)
	ErrorLogger.SetOutput(w)
	FatalLogger.SetOutput(w)
}

func Debugf(format string, args ...interface{}) {
	if !debugEnabled.Load() {
		return
	}
	_ = DebugLogger.Output(outputCallDepth, fmt.Sprintf(format, args...))
}

func Infof(format string, args ...interface{}) {
	_ = InfoLogger.Output(outputCallDepth, fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...interface{}) {
	_ = ErrorLogger.Output(outputCallDepth, fmt.Sprintf(format, args...))
}

func Fatalf(format string, args ...interface{}) {
	_ = FatalLogger.Output(outputCallDepth, fmt.Sprintf(format, args...))
}
