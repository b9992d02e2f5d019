// -----------------------------------------------------------------------
// Crash protection - panic recovery and crash files
// -----------------------------------------------------------------------

package common

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
)

var (
	crashDir   = "./results"
	crashDirMu sync.RWMutex
)

// InstallCrashHandler sets the directory crash files are written to
func InstallCrashHandler(dir string) {
	if dir == "" {
		return
	}
	crashDirMu.Lock()
	crashDir = dir
	crashDirMu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: Failed to create crash directory: %v\n", err)
	}
}

// WriteCrashFile writes the panic, its stack and all goroutine stacks to
// crash-<timestamp>.log. Returns the path, or "" when nothing could be written.
func WriteCrashFile(panicVal interface{}, stackTrace string) string {
	crashDirMu.RLock()
	dir := crashDir
	crashDirMu.RUnlock()

	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", time.Now().Format("2006-01-02T15-04-05.000")))

	var report bytes.Buffer
	fmt.Fprintf(&report, "=== VIZCHECK CRASH REPORT ===\nTime: %s\nVersion: %s\n\n", time.Now().Format(time.RFC3339), GetFullVersion())
	fmt.Fprintf(&report, "=== PANIC VALUE ===\n%v\n\n", panicVal)
	fmt.Fprintf(&report, "=== STACK TRACE ===\n%s\n", stackTrace)
	fmt.Fprintf(&report, "=== ALL GOROUTINES ===\n%s\n", allGoroutineStacks())
	fmt.Fprintf(&report, "=== SYSTEM INFO ===\nNumGoroutine: %d\nGOOS: %s\nGOARCH: %s\n", runtime.NumGoroutine(), runtime.GOOS, runtime.GOARCH)

	if err := os.WriteFile(path, report.Bytes(), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: Failed to write crash file: %v\n%s", err, report.String())
		return ""
	}
	fmt.Fprintf(os.Stderr, "\n!!! FATAL CRASH - Report saved to: %s !!!\nPanic: %v\n", path, panicVal)
	return path
}

func allGoroutineStacks() string {
	buf := make([]byte, 64*1024)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) || len(buf) >= 16*1024*1024 {
			return string(buf[:n])
		}
		buf = make([]byte, len(buf)*2)
	}
}

func stackTrace() string {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// RecoverWithCrashFile writes a crash file and exits on panic.
// Usage: defer common.RecoverWithCrashFile()
func RecoverWithCrashFile() {
	if r := recover(); r != nil {
		WriteCrashFile(r, stackTrace())
		os.Exit(1)
	}
}

// RecoverGoroutine logs a panic in a background goroutine without exiting.
// Usage: defer common.RecoverGoroutine(logger, "name")
func RecoverGoroutine(logger arbor.ILogger, name string) {
	r := recover()
	if r == nil {
		return
	}
	stack := stackTrace()
	if logger == nil {
		fmt.Fprintf(os.Stderr, "PANIC in goroutine %s: %v\n%s\n", name, r, stack)
		return
	}
	logger.Error().
		Str("goroutine", name).
		Str("panic", fmt.Sprintf("%v", r)).
		Str("stack", stack).
		Msg("Recovered from panic in goroutine")
}

// SafeGo runs fn in a goroutine that survives panics
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	go func() {
		defer RecoverGoroutine(logger, name)
		fn()
	}()
}
