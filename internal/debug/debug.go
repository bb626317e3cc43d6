// Package debug provides a lightweight, stderr-only tracing gate used
// across the indexing pipeline. It never writes to stdout: stdout is
// reserved for machine-readable CLI output (§6).
package debug

import (
	"fmt"
	"os"
	"sync"
)

// enabled gates verbose tracing. Toggled via SetEnabled or the
// MAGELLAN_DEBUG environment variable at process start.
var (
	mu      sync.RWMutex
	enabled = os.Getenv("MAGELLAN_DEBUG") != ""
)

// SetEnabled turns verbose tracing on or off at runtime.
func SetEnabled(v bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = v
}

func isEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// Logf writes a trace line to stderr if debug tracing is enabled.
func Logf(format string, args ...interface{}) {
	if !isEnabled() {
		return
	}
	fmt.Fprintf(os.Stderr, "[magellan] "+format+"\n", args...)
}

// Watch logs watch-pipeline trace lines.
func Watch(format string, args ...interface{}) { Logf("watch: "+format, args...) }

// Reconcile logs file-reconciler trace lines.
func Reconcile(format string, args ...interface{}) { Logf("reconcile: "+format, args...) }

// Parse logs parser/extractor trace lines.
func Parse(format string, args ...interface{}) { Logf("parse: "+format, args...) }
