// Package logger provides the process-wide logging facade for streamgate.
// Components receive a named hclog.Logger; the package-level helpers are used
// during startup and module loading where no component logger exists yet.
package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
)

var (
	rootMu sync.RWMutex
	root   = hclog.New(&hclog.LoggerOptions{
		Name:   "streamgate",
		Level:  hclog.Info,
		Output: os.Stderr,
	})
)

// Configure replaces the root logger using the given level and format.
// Format "json" switches to JSON lines; anything else is human readable.
func Configure(level, format string) hclog.Logger {
	l := hclog.New(&hclog.LoggerOptions{
		Name:       "streamgate",
		Level:      hclog.LevelFromString(strings.ToLower(level)),
		JSONFormat: strings.EqualFold(format, "json"),
		Output:     os.Stderr,
	})
	if l.GetLevel() == hclog.NoLevel {
		l.SetLevel(hclog.Info)
	}

	rootMu.Lock()
	root = l
	rootMu.Unlock()
	return l
}

// Root returns the current root logger.
func Root() hclog.Logger {
	rootMu.RLock()
	defer rootMu.RUnlock()
	return root
}

// Named returns a sub-logger of the root logger.
func Named(name string) hclog.Logger {
	return Root().Named(name)
}

// Info logs informational messages
func Info(format string, args ...interface{}) {
	Root().Info(fmt.Sprintf(format, args...))
}

// Warn logs warning messages
func Warn(format string, args ...interface{}) {
	Root().Warn(fmt.Sprintf(format, args...))
}

// Error logs error messages
func Error(format string, args ...interface{}) {
	Root().Error(fmt.Sprintf(format, args...))
}

// Debug logs debug messages
func Debug(format string, args ...interface{}) {
	l := Root()
	if l.IsDebug() {
		l.Debug(fmt.Sprintf(format, args...))
	}
}
