package logger

import (
	"fmt"
	"log"
	"os"
)

// Legacy printf-style helpers used during startup, before the structured
// logger is configured. Everything request-scoped should use GetLogger().

var std = log.New(os.Stdout, "", log.LstdFlags)

// Init initializes the plain startup logger
func Init() {
	std = log.New(os.Stdout, "", log.LstdFlags)
}

// Info logs an informational message
func Info(format string, args ...interface{}) {
	std.Output(2, "[INFO] "+fmt.Sprintf(format, args...)) //nolint:errcheck
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	std.Output(2, "[WARN] "+fmt.Sprintf(format, args...)) //nolint:errcheck
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	std.Output(2, "[ERROR] "+fmt.Sprintf(format, args...)) //nolint:errcheck
}
