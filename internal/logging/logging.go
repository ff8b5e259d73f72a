// Package logging configures the shared application logger.
package logging

import (
	"strings"

	"github.com/charmbracelet/log"
)

// Default is the process-wide logger. Packages take a *log.Logger in their
// constructors and fall back to this when given nil.
var Default = log.Default()

// Init applies the configured level and output format to the default logger.
func Init(level string) {
	Default.SetTimeFormat("2006-01-02 15:04:05")
	Default.SetLevel(parseLevel(level))
}

func parseLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
