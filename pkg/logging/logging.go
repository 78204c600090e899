package logging

import (
	"os"
	"strings"

	"github.com/apsdehal/go-logger"
)

// NewLogger returns a named module logger writing to stdout.
func NewLogger(module string, logLevel string) *logger.Logger {
	l, _ := logger.New(module, 1, os.Stdout)
	l.SetFormat("%{time} [%{module}] [%{level}] %{message}")

	if strings.EqualFold(logLevel, "DEBUG") {
		l.SetLogLevel(logger.DebugLevel)
	} else {
		l.SetLogLevel(logger.InfoLevel)
	}

	return l
}
