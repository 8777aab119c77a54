package logging

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// Logger wraps the charmbracelet logger so callers do not import it directly.
type Logger struct {
	*log.Logger
}

var (
	logger *Logger
	once   sync.Once
)

// Setup configures the process logger. Debug output is enabled for the dev
// environment or when DEBUG=1. Calling Setup more than once has no effect.
func Setup(env string) {
	once.Do(func() {
		logger = newLogger(os.Stderr, env == "dev" || os.Getenv("DEBUG") == "1")
	})
}

func newLogger(w io.Writer, debug bool) *Logger {
	base := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          "smartfile-qa",
	})
	if debug {
		base.SetLevel(log.DebugLevel)
	} else {
		base.SetLevel(log.InfoLevel)
	}
	return &Logger{Logger: base}
}

func Debug(msg interface{}, keyvals ...interface{}) {
	ensureInitialized()
	logger.Debug(msg, keyvals...)
}

func Info(msg interface{}, keyvals ...interface{}) {
	ensureInitialized()
	logger.Info(msg, keyvals...)
}

func Warn(msg interface{}, keyvals ...interface{}) {
	ensureInitialized()
	logger.Warn(msg, keyvals...)
}

func Error(msg interface{}, keyvals ...interface{}) {
	ensureInitialized()
	logger.Error(msg, keyvals...)
}

// Fatal logs and exits the process.
func Fatal(msg interface{}, keyvals ...interface{}) {
	ensureInitialized()
	logger.Fatal(msg, keyvals...)
}

// Get returns the process logger, creating a default one if Setup was never called.
func Get() *Logger {
	ensureInitialized()
	return logger
}

func ensureInitialized() {
	if logger == nil {
		Setup("")
	}
}
