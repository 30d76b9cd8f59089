package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/parleylabs/parley/pkg/config"
)

var (
	defaultLogger *log.Logger
	logFile       *os.File
)

// Init initializes the default logger from the global config. Safe to call
// more than once; later calls are no-ops.
func Init() error {
	if defaultLogger != nil {
		return nil
	}

	settings := config.Get()
	level, err := log.ParseLevel(settings.Logging.Level)
	if err != nil {
		level = log.InfoLevel
	}

	logPath := settings.Logging.LogFile
	if !filepath.IsAbs(logPath) {
		logPath = config.BuildSettingsPath(filepath.Base(logPath))
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if settings.Logging.Persist {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(logPath, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	logFile = file
	defaultLogger = log.NewWithOptions(file, log.Options{
		Level:           level,
		ReportTimestamp: true,
	})

	return nil
}

// WithComponent returns a logger tagged with a component name. Falls back to
// a stderr logger when Init has not run, so early call sites never panic.
func WithComponent(name string) *log.Logger {
	return get().With("component", name)
}

func get() *log.Logger {
	if defaultLogger == nil {
		return log.New(os.Stderr)
	}
	return defaultLogger
}

func Debug(msg string, keyvals ...interface{}) {
	get().Debug(msg, keyvals...)
}

func Info(msg string, keyvals ...interface{}) {
	get().Info(msg, keyvals...)
}

func Warn(msg string, keyvals ...interface{}) {
	get().Warn(msg, keyvals...)
}

func Error(msg string, keyvals ...interface{}) {
	get().Error(msg, keyvals...)
}

// SetOutput redirects the default logger, useful in tests.
func SetOutput(w io.Writer) {
	get().SetOutput(w)
}

// Close closes the log file if one was opened.
func Close() error {
	if logFile != nil {
		err := logFile.Close()
		logFile = nil
		defaultLogger = nil
		return err
	}
	return nil
}
