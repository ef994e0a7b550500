package common

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

const (
	logFileName   = "zendesk-feedback-monitor.log"
	logTimeFormat = "15:04:05"
)

var (
	logger arbor.ILogger
	mu     sync.RWMutex
)

// InitLogger builds the process logger from config. Later calls are no-ops.
func InitLogger(config *LoggingConfig) error {
	mu.Lock()
	defer mu.Unlock()

	if logger != nil {
		return nil
	}

	l, err := newLogger(config)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

// GetLogger returns the process logger, falling back to the default logging
// config when InitLogger was never called.
func GetLogger() arbor.ILogger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		defaults := DefaultConfig().Logging
		if logger, _ = newLogger(&defaults); logger == nil {
			fmt.Fprintln(os.Stderr, "Warning: falling back to console-only logger")
			logger = arbor.NewLogger()
		}
	}
	return logger
}

// GetLogFilePath is the file the logger writes to, or where it would write
// when file output is disabled.
func GetLogFilePath() string {
	mu.RLock()
	l := logger
	mu.RUnlock()

	if l != nil {
		if path := l.GetLogFilePath(); path != "" {
			return path
		}
	}

	dir, err := logsDir()
	if err != nil {
		return filepath.Join("logs", logFileName)
	}
	return filepath.Join(dir, logFileName)
}

func newLogger(config *LoggingConfig) (arbor.ILogger, error) {
	l := arbor.NewLogger()
	text := config.Format != "json"

	if wantsOutput(config.Output, "file") {
		dir, err := logsDir()
		if err != nil {
			return nil, WrapError(err, ErrorTypeConfiguration, "LOG_DIR", "failed to resolve logs directory")
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, WrapError(err, ErrorTypeConfiguration, "LOG_DIR", "failed to create logs directory").
				WithContext("path", dir)
		}

		l = l.WithFileWriter(models.WriterConfiguration{
			Type:       models.LogWriterTypeFile,
			FileName:   filepath.Join(dir, logFileName),
			TimeFormat: logTimeFormat,
			MaxSize:    int64(config.MaxSize) * 1024 * 1024,
			MaxBackups: config.MaxBackups,
			TextOutput: text,
		})
	}

	if wantsOutput(config.Output, "console") {
		l = l.WithConsoleWriter(models.WriterConfiguration{
			Type:       models.LogWriterTypeConsole,
			TimeFormat: logTimeFormat,
			TextOutput: text,
		})
	}

	l = l.WithLevelFromString(config.Level)
	l.Debug().Str("level", config.Level).Str("output", config.Output).Msg("Logger initialized")

	return l, nil
}

// wantsOutput reports whether output ("file", "console", "both" or empty
// for both) includes the given writer.
func wantsOutput(output, writer string) bool {
	return output == "" || output == "both" || output == writer
}

// logsDir is the logs directory next to the executable
func logsDir() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(execPath), "logs"), nil
}
