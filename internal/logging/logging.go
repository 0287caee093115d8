package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// New builds the console logger. In production it emits JSON for log
// aggregation; otherwise it uses the human-readable text formatter.
func New(production bool, level string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	if production {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})
	}

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// OpenFile opens (truncating) a log file under dir. The dashboard logs there so
// that log lines do not corrupt the terminal UI.
func OpenFile(dir, name string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// WithChannel returns a logger scoped to one realtime channel.
func WithChannel(logger logrus.FieldLogger, channel, url string) logrus.FieldLogger {
	return logger.WithFields(logrus.Fields{
		"component": "realtime",
		"channel":   channel,
		"url":       url,
	})
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
