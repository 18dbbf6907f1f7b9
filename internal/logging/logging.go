// Package logging builds the logrus logger shared by the commands.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// New creates a logger writing to out at level in the given format
func New(level, format string, out io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case FormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("invalid log format %q: must be %s or %s", format, FormatText, FormatJSON)
	}

	return logger, nil
}

// LogError logs err with the component and operation it came from
func LogError(logger logrus.FieldLogger, component, operation string, err error) {
	logger.WithFields(logrus.Fields{
		"component": component,
		"operation": operation,
	}).Error(err.Error())
}
