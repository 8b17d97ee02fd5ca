// Package console is the charmbracelet/log backend used by the cidoc
// binaries. The CLI writes to the command's stderr, the server and worker
// to the process stderr, optionally as JSON for log shippers.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Format selects how entries are rendered.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat accepts "text" or "json", case-insensitively. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown log format %q", s)
	}
}

// Logger implements logger.LoggerInstance on top of charmbracelet/log.
type Logger struct {
	logger *log.Logger
}

// Params configures a Logger. A nil Writer means os.Stderr.
type Params struct {
	Debug  bool
	Writer io.Writer
	// Prefix names the binary, e.g. "worker".
	Prefix string
	Format Format
}

// New returns a console logger.
func New(params Params) *Logger {
	w := params.Writer
	if w == nil {
		w = os.Stderr
	}
	level := log.InfoLevel
	if params.Debug {
		level = log.DebugLevel
	}
	opts := log.Options{
		ReportTimestamp: true,
		Level:           level,
		Prefix:          params.Prefix,
	}
	if params.Format == FormatJSON {
		opts.Formatter = log.JSONFormatter
	}
	return &Logger{logger: log.NewWithOptions(w, opts)}
}

func (c *Logger) Log(message string, keyvals ...any) {
	c.logger.Print(message, keyvals...)
}

func (c *Logger) Info(message string, keyvals ...any) {
	c.logger.Info(message, keyvals...)
}

func (c *Logger) Warn(message string, keyvals ...any) {
	c.logger.Warn(message, keyvals...)
}

func (c *Logger) Error(message string, keyvals ...any) {
	c.logger.Error(message, keyvals...)
}

func (c *Logger) Debug(message string, keyvals ...any) {
	c.logger.Debug(message, keyvals...)
}

// Fatal logs and exits the process.
func (c *Logger) Fatal(message string, keyvals ...any) {
	c.logger.Fatal(message, keyvals...)
}
