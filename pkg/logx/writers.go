package logx

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	FormatPlain = "plain"
	FormatJSON  = "json"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// plainTimeFormat renders the "[DD/MM/YYYY HH:MM]" prefix of plain log lines.
const plainTimeFormat = "02/01/2006 15:04"

func newConsoleWriter(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: consoleTimeFormat,
		FormatCaller: func(i interface{}) string {
			s, _ := i.(string)
			return s
		},
	}
}

func fileWriter(w io.Writer, format string) io.Writer {
	if strings.EqualFold(strings.TrimSpace(format), FormatJSON) {
		return w
	}
	return newPlainWriter(w)
}

// newPlainWriter renders "[DD/MM/YYYY HH:MM] message key=value ..." lines
// with no level, caller or color.
func newPlainWriter(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:           w,
		NoColor:       true,
		PartsOrder:    []string{zerolog.TimestampFieldName, zerolog.MessageFieldName},
		FieldsExclude: []string{zerolog.CallerFieldName},
		FormatTimestamp: func(i interface{}) string {
			s, _ := i.(string)
			t, err := time.Parse(consoleTimeFormat, s)
			if err != nil {
				return "[" + s + "]"
			}
			return "[" + t.Local().Format(plainTimeFormat) + "]"
		},
	}
}

// openLogFile opens path for appending, creating parent directories.
func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}
