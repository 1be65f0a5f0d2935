package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/clog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/masq"
)

// Format is the log output encoding
type Format int

const (
	FormatConsole Format = iota + 1
	FormatJSON
)

// ParseFormat converts a format name to Format, ignoring case
func ParseFormat(name string) (Format, bool) {
	switch strings.ToLower(name) {
	case "console":
		return FormatConsole, true
	case "json":
		return FormatJSON, true
	default:
		return 0, false
	}
}

// SetDefault installs logger as the slog default
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}

// Quiet installs and returns a logger that drops everything below error and
// writes nothing
func Quiet() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	SetDefault(logger)
	return logger
}

// New creates a logger writing to w. Provider credentials, prompt store
// secrets and tagged fields are masked in both formats.
func New(w io.Writer, level slog.Level, format Format, stacktrace bool) *slog.Logger {
	redact := masq.New(
		masq.WithTag("secret"),
		masq.WithFieldPrefix("secret_"),
		masq.WithFieldName("APIKey"),
		masq.WithFieldName("ApiKey"),
		masq.WithFieldName("Authorization"),
		masq.WithFieldName("Token"),
		masq.WithFieldName("Password"),
	)

	switch format {
	case FormatConsole:
		hook := clog.GoerrHook
		if !stacktrace {
			hook = flattenGoerr
		}
		return slog.New(clog.New(
			clog.WithWriter(w),
			clog.WithLevel(level),
			clog.WithReplaceAttr(redact),
			clog.WithAttrHook(hook),
			clog.WithColorMap(consoleColors()),
		))

	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			AddSource:   true,
			Level:       level,
			ReplaceAttr: redact,
		}))

	default:
		panic(fmt.Sprintf("unsupported log format: %d", format))
	}
}

func consoleColors() *clog.ColorMap {
	return &clog.ColorMap{
		Level: map[slog.Level]*color.Color{
			slog.LevelDebug: color.New(color.FgGreen, color.Bold),
			slog.LevelInfo:  color.New(color.FgCyan, color.Bold),
			slog.LevelWarn:  color.New(color.FgYellow, color.Bold),
			slog.LevelError: color.New(color.FgRed, color.Bold),
		},
		LevelDefault: color.New(color.FgBlue, color.Bold),
		Time:         color.New(color.FgWhite),
		Message:      color.New(color.FgHiWhite),
		AttrKey:      color.New(color.FgHiCyan),
		AttrValue:    color.New(color.FgHiWhite),
	}
}

// flattenGoerr renders a goerr error as a group of its message, values and
// cause, without the stack
func flattenGoerr(_ []string, attr slog.Attr) *clog.HandleAttr {
	goErr, ok := attr.Value.Any().(*goerr.Error)
	if !ok {
		return nil
	}

	attrs := []any{slog.String("message", goErr.Error())}
	for k, v := range goErr.Values() {
		attrs = append(attrs, slog.Any(k, v))
	}
	if cause := goErr.Unwrap(); cause != nil {
		attrs = append(attrs, slog.Any("cause", cause))
	}

	grouped := slog.Group(attr.Key, attrs...)
	return &clog.HandleAttr{NewAttr: &grouped}
}

// ErrAttr creates an error attribute for logging
func ErrAttr(err error) slog.Attr {
	return slog.Any("error", err)
}
