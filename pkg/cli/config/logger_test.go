package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/shikigami/pkg/utils/logging"
)

func TestLoggerConfigure(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	t.Run("quiet ignores other settings", func(t *testing.T) {
		x := &Logger{quiet: true, level: "bogus"}
		logger, closer, err := x.Configure()
		gt.NoError(t, err).Required()
		defer closer()
		gt.False(t, logger.Enabled(t.Context(), slog.LevelInfo))
	})

	t.Run("json to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "shikigami.log")
		x := &Logger{level: "debug", format: "json", output: path}
		logger, closer, err := x.Configure()
		gt.NoError(t, err).Required()

		logger.Info("hello", slog.String("agent", "scriptwriter"))
		closer()

		raw, err := os.ReadFile(path)
		gt.NoError(t, err).Required()
		gt.S(t, string(raw)).Contains(`"agent":"scriptwriter"`)
	})

	t.Run("invalid level", func(t *testing.T) {
		x := &Logger{level: "verbose", format: "console", output: "stdout"}
		_, _, err := x.Configure()
		gt.Error(t, err)
	})

	t.Run("invalid format", func(t *testing.T) {
		x := &Logger{level: "info", format: "xml", output: "stdout"}
		_, _, err := x.Configure()
		gt.Error(t, err)
	})

	t.Run("format name is case insensitive", func(t *testing.T) {
		x := &Logger{level: "INFO", format: "JSON"}
		format, err := x.parseFormat()
		gt.NoError(t, err)
		gt.Equal(t, format, logging.FormatJSON)
	})

	t.Run("unwritable output", func(t *testing.T) {
		x := &Logger{level: "info", format: "json", output: filepath.Join(t.TempDir(), "missing", "x.log")}
		_, _, err := x.Configure()
		gt.Error(t, err)
	})
}

func TestLoggerAutoDetectFormat(t *testing.T) {
	x := &Logger{}

	t.Setenv("TERM", "xterm-256color")
	gt.Equal(t, x.autoDetectFormat(), logging.FormatConsole)

	t.Setenv("TERM", "dumb")
	gt.Equal(t, x.autoDetectFormat(), logging.FormatJSON)
}
