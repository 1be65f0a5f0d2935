package errors

import (
	"context"

	"github.com/m-mizutani/ctxlog"
)

// Handle logs errors with context
func Handle(ctx context.Context, err error) {
	if err == nil {
		return
	}

	logger := ctxlog.From(ctx)
	logger.Error("error occurred", "error", err)
}

// Warn logs an error that was contained on purpose, e.g. a failed best-effort
// side effect. The primary operation continues.
func Warn(ctx context.Context, err error, msg string, attrs ...any) {
	if err == nil {
		return
	}

	args := append([]any{"error", err}, attrs...)
	ctxlog.From(ctx).Warn(msg, args...)
}
