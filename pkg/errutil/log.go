// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

// Package errutil provides helpers for logging and asserting oops errors.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// errorAttrs expands an oops error into its message, code and context.
// Plain errors contribute only their message.
func errorAttrs(err error) []any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return []any{"error", err.Error()}
	}
	attrs := []any{"error", oopsErr.Error()}
	if code := oopsErr.Code(); code != nil && code != "" {
		attrs = append(attrs, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	return attrs
}

// LogError logs err at ERROR with structured oops context.
func LogError(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, errorAttrs(err)...)
}

// LogErrorContext is LogError with a context for trace and request IDs.
// extra key/value pairs are appended after the error attributes.
func LogErrorContext(ctx context.Context, logger *slog.Logger, msg string, err error, extra ...any) {
	logger.ErrorContext(ctx, msg, append(errorAttrs(err), extra...)...)
}

// LogBestEffort logs a failure that must not fail the surrounding
// operation. It logs at WARN with the failed operation name.
func LogBestEffort(logger *slog.Logger, operation string, err error) {
	attrs := append([]any{"operation", operation}, errorAttrs(err)...)
	logger.Warn("best-effort operation failed", attrs...)
}
