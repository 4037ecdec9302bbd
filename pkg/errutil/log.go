// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err at error level. Oops errors are expanded into their
// code and context attributes.
func LogError(logger *slog.Logger, msg string, err error) {
	LogErrorContext(context.Background(), logger, msg, err)
}

// LogErrorContext is LogError with a context, so request and trace ids are
// attached by the handler.
func LogErrorContext(ctx context.Context, logger *slog.Logger, msg string, err error) {
	logger.LogAttrs(ctx, slog.LevelError, msg, ErrorAttrs(err)...)
}

// ErrorAttrs describes err as log attributes.
func ErrorAttrs(err error) []slog.Attr {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return []slog.Attr{slog.Any("error", err)}
	}
	attrs := []slog.Attr{slog.String("error", oopsErr.Error())}
	if code := Code(err); code != "" {
		attrs = append(attrs, slog.String("code", code))
	}
	if errCtx := oopsErr.Context(); len(errCtx) > 0 {
		attrs = append(attrs, slog.Any("context", errCtx))
	}
	return attrs
}

// Code returns the oops code attached to err, or "" when there is none.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}

// Context returns the value stored under key in err's oops context.
func Context(err error, key string) (any, bool) {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil, false
	}
	v, found := oopsErr.Context()[key]
	return v, found
}
