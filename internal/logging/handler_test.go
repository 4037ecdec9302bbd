// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/craftsmenplatform/craftsmen/pkg/errutil"
)

func capture(t *testing.T, opts Options) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	opts.Writer = &buf
	logger, err := Setup(opts)
	require.NoError(t, err)
	return logger, &buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "not JSON: %s", buf.String())
	return entry
}

func spanContext(t *testing.T) context.Context {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestSetup_Formats(t *testing.T) {
	t.Run("json carries service and version", func(t *testing.T) {
		logger, buf := capture(t, Options{Service: "craftsmen", Version: "1.4.0", Format: "json"})
		logger.Info("offer accepted")

		entry := lastEntry(t, buf)
		assert.Equal(t, "offer accepted", entry["msg"])
		assert.Equal(t, "craftsmen", entry["service"])
		assert.Equal(t, "1.4.0", entry["version"])
		assert.Contains(t, entry, "time")
		assert.Contains(t, entry, "level")
	})

	t.Run("text", func(t *testing.T) {
		logger, buf := capture(t, Options{Service: "craftsmen-api", Format: "text"})
		logger.Info("offer accepted")

		assert.Contains(t, buf.String(), "msg=\"offer accepted\"")
		assert.Contains(t, buf.String(), "service=craftsmen-api")
	})

	t.Run("unknown format falls back to json", func(t *testing.T) {
		logger, buf := capture(t, Options{Format: "xml"})
		logger.Info("hello")
		lastEntry(t, buf)
	})
}

func TestSetup_Level(t *testing.T) {
	tests := []struct {
		level     string
		debugSeen bool
		infoSeen  bool
	}{
		{"", false, true},
		{"debug", true, true},
		{"info", false, true},
		{"WARN", false, false},
	}
	for _, tt := range tests {
		t.Run("level "+tt.level, func(t *testing.T) {
			logger, buf := capture(t, Options{Level: tt.level, Format: "text"})

			logger.Debug("debug line")
			logger.Info("info line")

			assert.Equal(t, tt.debugSeen, bytes.Contains(buf.Bytes(), []byte("debug line")))
			assert.Equal(t, tt.infoSeen, bytes.Contains(buf.Bytes(), []byte("info line")))
		})
	}

	_, err := Setup(Options{Level: "loud"})
	errutil.AssertErrorCode(t, err, "LOG_INVALID_LEVEL")
	errutil.AssertErrorContext(t, err, "level", "loud")
}

func TestCorrelation(t *testing.T) {
	logger, buf := capture(t, Options{Service: "craftsmen"})

	t.Run("without ids", func(t *testing.T) {
		buf.Reset()
		logger.InfoContext(context.Background(), "plain")
		entry := lastEntry(t, buf)
		assert.NotContains(t, entry, "request_id")
		assert.NotContains(t, entry, "trace_id")
		assert.NotContains(t, entry, "span_id")
	})

	t.Run("active span", func(t *testing.T) {
		buf.Reset()
		logger.InfoContext(spanContext(t), "traced")
		entry := lastEntry(t, buf)
		assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
		assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
	})

	t.Run("request id from the chi middleware", func(t *testing.T) {
		buf.Reset()
		h := middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			logger.With("component", "httpapi").InfoContext(r.Context(), "handled")
		}))
		req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
		req.Header.Set(middleware.RequestIDHeader, "req-42")
		h.ServeHTTP(httptest.NewRecorder(), req)

		entry := lastEntry(t, buf)
		assert.Equal(t, "req-42", entry["request_id"])
		assert.Equal(t, "httpapi", entry["component"])
		assert.Equal(t, "craftsmen", entry["service"])
	})

	t.Run("groups keep the bound fields at the top", func(t *testing.T) {
		buf.Reset()
		logger.WithGroup("req").InfoContext(spanContext(t), "grouped", "id", 7)
		entry := lastEntry(t, buf)
		assert.Equal(t, "craftsmen", entry["service"])
		require.Contains(t, entry, "req")
		assert.Equal(t, float64(7), entry["req"].(map[string]any)["id"])
	})
}

func TestSetDefault(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	logger, err := SetDefault(Options{Service: "craftsmen", Version: "2.0.0"})
	require.NoError(t, err)
	assert.Same(t, logger, slog.Default())

	_, err = SetDefault(Options{Level: "chatty"})
	errutil.AssertErrorCode(t, err, "LOG_INVALID_LEVEL")
}
