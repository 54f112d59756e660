package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestNewWithWriterFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn")

	l.Info("hidden")
	assert.Zero(t, buf.Len())

	l.Warn("shown", "amount", 2500)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.EqualValues(t, 2500, rec["amount"])
}

func TestFromCtx(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "info")

	assert.Same(t, l, FromCtx(WithCtx(context.Background(), l)))
	assert.Same(t, slog.Default(), FromCtx(context.Background()))
}

func TestMiddlewareLogsRequest(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "info")

	var scoped *slog.Logger
	h := Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scoped = FromCtx(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/checkout", nil))

	require.NotNil(t, scoped)
	assert.NotSame(t, l, scoped)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "http_request", line["msg"])
	assert.Equal(t, "/checkout", line["path"])
	assert.EqualValues(t, http.StatusTeapot, line["status"])
}
