package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCtx(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, defaultLogger, Ctx(ctx), "empty context should fall back to the default logger")

	custom := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	assert.Equal(t, custom, Ctx(With(ctx, custom)))
}

func TestWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	ctx := With(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))

	assert.Equal(t, ctx, WithAttrs(ctx), "no attrs should keep the same context")

	ctx = WithAttrs(ctx, slog.String("userID", "u1"))
	ctx = WithAttrs(ctx, slog.String("reqPath", "/api/stats"))
	Ctx(ctx).InfoContext(ctx, "hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "u1", line["userID"])
	assert.Equal(t, "/api/stats", line["reqPath"])
	assert.Equal(t, "hello", line["msg"])
}
