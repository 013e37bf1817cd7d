package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policy-rag/internal/infra/logger"
)

func TestWithContext_AddsBusinessFields(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	cl := logger.NewContextLogger("policy-rag", base)

	ctx := logger.WithRequestID(context.Background(), "req-123")
	ctx = logger.WithProvider(ctx, "UHC")
	ctx = logger.WithStage(ctx, "ask")

	cl.WithContext(ctx).Info("answer generated")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "policy-rag", record["service"])
	assert.Equal(t, "req-123", record["qa.request.id"])
	assert.Equal(t, "UHC", record["qa.provider"])
	assert.Equal(t, "ask", record["qa.stage"])
}

func TestWithContext_EmptyContextCarriesOnlyService(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	cl := logger.NewContextLogger("policy-rag", base)

	cl.WithContext(context.Background()).Info("started")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "policy-rag", record["service"])
	assert.NotContains(t, record, "qa.request.id")
	assert.NotContains(t, record, "qa.provider")
}
