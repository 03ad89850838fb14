package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSON(&buf)

	logger.Info().Str("adapter", "document").Msg("connected")

	out := buf.String()
	assert.Contains(t, out, `"adapter":"document"`)
	assert.Contains(t, out, `"message":"connected"`)
}

func TestDefault_NotNil(t *testing.T) {
	assert.NotNil(t, Default())
}

func TestFromContext_Fallback(t *testing.T) {
	assert.Equal(t, Default(), FromContext(context.Background()))
	assert.Equal(t, Default(), FromContext(nil)) //nolint:staticcheck // nil context fallback is the point
}

func TestWithLogger_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf)

	ctx := WithLogger(context.Background(), &logger)
	FromContext(ctx).Info().Msg("from context")

	assert.Contains(t, buf.String(), "from context")
}

func TestWithAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf)

	ctx := WithLogger(context.Background(), &logger)
	ctx = WithAdapter(ctx, "command")
	FromContext(ctx).Info().Msg("emitted")

	assert.Contains(t, buf.String(), `"adapter":"command"`)
}

func TestWithSubscriber(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf)

	ctx := WithLogger(context.Background(), &logger)
	ctx = WithSubscriber(ctx, "client-1")
	FromContext(ctx).Warn().Msg("delivery failed")

	out := buf.String()
	assert.Contains(t, out, `"subscriber_id":"client-1"`)
	assert.True(t, strings.Contains(out, `"level":"warn"`))
}

func TestNop_Discards(t *testing.T) {
	assert.Equal(t, zerolog.Nop().GetLevel(), Nop.GetLevel())
}
