package audit

import (
	"context"
	"testing"

	"github.com/dropDatabas3/gatehouse/internal/observability/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := logger.ToContext(context.Background(), zap.New(core).With(logger.RequestID("rid-1")))

	Log(ctx, BanAdded, logger.String("identity", "203.0.113.7"))

	require.Equal(t, 1, logs.Len())
	e := logs.All()[0]
	assert.Equal(t, BanAdded, e.Message)
	assert.Equal(t, "audit", e.LoggerName)
	m := e.ContextMap()
	assert.Equal(t, "rid-1", m["request_id"])
	assert.Equal(t, BanAdded, m["event"])
	assert.Equal(t, "203.0.113.7", m["identity"])
}
